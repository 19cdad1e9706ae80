package models

import "time"

const (
	AuditActionEventCreate      = "EVENT_CREATE"
	AuditActionEventUpdate      = "EVENT_UPDATE"
	AuditActionEventDelete      = "EVENT_DELETE"
	AuditActionRegister         = "EVENT_REGISTER"
	AuditActionAttendanceMark   = "ATTENDANCE_MARK"
	AuditActionCertificateIssue = "CERTIFICATE_ISSUE"
	AuditActionAttendanceExport = "ATTENDANCE_EXPORT"
	AuditResourceEvent          = "event"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
