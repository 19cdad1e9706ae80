package dto

import (
	"time"

	"github.com/noah-isme/campus-events-api/internal/models"
)

// ScanRequest is submitted by a student after scanning an attendance QR code.
type ScanRequest struct {
	QRToken string `json:"qrToken" binding:"required"`
}

// AttendanceResponse confirms a check-in with the caller's own participant record only.
type AttendanceResponse struct {
	EventID     string              `json:"eventId"`
	EventTitle  string              `json:"eventTitle"`
	Participant *models.Participant `json:"participant,omitempty"`
}

// QRCodeResponse carries a signed attendance token and its scannable image.
type QRCodeResponse struct {
	EventID   string    `json:"eventId"`
	Token     string    `json:"token"`
	ScanURL   string    `json:"scanUrl,omitempty"`
	QRCode    string    `json:"qrCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportResponse points at a generated attendance roster.
type ExportResponse struct {
	EventID     string    `json:"eventId"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// CertificateJobResponse acknowledges an asynchronous issuance request.
type CertificateJobResponse struct {
	EventID string `json:"eventId"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
}
