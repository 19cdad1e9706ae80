package models

import "time"

// Event is the aggregate root for a campus event. Participants and the
// attendance log are owned by the event and only change through the
// repository's read-modify-write update.
type Event struct {
	ID                 string           `db:"id" json:"id"`
	Title              string           `db:"title" json:"title"`
	Description        string           `db:"description" json:"description"`
	Venue              string           `db:"venue" json:"venue"`
	Date               string           `db:"date" json:"date"`
	Time               string           `db:"time" json:"time,omitempty"`
	RequiresAttendance bool             `db:"requires_attendance" json:"requiresAttendance"`
	CreatedBy          string           `db:"created_by" json:"createdBy"`
	Image              *string          `db:"image" json:"image,omitempty"`
	Participants       ParticipantList  `db:"-" json:"participants"`
	AttendanceLog      []AttendanceMark `db:"-" json:"attendanceLog"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// AttendanceMark records when a participant was checked in.
type AttendanceMark struct {
	UserID   string    `db:"user_id" json:"userId"`
	MarkedAt time.Time `db:"marked_at" json:"markedAt"`
}

// HasAttendance reports whether the attendance log already holds userID.
func (e *Event) HasAttendance(userID string) bool {
	for _, mark := range e.AttendanceLog {
		if mark.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	if e.Image != nil {
		image := *e.Image
		out.Image = &image
	}
	out.Participants = e.Participants.Clone()
	out.AttendanceLog = append([]AttendanceMark(nil), e.AttendanceLog...)
	return &out
}

// EventFilter narrows event listings.
type EventFilter struct {
	CreatedBy     string
	ParticipantID string
	FromDate      string
}
