package models

// CertificateFailure describes a participant whose certificate could not be produced.
type CertificateFailure struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// CertificateRun summarises one issuance pass over an event.
type CertificateRun struct {
	EventID      string               `json:"eventId"`
	Issued       int                  `json:"issued"`
	Skipped      int                  `json:"skipped"`
	Failed       int                  `json:"failed"`
	Failures     []CertificateFailure `json:"failures,omitempty"`
	Participants []Participant        `json:"participants"`
}
