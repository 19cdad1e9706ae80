package models

import (
	"encoding/json"
	"time"
)

// Participant is a student's registration on an event. Name and email are a
// snapshot taken at registration time.
type Participant struct {
	UserID            string    `db:"user_id" json:"userId"`
	Name              string    `db:"name" json:"name"`
	Email             string    `db:"email" json:"email"`
	RegisteredAt      time.Time `db:"registered_at" json:"registeredAt"`
	Attended          bool      `db:"attended" json:"attended"`
	CertificateIssued bool      `db:"certificate_issued" json:"certificateIssued"`
	CertificateURL    *string   `db:"certificate_url" json:"certificateUrl,omitempty"`
}

// EligibleForCertificate reports whether issuance should process this participant.
func (p Participant) EligibleForCertificate() bool {
	return p.Attended && !p.CertificateIssued
}

// ParticipantList keeps participants unique by user id while preserving
// registration order. The zero value is ready to use.
type ParticipantList struct {
	order []string
	byID  map[string]Participant
}

// NewParticipantList builds a list from participants, dropping later duplicates.
func NewParticipantList(participants ...Participant) ParticipantList {
	var list ParticipantList
	for _, p := range participants {
		list.Add(p)
	}
	return list
}

// Add appends p unless its user id is already present.
func (l *ParticipantList) Add(p Participant) bool {
	if l.byID == nil {
		l.byID = make(map[string]Participant)
	}
	if _, exists := l.byID[p.UserID]; exists {
		return false
	}
	l.order = append(l.order, p.UserID)
	l.byID[p.UserID] = p
	return true
}

func (l ParticipantList) Get(userID string) (Participant, bool) {
	p, ok := l.byID[userID]
	return p, ok
}

func (l ParticipantList) Has(userID string) bool {
	_, ok := l.byID[userID]
	return ok
}

// Update applies fn to the participant with userID. The user id cannot change.
func (l *ParticipantList) Update(userID string, fn func(*Participant)) bool {
	p, ok := l.byID[userID]
	if !ok {
		return false
	}
	fn(&p)
	p.UserID = userID
	l.byID[userID] = p
	return true
}

func (l ParticipantList) Len() int {
	return len(l.order)
}

// All returns the participants in registration order.
func (l ParticipantList) All() []Participant {
	out := make([]Participant, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

func (l ParticipantList) Clone() ParticipantList {
	out := ParticipantList{order: append([]string(nil), l.order...)}
	if l.byID != nil {
		out.byID = make(map[string]Participant, len(l.byID))
		for id, p := range l.byID {
			if p.CertificateURL != nil {
				url := *p.CertificateURL
				p.CertificateURL = &url
			}
			out.byID[id] = p
		}
	}
	return out
}

func (l ParticipantList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.All())
}

func (l *ParticipantList) UnmarshalJSON(data []byte) error {
	var participants []Participant
	if err := json.Unmarshal(data, &participants); err != nil {
		return err
	}
	*l = NewParticipantList(participants...)
	return nil
}
