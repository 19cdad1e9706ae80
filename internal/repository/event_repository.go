package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-events-api/internal/models"
)

// ErrNotFound is returned when an event id does not resolve.
var ErrNotFound = errors.New("event not found")

// EventMutator edits a loaded aggregate. Returning an error aborts the update
// and nothing is written.
type EventMutator func(*models.Event) error

const eventColumns = `
	e.id,
	e.title,
	e.description,
	e.venue,
	to_char(e.date, 'YYYY-MM-DD') AS date,
	COALESCE(e.time, '') AS time,
	e.requires_attendance,
	e.created_by,
	e.image,
	e.created_at,
	e.updated_at`

// EventRepository persists event aggregates in Postgres. Participants and
// attendance marks live in child tables owned by the event row.
type EventRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get loads a full aggregate.
func (r *EventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT` + eventColumns + ` FROM events e WHERE e.id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := r.loadChildren(ctx, r.db, []*models.Event{&event}); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events matching the filter, newest date first when filtering by
// participant and in calendar order otherwise.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT` + eventColumns + ` FROM events e WHERE 1=1`)

	args := []interface{}{}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		fmt.Fprintf(&query, " AND e.created_by = $%d", len(args))
	}
	if filter.ParticipantID != "" {
		args = append(args, filter.ParticipantID)
		fmt.Fprintf(&query, " AND EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.user_id = $%d)", len(args))
	}
	if filter.FromDate != "" {
		args = append(args, filter.FromDate)
		fmt.Fprintf(&query, " AND e.date >= $%d", len(args))
	}
	if filter.ParticipantID != "" {
		query.WriteString(" ORDER BY e.date DESC, e.created_at DESC")
	} else {
		query.WriteString(" ORDER BY e.date ASC, e.created_at ASC")
	}

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	refs := make([]*models.Event, len(events))
	for i := range events {
		refs[i] = &events[i]
	}
	if err := r.loadChildren(ctx, r.db, refs); err != nil {
		return nil, err
	}
	return events, nil
}

// Create inserts a new event row. Participants start empty.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `INSERT INTO events (id, title, description, venue, date, time, requires_attendance, created_by, image, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.Title, event.Description, event.Venue, event.Date, event.Time,
		event.RequiresAttendance, event.CreatedBy, event.Image, event.CreatedAt, event.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update locks the event row, applies mutate to the current aggregate and
// writes back only what changed. Concurrent updates of one event serialize on
// the row lock.
func (r *EventRepository) Update(ctx context.Context, id string, mutate EventMutator) (result *models.Event, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT` + eventColumns + ` FROM events e WHERE e.id = $1 FOR UPDATE`
	var current models.Event
	if err = tx.GetContext(ctx, &current, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	if err = r.loadChildren(ctx, tx, []*models.Event{&current}); err != nil {
		return nil, err
	}

	before := current.Clone()
	if err = mutate(&current); err != nil {
		return nil, err
	}
	current.ID = before.ID
	current.CreatedBy = before.CreatedBy
	current.CreatedAt = before.CreatedAt

	changed, err := r.persistDiff(ctx, tx, before, &current)
	if err != nil {
		return nil, err
	}
	if !changed {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit event: %w", err)
		}
		return &current, nil
	}

	current.UpdatedAt = r.now()
	if _, err = tx.ExecContext(ctx, `UPDATE events SET updated_at = $1 WHERE id = $2`, current.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("touch event: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return &current, nil
}

// Delete removes the event; participants and attendance cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) persistDiff(ctx context.Context, tx *sqlx.Tx, before, after *models.Event) (bool, error) {
	changed := false

	if eventFieldsChanged(before, after) {
		const query = `UPDATE events SET title = $1, description = $2, venue = $3, date = $4, time = NULLIF($5, ''), requires_attendance = $6, image = $7 WHERE id = $8`
		if _, err := tx.ExecContext(ctx, query,
			after.Title, after.Description, after.Venue, after.Date, after.Time, after.RequiresAttendance, after.Image, after.ID,
		); err != nil {
			return false, fmt.Errorf("update event: %w", err)
		}
		changed = true
	}

	position := before.Participants.Len()
	for _, p := range after.Participants.All() {
		old, existed := before.Participants.Get(p.UserID)
		if !existed {
			position++
			const insert = `INSERT INTO event_participants (event_id, user_id, name, email, registered_at, attended, certificate_issued, certificate_url, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
			if _, err := tx.ExecContext(ctx, insert,
				after.ID, p.UserID, p.Name, p.Email, p.RegisteredAt, p.Attended, p.CertificateIssued, p.CertificateURL, position,
			); err != nil {
				return false, fmt.Errorf("insert participant: %w", err)
			}
			changed = true
			continue
		}
		if participantChanged(old, p) {
			const update = `UPDATE event_participants SET attended = $1, certificate_issued = $2, certificate_url = $3 WHERE event_id = $4 AND user_id = $5`
			if _, err := tx.ExecContext(ctx, update, p.Attended, p.CertificateIssued, p.CertificateURL, after.ID, p.UserID); err != nil {
				return false, fmt.Errorf("update participant: %w", err)
			}
			changed = true
		}
	}

	for _, mark := range after.AttendanceLog {
		if before.HasAttendance(mark.UserID) {
			continue
		}
		const insert = `INSERT INTO event_attendance (event_id, user_id, marked_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insert, after.ID, mark.UserID, mark.MarkedAt); err != nil {
			return false, fmt.Errorf("insert attendance: %w", err)
		}
		changed = true
	}

	return changed, nil
}

func (r *EventRepository) loadChildren(ctx context.Context, q sqlx.QueryerContext, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	byID := make(map[string]*models.Event, len(events))
	for i, e := range events {
		ids[i] = e.ID
		byID[e.ID] = e
		e.Participants = models.ParticipantList{}
		e.AttendanceLog = []models.AttendanceMark{}
	}

	var participants []struct {
		EventID string `db:"event_id"`
		models.Participant
	}
	const participantQuery = `SELECT event_id, user_id, name, email, registered_at, attended, certificate_issued, certificate_url
FROM event_participants WHERE event_id = ANY($1) ORDER BY event_id, position ASC`
	if err := sqlx.SelectContext(ctx, q, &participants, participantQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	for _, row := range participants {
		if e, ok := byID[row.EventID]; ok {
			e.Participants.Add(row.Participant)
		}
	}

	var marks []struct {
		EventID string `db:"event_id"`
		models.AttendanceMark
	}
	const attendanceQuery = `SELECT event_id, user_id, marked_at FROM event_attendance WHERE event_id = ANY($1) ORDER BY event_id, marked_at ASC`
	if err := sqlx.SelectContext(ctx, q, &marks, attendanceQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}
	for _, row := range marks {
		if e, ok := byID[row.EventID]; ok {
			e.AttendanceLog = append(e.AttendanceLog, row.AttendanceMark)
		}
	}
	return nil
}

func eventFieldsChanged(a, b *models.Event) bool {
	return a.Title != b.Title ||
		a.Description != b.Description ||
		a.Venue != b.Venue ||
		a.Date != b.Date ||
		a.Time != b.Time ||
		a.RequiresAttendance != b.RequiresAttendance ||
		!equalStringPtr(a.Image, b.Image)
}

func participantChanged(a, b models.Participant) bool {
	return a.Attended != b.Attended ||
		a.CertificateIssued != b.CertificateIssued ||
		!equalStringPtr(a.CertificateURL, b.CertificateURL)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
