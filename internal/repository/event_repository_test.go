package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/models"
)

var eventRowColumns = []string{"id", "title", "description", "venue", "date", "time", "requires_attendance", "created_by", "image", "created_at", "updated_at"}

func newEventRepoMock(t *testing.T) (*EventRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	repo := NewEventRepository(sqlxDB)
	repo.now = func() time.Time { return time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC) }
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return repo, mock, cleanup
}

func eventRow(created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(eventRowColumns).
		AddRow("evt-1", "Hackathon", "24h build", "Main Hall", "2025-01-10", "14:00", true, "admin-1", nil, created, created)
}

func TestEventRepositoryGetLoadsChildren(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM events e WHERE e.id = \$1`).
		WithArgs("evt-1").
		WillReturnRows(eventRow(created))
	mock.ExpectQuery(`FROM event_participants WHERE event_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "name", "email", "registered_at", "attended", "certificate_issued", "certificate_url"}).
			AddRow("evt-1", "stu-2", "Linus", "linus@campus.edu", created, false, false, nil).
			AddRow("evt-1", "stu-1", "Ada", "ada@campus.edu", created, true, true, "http://media/cert.pdf"))
	mock.ExpectQuery(`FROM event_attendance WHERE event_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "marked_at"}).
			AddRow("evt-1", "stu-1", created))

	event, err := repo.Get(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Hackathon", event.Title)
	assert.Equal(t, "2025-01-10", event.Date)
	assert.Nil(t, event.Image)

	participants := event.Participants.All()
	require.Len(t, participants, 2)
	assert.Equal(t, "stu-2", participants[0].UserID)
	require.NotNil(t, participants[1].CertificateURL)
	assert.Equal(t, "http://media/cert.pdf", *participants[1].CertificateURL)
	require.Len(t, event.AttendanceLog, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryGetNotFound(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(`FROM events e WHERE e.id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "Hackathon", "", "Main Hall", "2025-01-10", "", false, "admin-1", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &models.Event{Title: "Hackathon", Venue: "Main Hall", Date: "2025-01-10", CreatedBy: "admin-1"}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, repo.now(), event.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateInsertsOnlyNewParticipant(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM events e WHERE e.id = \$1 FOR UPDATE`).
		WithArgs("evt-1").
		WillReturnRows(eventRow(created))
	mock.ExpectQuery(`FROM event_participants`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "name", "email", "registered_at", "attended", "certificate_issued", "certificate_url"}).
			AddRow("evt-1", "stu-1", "Ada", "ada@campus.edu", created, false, false, nil))
	mock.ExpectQuery(`FROM event_attendance`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "marked_at"}))
	mock.ExpectExec(`INSERT INTO event_participants`).
		WithArgs("evt-1", "stu-2", "Linus", "linus@campus.edu", sqlmock.AnyArg(), false, false, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE events SET updated_at`).
		WithArgs(sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event, err := repo.Update(context.Background(), "evt-1", func(e *models.Event) error {
		e.Participants.Add(models.Participant{UserID: "stu-2", Name: "Linus", Email: "linus@campus.edu", RegisteredAt: created})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, event.Participants.Len())
	assert.Equal(t, repo.now(), event.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateRollsBackOnMutatorError(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ruleErr := errors.New("already registered")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("evt-1").WillReturnRows(eventRow(created))
	mock.ExpectQuery(`FROM event_participants`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "name", "email", "registered_at", "attended", "certificate_issued", "certificate_url"}))
	mock.ExpectQuery(`FROM event_attendance`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "marked_at"}))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "evt-1", func(e *models.Event) error {
		e.Title = "changed"
		return ruleErr
	})
	assert.ErrorIs(t, err, ruleErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateMarksAttendance(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	marked := time.Date(2025, 1, 10, 13, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("evt-1").WillReturnRows(eventRow(created))
	mock.ExpectQuery(`FROM event_participants`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "name", "email", "registered_at", "attended", "certificate_issued", "certificate_url"}).
			AddRow("evt-1", "stu-1", "Ada", "ada@campus.edu", created, false, false, nil))
	mock.ExpectQuery(`FROM event_attendance`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "marked_at"}))
	mock.ExpectExec(`UPDATE event_participants SET attended`).
		WithArgs(true, false, sqlmock.AnyArg(), "evt-1", "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO event_attendance`).
		WithArgs("evt-1", "stu-1", marked).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE events SET updated_at`).
		WithArgs(sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Update(context.Background(), "evt-1", func(e *models.Event) error {
		e.Participants.Update("stu-1", func(p *models.Participant) { p.Attended = true })
		e.AttendanceLog = append(e.AttendanceLog, models.AttendanceMark{UserID: "stu-1", MarkedAt: marked})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "evt-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListByParticipant(t *testing.T) {
	repo, mock, cleanup := newEventRepoMock(t)
	defer cleanup()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`EXISTS \(SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.user_id = \$1\) ORDER BY e.date DESC`).
		WithArgs("stu-1").
		WillReturnRows(eventRow(created))
	mock.ExpectQuery(`FROM event_participants WHERE`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "name", "email", "registered_at", "attended", "certificate_issued", "certificate_url"}).
			AddRow("evt-1", "stu-1", "Ada", "ada@campus.edu", created, false, false, nil))
	mock.ExpectQuery(`FROM event_attendance`).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id", "marked_at"}))

	events, err := repo.List(context.Background(), models.EventFilter{ParticipantID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Participants.Has("stu-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
