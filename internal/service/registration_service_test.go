package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

func newRegistrationFixture(t *testing.T) (*RegistrationService, *repository.MemoryEventRepository, *testClock, *auditStub) {
	t.Helper()
	store := repository.NewMemoryEventRepository()
	clock := newTestClock(utc(2025, 1, 9, 10, 0))
	audit := &auditStub{}
	svc := NewRegistrationService(store, testSchedule(), clock, nil, NewMetricsService(), audit, nil)
	return svc, store, clock, audit
}

func TestRegisterBeforeStartSucceeds(t *testing.T) {
	svc, store, _, audit := newRegistrationFixture(t)
	event := seedEvent(t, store, &models.Event{Title: "Hackathon", Date: "2025-01-10", Time: "14:00", RequiresAttendance: true})

	participant, err := svc.Register(context.Background(), event.ID, studentAda)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", participant.UserID)
	assert.Equal(t, "Ada", participant.Name)
	assert.Equal(t, utc(2025, 1, 9, 10, 0), participant.RegisteredAt)
	assert.False(t, participant.Attended)
	assert.False(t, participant.CertificateIssued)

	stored, err := store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Participants.Len())
	assert.Equal(t, []string{models.AuditActionRegister}, audit.actions())
}

func TestRegisterTwiceIsRejected(t *testing.T) {
	svc, store, _, _ := newRegistrationFixture(t)
	event := seedEvent(t, store, &models.Event{Title: "Hackathon", Date: "2025-01-10", Time: "14:00"})

	_, err := svc.Register(context.Background(), event.ID, studentAda)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), event.ID, studentAda)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyRegistered)

	stored, err := store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Participants.Len())
}

func TestRegisterAfterStartFails(t *testing.T) {
	svc, store, clock, _ := newRegistrationFixture(t)
	event := seedEvent(t, store, &models.Event{Title: "Hackathon", Date: "2025-01-10", Time: "14:00"})

	clock.Set(utc(2025, 1, 10, 14, 0))
	_, err := svc.Register(context.Background(), event.ID, studentAda)
	assert.ErrorIs(t, err, appErrors.ErrEventPassed)

	clock.Set(utc(2025, 1, 11, 9, 0))
	_, err = svc.Register(context.Background(), event.ID, studentAda)
	assert.ErrorIs(t, err, appErrors.ErrEventPassed)

	stored, err := store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Participants.Len())
}

func TestRegisterUsesDefaultStartTime(t *testing.T) {
	svc, store, clock, _ := newRegistrationFixture(t)
	event := seedEvent(t, store, &models.Event{Title: "Fair", Date: "2025-01-10"})

	clock.Set(utc(2025, 1, 10, 9, 59))
	_, err := svc.Register(context.Background(), event.ID, studentAda)
	require.NoError(t, err)

	clock.Set(utc(2025, 1, 10, 10, 0))
	_, err = svc.Register(context.Background(), event.ID, studentLinus)
	assert.ErrorIs(t, err, appErrors.ErrEventPassed)
}

func TestRegisterUnknownEvent(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture(t)
	_, err := svc.Register(context.Background(), "missing", studentAda)
	assert.ErrorIs(t, err, appErrors.ErrEventNotFound)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	svc, store, _, _ := newRegistrationFixture(t)
	event := seedEvent(t, store, &models.Event{Title: "Hackathon", Date: "2025-01-10", Time: "14:00"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), event.ID, studentAda)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, appErrors.ErrAlreadyRegistered) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 24, duplicates)
	stored, err := store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Participants.Len())
}
