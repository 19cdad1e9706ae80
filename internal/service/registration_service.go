package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

// RegistrationService commits student registrations.
type RegistrationService struct {
	store    EventStore
	schedule models.Schedule
	clock    Clock
	cache    *CacheService
	metrics  *MetricsService
	audit    auditor
	logger   *zap.Logger
}

func NewRegistrationService(store EventStore, schedule models.Schedule, clock Clock, cache *CacheService, metrics *MetricsService, audit auditWriter, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RegistrationService{
		store:    store,
		schedule: schedule,
		clock:    clock,
		cache:    cache,
		metrics:  metrics,
		audit:    auditor{writer: audit, logger: logger, agent: "registration-service"},
		logger:   logger,
	}
}

// Register adds the student to the event while its effective start is still
// in the future. Only the new participant is returned.
func (s *RegistrationService) Register(ctx context.Context, eventID string, student models.Principal) (*models.Participant, error) {
	if strings.TrimSpace(student.ID) == "" {
		return nil, appErrors.ErrUnauthorized
	}

	var created models.Participant
	_, err := s.store.Update(ctx, eventID, func(e *models.Event) error {
		now := s.clock.Now()
		start, err := s.schedule.EffectiveStart(e)
		if err != nil {
			return appErrors.Internal(err, "event schedule is invalid")
		}
		if !now.Before(start) {
			return appErrors.ErrEventPassed
		}
		created = models.Participant{
			UserID:       student.ID,
			Name:         student.Name,
			Email:        student.Email,
			RegisteredAt: now.UTC(),
		}
		if !e.Participants.Add(created) {
			return appErrors.ErrAlreadyRegistered
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordRegistration(outcomeFor(err))
		mapped := storeError(err, "failed to register for event")
		if appErrors.FromError(mapped).Status >= 500 {
			s.logger.Error("registration failed", zap.String("event_id", eventID), zap.String("user_id", student.ID), zap.Error(err))
		}
		return nil, mapped
	}

	s.metrics.RecordRegistration(OutcomeSuccess)
	s.cache.Invalidate(ctx, cachePatternEvents)
	s.audit.emit(ctx, &student, models.AuditActionRegister, eventID, nil)
	return &created, nil
}

// outcomeFor classifies an engine error for metrics.
func outcomeFor(err error) string {
	appErr := appErrors.FromError(storeError(err, ""))
	if appErr != nil && appErr.Status < 500 {
		return OutcomeRejected
	}
	return OutcomeFailed
}
