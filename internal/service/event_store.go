package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

// EventStore is the aggregate repository contract shared by the engines.
type EventStore interface {
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, id string, mutate repository.EventMutator) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// storeError maps repository failures onto API errors. Typed errors returned
// from a mutator pass through untouched.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.ErrEventNotFound
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

// auditor records audit entries without ever failing the caller.
type auditor struct {
	writer auditWriter
	logger *zap.Logger
	agent  string
}

func (a auditor) emit(ctx context.Context, actor *models.Principal, action, eventID string, values interface{}) {
	if a.writer == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  models.AuditResourceEvent,
		IPAddress: "system",
		UserAgent: a.agent,
	}
	if actor != nil && actor.ID != "" {
		userID := actor.ID
		entry.UserID = &userID
	}
	if eventID != "" {
		resourceID := eventID
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := a.writer.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Warn("failed to record audit log", zap.String("action", action), zap.String("event_id", eventID), zap.Error(err))
	}
}
