package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

type eventImageStore interface {
	SaveEventImage(ctx context.Context, eventID string, upload *dto.ImageUpload) (string, error)
	DeleteImage(ctx context.Context, url string)
}

var (
	errEventFieldsRequired = appErrors.Clone(appErrors.ErrValidation, "Title, date, and venue are required")
	errNotEventOwner       = appErrors.Clone(appErrors.ErrForbidden, "Not authorized to update this event")
	errNotEventOwnerDelete = appErrors.Clone(appErrors.ErrForbidden, "Not authorized to delete this event")
)

// EventService manages the event catalogue: creation, reads and owner-checked
// edits. Participant and attendance state is never touched here.
type EventService struct {
	store     EventStore
	images    eventImageStore
	cache     *CacheService
	audit     auditor
	validator *validator.Validate
	clock     Clock
	logger    *zap.Logger
}

func NewEventService(store EventStore, images eventImageStore, cache *CacheService, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{
		store:     store,
		images:    images,
		cache:     cache,
		audit:     auditor{writer: audit, logger: logger, agent: "event-service"},
		validator: validate,
		clock:     SystemClock(),
		logger:    logger,
	}
}

// Create validates the payload, stores the optional cover image and inserts the event.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest, image *dto.ImageUpload, actor models.Principal) (*models.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Venue = strings.TrimSpace(req.Venue)
	req.Date = strings.TrimSpace(req.Date)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	clock, err := normalizeTime(req.Time)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   strings.TrimSpace(req.Description),
		Venue:         req.Venue,
		Date:          date,
		Time:          clock,
		CreatedBy:     actor.ID,
		AttendanceLog: []models.AttendanceMark{},
	}
	if req.RequiresAttendance != nil {
		event.RequiresAttendance = bool(*req.RequiresAttendance)
	}

	if image != nil && s.images != nil {
		url, err := s.images.SaveEventImage(ctx, event.ID, image)
		if err != nil {
			return nil, err
		}
		event.Image = &url
	}

	if err := s.store.Create(ctx, event); err != nil {
		if event.Image != nil {
			s.images.DeleteImage(ctx, *event.Image)
		}
		s.logger.Error("failed to create event", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create event")
	}

	s.cache.Invalidate(ctx, cachePatternEvents)
	s.audit.emit(ctx, &actor, models.AuditActionEventCreate, event.ID, map[string]interface{}{
		"title": event.Title,
		"date":  event.Date,
	})
	return event, nil
}

// List returns events in calendar order. Only the unfiltered listing is cached.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error) {
	filter := models.EventFilter{CreatedBy: strings.TrimSpace(query.CreatedBy)}
	if query.Upcoming {
		filter.FromDate = s.clock.Now().UTC().Format(models.DateLayout)
	}
	unfiltered := filter == models.EventFilter{}

	var cached []models.Event
	if unfiltered && s.cache.Get(ctx, cacheKeyEventList, &cached) {
		return cached, nil
	}
	events, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list events")
	}
	if unfiltered {
		s.cache.Set(ctx, cacheKeyEventList, events, 0)
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	key := cacheKeyEventPrefix + id
	var cached models.Event
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	event, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	s.cache.Set(ctx, key, event, 0)
	return event, nil
}

// ListRegistered returns the events the principal registered for, latest date first.
func (s *EventService) ListRegistered(ctx context.Context, actor models.Principal) ([]models.Event, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User ID missing")
	}
	events, err := s.store.List(ctx, models.EventFilter{ParticipantID: actor.ID})
	if err != nil {
		return nil, storeError(err, "Failed to fetch registered events")
	}
	return events, nil
}

// Update applies a partial update. Only the creator may edit; a new image
// replaces and removes the previous one.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest, image *dto.ImageUpload, actor models.Principal) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	patch, err := buildPatch(req)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	if current.CreatedBy != actor.ID {
		return nil, errNotEventOwner
	}

	var newImage string
	if image != nil && s.images != nil {
		newImage, err = s.images.SaveEventImage(ctx, id, image)
		if err != nil {
			return nil, err
		}
	}

	var previousImage *string
	updated, err := s.store.Update(ctx, id, func(e *models.Event) error {
		if e.CreatedBy != actor.ID {
			return errNotEventOwner
		}
		patch.apply(e)
		if newImage != "" {
			previousImage = e.Image
			url := newImage
			e.Image = &url
		}
		return nil
	})
	if err != nil {
		if newImage != "" {
			s.images.DeleteImage(ctx, newImage)
		}
		return nil, storeError(err, "failed to update event")
	}
	if previousImage != nil && *previousImage != newImage {
		s.images.DeleteImage(ctx, *previousImage)
	}

	s.cache.Invalidate(ctx, cachePatternEvents)
	s.audit.emit(ctx, &actor, models.AuditActionEventUpdate, id, patch.fields())
	return updated, nil
}

// Delete removes the event with its participants and attendance.
func (s *EventService) Delete(ctx context.Context, id string, actor models.Principal) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return storeError(err, "failed to load event")
	}
	if current.CreatedBy != actor.ID {
		return errNotEventOwnerDelete
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete event")
	}
	if current.Image != nil && s.images != nil {
		s.images.DeleteImage(ctx, *current.Image)
	}

	s.cache.Invalidate(ctx, cachePatternEvents)
	s.audit.emit(ctx, &actor, models.AuditActionEventDelete, id, map[string]interface{}{"title": current.Title})
	return nil
}

type eventPatch struct {
	title              *string
	description        *string
	venue              *string
	date               *string
	time               *string
	requiresAttendance *bool
}

func buildPatch(req dto.UpdateEventRequest) (eventPatch, error) {
	var patch eventPatch
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return patch, errEventFieldsRequired
		}
		patch.title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		patch.description = &description
	}
	if req.Venue != nil {
		venue := strings.TrimSpace(*req.Venue)
		if venue == "" {
			return patch, errEventFieldsRequired
		}
		patch.venue = &venue
	}
	if req.Date != nil {
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			return patch, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
		}
		patch.date = &date
	}
	// An empty time keeps the stored value.
	if req.Time != nil && strings.TrimSpace(*req.Time) != "" {
		clock, err := normalizeTime(*req.Time)
		if err != nil {
			return patch, err
		}
		patch.time = &clock
	}
	if req.RequiresAttendance != nil {
		value := bool(*req.RequiresAttendance)
		patch.requiresAttendance = &value
	}
	return patch, nil
}

func (p eventPatch) apply(e *models.Event) {
	if p.title != nil {
		e.Title = *p.title
	}
	if p.description != nil {
		e.Description = *p.description
	}
	if p.venue != nil {
		e.Venue = *p.venue
	}
	if p.date != nil {
		e.Date = *p.date
	}
	if p.time != nil {
		e.Time = *p.time
	}
	if p.requiresAttendance != nil {
		e.RequiresAttendance = *p.requiresAttendance
	}
}

func (p eventPatch) fields() map[string]interface{} {
	out := map[string]interface{}{}
	if p.title != nil {
		out["title"] = *p.title
	}
	if p.description != nil {
		out["description"] = *p.description
	}
	if p.venue != nil {
		out["venue"] = *p.venue
	}
	if p.date != nil {
		out["date"] = *p.date
	}
	if p.time != nil {
		out["time"] = *p.time
	}
	if p.requiresAttendance != nil {
		out["requiresAttendance"] = *p.requiresAttendance
	}
	return out
}

func normalizeTime(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	clock, err := models.ParseTimeOfDay(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "time must look like 14:00 or 2:00 PM")
	}
	return clock, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" || fe.Tag() == "min" {
				return appErrors.Wrap(err, errEventFieldsRequired.Code, errEventFieldsRequired.Status, errEventFieldsRequired.Message)
			}
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
}
