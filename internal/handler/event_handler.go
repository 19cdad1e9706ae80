package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, req dto.CreateEventRequest, image *dto.ImageUpload, actor models.Principal) (*models.Event, error)
	List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	ListRegistered(ctx context.Context, actor models.Principal) ([]models.Event, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest, image *dto.ImageUpload, actor models.Principal) (*models.Event, error)
	Delete(ctx context.Context, id string, actor models.Principal) error
}

type registrationService interface {
	Register(ctx context.Context, eventID string, student models.Principal) (*models.Participant, error)
}

// EventHandler serves the event catalogue and registrations.
type EventHandler struct {
	events        eventService
	registrations registrationService
	maxImageBytes int64
}

func NewEventHandler(events eventService, registrations registrationService, maxImageBytes int64) *EventHandler {
	return &EventHandler{events: events, registrations: registrations, maxImageBytes: maxImageBytes}
}

// Create godoc
// @Summary Create event
// @Tags Events
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param venue formData string true "Venue"
// @Param date formData string true "Date (YYYY-MM-DD)"
// @Param time formData string false "Start time (14:00 or 2:00 PM)"
// @Param requiresAttendance formData boolean false "Attendance tracking"
// @Param image formData file false "Cover image"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateEventRequest
	if err := bindEventPayload(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	image, err := imageFromForm(c, h.maxImageBytes)
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.events.Create(c.Request.Context(), req, image, *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Event created successfully", event)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param createdBy query string false "Creator id"
// @Param upcoming query bool false "Only events from today on"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid list filter"))
		return
	}
	events, err := h.events.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", events)
}

// Get godoc
// @Summary Event detail
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", event)
}

// Registered godoc
// @Summary Events the caller registered for
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/registered [get]
func (h *EventHandler) Registered(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.events.ListRegistered(c.Request.Context(), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", events)
}

// Update godoc
// @Summary Update event
// @Tags Events
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param image formData file false "Replacement cover image"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateEventRequest
	if err := bindEventPayload(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	image, err := imageFromForm(c, h.maxImageBytes)
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.events.Update(c.Request.Context(), c.Param("id"), req, image, *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Event updated successfully", event)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.events.Delete(c.Request.Context(), c.Param("id"), *actor); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Event deleted successfully", nil)
}

// Register godoc
// @Summary Register for an event
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/register [post]
func (h *EventHandler) Register(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	participant, err := h.registrations.Register(c.Request.Context(), c.Param("id"), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Registered successfully", participant)
}

// bindEventPayload accepts JSON as well as multipart and urlencoded forms.
// An empty JSON body is a no-op update.
func bindEventPayload(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBind(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	return nil
}
