package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/response"
)

type attendanceService interface {
	MarkAttendance(ctx context.Context, eventID string, student models.Principal) (*models.Event, error)
	Scan(ctx context.Context, token string, student models.Principal) (*models.Event, error)
	IssueQRCode(ctx context.Context, eventID string, actor models.Principal) (*dto.QRCodeResponse, error)
}

// AttendanceHandler exposes direct and QR based check-in.
type AttendanceHandler struct {
	service attendanceService
}

func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Mark godoc
// @Summary Mark own attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.MarkAttendance(c.Request.Context(), c.Param("id"), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Attendance marked successfully", ownAttendance(event, actor.ID))
}

// QRCode godoc
// @Summary Issue attendance QR code
// @Tags Attendance
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance-qrcode [get]
func (h *AttendanceHandler) QRCode(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	qr, err := h.service.IssueQRCode(c.Request.Context(), c.Param("id"), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", qr)
}

// Scan godoc
// @Summary Submit a scanned QR token
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scanned token"
// @Success 200 {object} response.Envelope
// @Router /events/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "qrToken is required"))
		return
	}
	event, err := h.service.Scan(c.Request.Context(), req.QRToken, *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Attendance marked successfully", ownAttendance(event, actor.ID))
}

// ownAttendance strips the roster down to the caller's entry.
func ownAttendance(event *models.Event, userID string) *dto.AttendanceResponse {
	if event == nil {
		return nil
	}
	out := &dto.AttendanceResponse{EventID: event.ID, EventTitle: event.Title}
	if p, ok := event.Participants.Get(userID); ok {
		out.Participant = &p
	}
	return out
}
