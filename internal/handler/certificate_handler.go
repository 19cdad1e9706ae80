package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/response"
)

type certificateService interface {
	IssueCertificates(ctx context.Context, eventID string, actor *models.Principal) (*models.CertificateRun, error)
	Enqueue(ctx context.Context, eventID string, actor models.Principal) (*dto.CertificateJobResponse, error)
}

// CertificateHandler triggers certificate issuance.
type CertificateHandler struct {
	service certificateService
}

func NewCertificateHandler(service certificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// Generate godoc
// @Summary Issue certificates to attendees
// @Description Runs synchronously by default. With async=true the pass is queued and 202 is returned.
// @Tags Certificates
// @Produce json
// @Param id path string true "Event ID"
// @Param async query bool false "Queue the issuance pass"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /events/{id}/certificates/generate [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		job, err := h.service.Enqueue(c.Request.Context(), c.Param("id"), *actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, "Certificate generation queued", job)
		return
	}

	run, err := h.service.IssueCertificates(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "Certificates generated successfully"
	if run.Failed > 0 {
		message = "Certificates generated with failures"
	}
	response.OK(c, message, run)
}
