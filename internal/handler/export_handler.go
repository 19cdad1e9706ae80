package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/service"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/response"
)

type exportService interface {
	ExportAttendance(ctx context.Context, eventID, format string, actor models.Principal) (*dto.ExportResponse, error)
	Open(token string) (*service.ExportDownload, error)
}

// ExportHandler serves attendance roster exports.
type ExportHandler struct {
	service exportService
}

func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export godoc
// @Summary Export attendance roster
// @Tags Exports
// @Produce json
// @Param id path string true "Event ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	actor := principalFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ExportAttendance(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV), *actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", result)
}

// Download godoc
// @Summary Download an exported roster via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := result.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, result.ContentType, result.File, nil)
}
