package handler

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/middleware"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

func principalFromContext(c *gin.Context) *models.Principal {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return nil
	}
	return principal
}

// imageFromForm reads the optional "image" multipart file. JSON requests
// and forms without the field yield nil.
func imageFromForm(c *gin.Context, maxBytes int64) (*dto.ImageUpload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image is too large")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image")
	}
	defer src.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, src); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer image")
	}
	return &dto.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        buf.Bytes(),
	}, nil
}
