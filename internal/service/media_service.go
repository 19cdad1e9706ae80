package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/dto"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

type mediaStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// MediaConfig limits accepted images.
type MediaConfig struct {
	MaxImageSize int64
	MaxDimension int
}

// MediaService normalises uploaded cover images before handing them to the
// media store.
type MediaService struct {
	store  mediaStore
	cfg    MediaConfig
	logger *zap.Logger
}

func NewMediaService(store mediaStore, cfg MediaConfig, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 5 * 1024 * 1024
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1600
	}
	return &MediaService{store: store, cfg: cfg, logger: logger}
}

// SaveEventImage decodes the upload, bounds its size, re-encodes it and stores
// it under the event's prefix. PNG sources stay PNG, everything else becomes JPEG.
func (s *MediaService) SaveEventImage(ctx context.Context, eventID string, upload *dto.ImageUpload) (string, error) {
	if upload == nil || len(upload.Data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "image is empty")
	}
	if int64(len(upload.Data)) > s.cfg.MaxImageSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageSize))
	}

	img, err := imaging.Decode(bytes.NewReader(upload.Data), imaging.AutoOrientation(true))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "image format not supported")
	}
	img = s.fit(img)

	format, ext := imaging.JPEG, "jpg"
	if isPNG(upload) {
		format, ext = imaging.PNG, "png"
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return "", appErrors.Internal(err, "failed to encode image")
	}

	key := fmt.Sprintf("events/%s/%s.%s", eventID, uuid.NewString(), ext)
	url, err := s.store.Put(ctx, key, buf.Bytes())
	if err != nil {
		s.logger.Warn("media store put failed", zap.String("event_id", eventID), zap.Error(err))
		return "", appErrors.Internal(err, "failed to store image")
	}
	return url, nil
}

// DeleteImage removes a previously stored image. Failures are logged only.
func (s *MediaService) DeleteImage(ctx context.Context, url string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	if err := s.store.Delete(ctx, url); err != nil {
		s.logger.Warn("media store delete failed", zap.String("url", url), zap.Error(err))
	}
}

func (s *MediaService) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= s.cfg.MaxDimension && bounds.Dy() <= s.cfg.MaxDimension {
		return img
	}
	return imaging.Fit(img, s.cfg.MaxDimension, s.cfg.MaxDimension, imaging.Lanczos)
}

func isPNG(upload *dto.ImageUpload) bool {
	if strings.EqualFold(upload.ContentType, "image/png") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(upload.Filename), ".png")
}
