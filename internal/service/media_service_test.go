package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/dto"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestSaveEventImageResizes(t *testing.T) {
	media := newMediaStub()
	svc := NewMediaService(media, MediaConfig{MaxDimension: 100}, nil)

	url, err := svc.SaveEventImage(context.Background(), "evt-1", &dto.ImageUpload{Filename: "cover.PNG", Data: pngBytes(t, 400, 200)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://media.test/events/evt-1/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	stored := media.objects[strings.TrimPrefix(url, "http://media.test/")]
	img, _, err := image.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestSaveEventImageConvertsToJPEG(t *testing.T) {
	media := newMediaStub()
	svc := NewMediaService(media, MediaConfig{}, nil)

	url, err := svc.SaveEventImage(context.Background(), "evt-1", &dto.ImageUpload{Filename: "cover", ContentType: "image/jpeg", Data: pngBytes(t, 20, 20)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))
}

func TestSaveEventImageRejectsInvalidInput(t *testing.T) {
	media := newMediaStub()
	svc := NewMediaService(media, MediaConfig{MaxImageSize: 32}, nil)

	_, err := svc.SaveEventImage(context.Background(), "evt-1", &dto.ImageUpload{Filename: "x.png", Data: []byte("not an image")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.SaveEventImage(context.Background(), "evt-1", &dto.ImageUpload{Filename: "x.png"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.SaveEventImage(context.Background(), "evt-1", &dto.ImageUpload{Filename: "x.png", Data: pngBytes(t, 50, 50)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, media.puts())
}

func TestDeleteImageIgnoresBlank(t *testing.T) {
	media := newMediaStub()
	svc := NewMediaService(media, MediaConfig{}, nil)

	svc.DeleteImage(context.Background(), "")
	svc.DeleteImage(context.Background(), "http://media.test/events/evt-1/a.png")
	assert.Equal(t, []string{"http://media.test/events/evt-1/a.png"}, media.deleted)
}
