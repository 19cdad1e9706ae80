package storage

import (
	"context"
	"fmt"
	"strings"
)

// MediaStore publishes files from a LocalStorage under a public base URL. It is
// the media store for event cover images and certificate artifacts.
type MediaStore struct {
	files   *LocalStorage
	baseURL string
}

// NewMediaStore wraps local storage with URL generation.
func NewMediaStore(files *LocalStorage, publicBaseURL string) *MediaStore {
	return &MediaStore{files: files, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Put stores data under key and returns its retrievable URL.
func (m *MediaStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("media %s: empty payload", key)
	}
	stored, err := m.files.Save(key, data)
	if err != nil {
		return "", fmt.Errorf("media %s: %w", key, err)
	}
	return m.baseURL + "/" + stored, nil
}

// Delete removes the object behind a URL previously returned by Put. URLs that
// do not belong to this store are ignored.
func (m *MediaStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := m.KeyFromURL(url)
	if !ok {
		return nil
	}
	return m.files.Delete(key)
}

// KeyFromURL extracts the storage key from a URL issued by this store.
func (m *MediaStore) KeyFromURL(url string) (string, bool) {
	prefix := m.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// Dir exposes the directory that backs the public URLs.
func (m *MediaStore) Dir() string {
	return m.files.Dir()
}
