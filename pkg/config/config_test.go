package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, DefaultEventStartTime, cfg.Events.DefaultStartTime)
	assert.Equal(t, 2*time.Hour, cfg.Events.AttendanceWindow)
	assert.Equal(t, 10*time.Minute, cfg.Events.QRTokenTTL)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "Society", cfg.Certificates.Organizer)
	assert.Equal(t, time.UTC, cfg.Events.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("QR_TOKEN_TTL", "5m")
	t.Setenv("ATTENDANCE_WINDOW", "not-a-duration")
	t.Setenv("EVENTS_TIMEZONE", "Asia/Jakarta")
	t.Setenv("FRONTEND_URL", "https://campus.example/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.Events.QRTokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.Events.AttendanceWindow)
	assert.Equal(t, "Asia/Jakarta", cfg.Events.Location().String())
	assert.Equal(t, "https://campus.example", cfg.Events.FrontendURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestEventsConfigLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, EventsConfig{Timezone: "Mars/Olympus"}.Location())
}
