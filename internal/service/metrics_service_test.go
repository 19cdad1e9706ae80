package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/events", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/events", http.StatusOK, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
}

func TestMetricsHandlerExposesDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordRegistration(OutcomeSuccess)
	m.RecordAttendance(AttendanceSourceQR, OutcomeRejected)
	m.RecordCertificates(OutcomeSuccess, 3)
	m.RecordCertificates(OutcomeFailed, 0)
	m.RecordExport(ExportFormatCSV)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `event_registrations_total{outcome="success"} 1`)
	assert.Contains(t, body, `event_attendance_marks_total{outcome="rejected",source="qr"} 1`)
	assert.Contains(t, body, `event_certificates_total{outcome="success"} 3`)
	assert.NotContains(t, body, `event_certificates_total{outcome="failed"}`)
	assert.Contains(t, body, `event_attendance_exports_total{format="csv"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordRegistration(OutcomeSuccess)
	m.RecordCertificates(OutcomeSuccess, 1)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
