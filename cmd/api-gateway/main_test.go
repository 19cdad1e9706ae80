package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-events-api/internal/middleware"
	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
	"github.com/noah-isme/campus-events-api/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TokenService, *models.Event) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryEventRepository()
	event := &models.Event{Title: "Hackathon", Venue: "Main Hall", Date: "2025-01-10", CreatedBy: "admin-1"}
	require.NoError(t, store.Create(context.Background(), event))

	tokens := service.NewTokenService(service.TokenConfig{Secret: "router-secret", Issuer: "campus-events", Expiry: time.Hour}, nil)
	events := service.NewEventService(store, nil, nil, nil, nil, nil)
	registrations := service.NewRegistrationService(store, models.Schedule{Location: time.UTC, DefaultTime: "10:00", Window: 2 * time.Hour}, nil, nil, nil, nil, nil)

	r := gin.New()
	api := r.Group("/api")
	authed := api.Group("", internalmiddleware.JWT(tokens))
	registerEventRoutes(api, authed, routeHandlers{
		events:       handler.NewEventHandler(events, registrations, 0),
		attendance:   handler.NewAttendanceHandler(nil),
		certificates: handler.NewCertificateHandler(nil),
		exports:      handler.NewExportHandler(nil),
	})
	return r, tokens, event
}

func TestEventCatalogueIsPublic(t *testing.T) {
	r, _, event := newTestRouter(t)

	for _, path := range []string{"/api/events", "/api/events?upcoming=false", "/api/events/" + event.ID} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "Hackathon", path)
	}
}

func TestEventRoutesRequireToken(t *testing.T) {
	r, _, event := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/events/registered"},
		{http.MethodPost, "/api/events"},
		{http.MethodPut, "/api/events/" + event.ID},
		{http.MethodDelete, "/api/events/" + event.ID},
		{http.MethodPost, "/api/events/" + event.ID + "/register"},
		{http.MethodPost, "/api/events/scan"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method+" "+tc.path)
	}
}

func TestRegisteredRouteAcceptsStudentToken(t *testing.T) {
	r, tokens, _ := newTestRouter(t)
	token, _, err := tokens.Issue(models.Principal{ID: "stu-1", Role: models.RoleStudent, Name: "Ada", Email: "ada@campus.edu"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/events/registered", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
