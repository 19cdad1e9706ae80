package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func testSchedule() models.Schedule {
	return models.Schedule{Location: time.UTC, DefaultTime: "10:00", Window: 2 * time.Hour}
}

var (
	adminPrincipal = models.Principal{ID: "admin-1", Role: models.RoleAdmin, Name: "Admin", Email: "admin@campus.edu"}
	studentAda     = models.Principal{ID: "stu-1", Role: models.RoleStudent, Name: "Ada", Email: "ada@campus.edu"}
	studentLinus   = models.Principal{ID: "stu-2", Role: models.RoleStudent, Name: "Linus", Email: "linus@campus.edu"}
)

func seedEvent(t *testing.T, store *repository.MemoryEventRepository, event *models.Event) *models.Event {
	t.Helper()
	if event.CreatedBy == "" {
		event.CreatedBy = adminPrincipal.ID
	}
	require.NoError(t, store.Create(context.Background(), event))
	return event
}

type mediaStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failFor map[string]bool
}

func newMediaStub() *mediaStub {
	return &mediaStub{objects: map[string][]byte{}, failFor: map[string]bool{}}
}

func (m *mediaStub) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for marker, fail := range m.failFor {
		if fail && strings.Contains(key, marker) {
			return "", errors.New("media store unavailable")
		}
	}
	m.objects[key] = data
	return "http://media.test/" + key, nil
}

func (m *mediaStub) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	delete(m.objects, strings.TrimPrefix(url, "http://media.test/"))
	return nil
}

func (m *mediaStub) puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type auditStub struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}
