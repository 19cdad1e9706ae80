package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-events-api/internal/models"
)

// MemoryEventRepository keeps aggregates in process memory. Each event has its
// own lock so writers to different events never contend.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*models.Event
	locks  map[string]*sync.Mutex
	now    func() time.Time
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events: make(map[string]*models.Event),
		locks:  make(map[string]*sync.Mutex),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryEventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return event.Clone(), nil
}

func (r *MemoryEventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]models.Event, 0, len(r.events))
	for _, event := range r.events {
		if filter.CreatedBy != "" && event.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.ParticipantID != "" && !event.Participants.Has(filter.ParticipantID) {
			continue
		}
		if filter.FromDate != "" && event.Date < filter.FromDate {
			continue
		}
		out = append(out, *event.Clone())
	}
	r.mu.RUnlock()

	descending := filter.ParticipantID != ""
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			if descending {
				return out[i].Date > out[j].Date
			}
			return out[i].Date < out[j].Date
		}
		if descending {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryEventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.AttendanceLog == nil {
		event.AttendanceLog = []models.AttendanceMark{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event.Clone()
	r.locks[event.ID] = &sync.Mutex{}
	return nil
}

// Update runs mutate against a private copy of the current aggregate while
// holding the event's lock and stores the copy only when mutate succeeds.
func (r *MemoryEventRepository) Update(ctx context.Context, id string, mutate EventMutator) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, ok := r.lockFor(id)
	if !ok {
		return nil, ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	stored, ok := r.events[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID = stored.ID
	working.CreatedBy = stored.CreatedBy
	working.CreatedAt = stored.CreatedAt
	working.UpdatedAt = r.now()

	r.mu.Lock()
	r.events[id] = working.Clone()
	r.mu.Unlock()
	return working, nil
}

func (r *MemoryEventRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, ok := r.lockFor(id)
	if !ok {
		return ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	delete(r.locks, id)
	return nil
}

func (r *MemoryEventRepository) lockFor(id string) (*sync.Mutex, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lock, ok := r.locks[id]
	return lock, ok
}
