package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/export"
	"github.com/noah-isme/campus-events-api/pkg/jobs"
)

// JobTypeCertificates identifies queued issuance passes.
const JobTypeCertificates = "certificates.issue"

type certificateRenderer interface {
	Render(content export.CertificateContent) ([]byte, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// CertificateService renders and stores participation certificates for
// attendees that do not have one yet.
type CertificateService struct {
	store     EventStore
	renderer  certificateRenderer
	media     mediaStore
	queue     jobQueue
	organizer string
	cache     *CacheService
	metrics   *MetricsService
	audit     auditor
	logger    *zap.Logger
}

func NewCertificateService(store EventStore, renderer certificateRenderer, media mediaStore, organizer string, cache *CacheService, metrics *MetricsService, audit auditWriter, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewCertificateRenderer()
	}
	return &CertificateService{
		store:     store,
		renderer:  renderer,
		media:     media,
		organizer: organizer,
		cache:     cache,
		metrics:   metrics,
		audit:     auditor{writer: audit, logger: logger, agent: "certificate-service"},
		logger:    logger,
	}
}

// UseQueue enables asynchronous issuance.
func (s *CertificateService) UseQueue(queue jobQueue) {
	s.queue = queue
}

// IssueCertificates runs one issuance pass. Each participant's result is
// committed on its own, so one failure never undoes or blocks another, and
// participants that already hold a certificate are left alone.
func (s *CertificateService) IssueCertificates(ctx context.Context, eventID string, actor *models.Principal) (*models.CertificateRun, error) {
	event, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}

	run := &models.CertificateRun{EventID: eventID}
	for _, p := range event.Participants.All() {
		if !p.EligibleForCertificate() {
			if p.CertificateIssued {
				run.Skipped++
			}
			continue
		}
		committed, err := s.issueOne(ctx, event, p)
		if err != nil {
			if errors.Is(err, appErrors.ErrEventNotFound) {
				return nil, err
			}
			run.Failed++
			run.Failures = append(run.Failures, models.CertificateFailure{UserID: p.UserID, Reason: err.Error()})
			s.logger.Warn("certificate issuance failed", zap.String("event_id", eventID), zap.String("user_id", p.UserID), zap.Error(err))
			continue
		}
		if !committed {
			// Issued by a concurrent pass, or the registration went away.
			run.Skipped++
			continue
		}
		run.Issued++
	}

	s.metrics.RecordCertificates(OutcomeSuccess, run.Issued)
	s.metrics.RecordCertificates(OutcomeFailed, run.Failed)

	latest := event
	if run.Issued > 0 {
		s.cache.Invalidate(ctx, cachePatternEvents)
		s.audit.emit(ctx, actor, models.AuditActionCertificateIssue, eventID, map[string]int{"issued": run.Issued, "failed": run.Failed})
		if reloaded, err := s.store.Get(ctx, eventID); err == nil {
			latest = reloaded
		}
	}
	run.Participants = latest.Participants.All()

	if run.Failed > 0 && run.Issued == 0 {
		return run, appErrors.Internal(fmt.Errorf("%d certificates failed", run.Failed), "Failed to generate certificates")
	}
	return run, nil
}

// Enqueue schedules an issuance pass on the background queue. A pass already
// pending for the event is reused.
func (s *CertificateService) Enqueue(ctx context.Context, eventID string, actor models.Principal) (*dto.CertificateJobResponse, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "certificate queue not configured")
	}
	if _, err := s.store.Get(ctx, eventID); err != nil {
		return nil, storeError(err, "failed to load event")
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Key:     "certificates:" + eventID,
		Type:    JobTypeCertificates,
		Payload: certificateJob{EventID: eventID, Actor: actor},
	}
	switch err := s.queue.Enqueue(job); {
	case errors.Is(err, jobs.ErrDuplicate):
		return &dto.CertificateJobResponse{EventID: eventID, Status: "already_queued"}, nil
	case err != nil:
		return nil, appErrors.Internal(err, "failed to queue certificate generation")
	}
	return &dto.CertificateJobResponse{EventID: eventID, JobID: job.ID, Status: "queued"}, nil
}

type certificateJob struct {
	EventID string
	Actor   models.Principal
}

// HandleJob is the queue handler. Partial failures are returned as errors so
// the queue retries the remaining participants.
func (s *CertificateService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(certificateJob)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.ID)
	}
	run, err := s.IssueCertificates(ctx, payload.EventID, &payload.Actor)
	if errors.Is(err, appErrors.ErrEventNotFound) {
		s.logger.Info("certificate job dropped, event removed", zap.String("event_id", payload.EventID))
		return nil
	}
	if err != nil {
		return err
	}
	if run.Failed > 0 {
		return fmt.Errorf("%d certificates pending retry", run.Failed)
	}
	return nil
}

// issueOne reports whether this call recorded the certificate.
func (s *CertificateService) issueOne(ctx context.Context, event *models.Event, p models.Participant) (bool, error) {
	pdf, err := s.renderer.Render(export.CertificateContent{
		Recipient: p.Name,
		EventName: event.Title,
		EventDate: formatEventDate(event.Date),
		Organizer: s.organizer,
	})
	if err != nil {
		return false, fmt.Errorf("render: %w", err)
	}

	// One object per participant and event, so a rerun overwrites instead of duplicating.
	key := fmt.Sprintf("certificates/%s/%s.pdf", event.ID, p.UserID)
	url, err := s.media.Put(ctx, key, pdf)
	if err != nil {
		return false, fmt.Errorf("store: %w", err)
	}

	committed := false
	_, err = s.store.Update(ctx, event.ID, func(e *models.Event) error {
		committed = false
		e.Participants.Update(p.UserID, func(current *models.Participant) {
			if !current.EligibleForCertificate() {
				return
			}
			link := url
			current.CertificateURL = &link
			current.CertificateIssued = true
			committed = true
		})
		return nil
	})
	if err != nil {
		return false, storeError(err, "failed to record certificate")
	}
	return committed, nil
}

func formatEventDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}
