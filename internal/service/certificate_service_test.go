package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-events-api/internal/models"
	"github.com/noah-isme/campus-events-api/internal/repository"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/export"
	"github.com/noah-isme/campus-events-api/pkg/jobs"
)

type rendererSpy struct {
	contents []export.CertificateContent
	onRender func(export.CertificateContent)
}

func (r *rendererSpy) Render(content export.CertificateContent) ([]byte, error) {
	r.contents = append(r.contents, content)
	if r.onRender != nil {
		r.onRender(content)
	}
	return []byte("%PDF-fake"), nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type certificateFixture struct {
	svc      *CertificateService
	store    *repository.MemoryEventRepository
	media    *mediaStub
	renderer *rendererSpy
	audit    *auditStub
}

func newCertificateFixture(t *testing.T) certificateFixture {
	t.Helper()
	store := repository.NewMemoryEventRepository()
	media := newMediaStub()
	renderer := &rendererSpy{}
	audit := &auditStub{}
	svc := NewCertificateService(store, renderer, media, "Computing Society", nil, NewMetricsService(), audit, nil)
	return certificateFixture{svc: svc, store: store, media: media, renderer: renderer, audit: audit}
}

func (f certificateFixture) eventWith(t *testing.T, participants ...models.Participant) *models.Event {
	t.Helper()
	event := seedEvent(t, f.store, &models.Event{Title: "Hackathon", Date: "2025-01-10", Time: "14:00", RequiresAttendance: true})
	_, err := f.store.Update(context.Background(), event.ID, func(e *models.Event) error {
		for _, p := range participants {
			e.Participants.Add(p)
			if p.Attended {
				e.AttendanceLog = append(e.AttendanceLog, models.AttendanceMark{UserID: p.UserID, MarkedAt: utc(2025, 1, 10, 14, 0)})
			}
		}
		return nil
	})
	require.NoError(t, err)
	return event
}

func TestIssueCertificatesNoAttendees(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t, models.Participant{UserID: "stu-1", Name: "Ada"})

	run, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Zero(t, run.Issued)
	assert.Zero(t, run.Failed)
	assert.Zero(t, f.media.puts())
	assert.Empty(t, f.renderer.contents)
	assert.Empty(t, f.audit.actions())
}

func TestIssueCertificatesIsIdempotent(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t,
		models.Participant{UserID: "stu-1", Name: "Ada", Attended: true},
		models.Participant{UserID: "stu-2", Name: "Linus"},
	)

	run, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Issued)
	require.Len(t, f.renderer.contents, 1)
	assert.Equal(t, export.CertificateContent{Recipient: "Ada", EventName: "Hackathon", EventDate: "January 10, 2025", Organizer: "Computing Society"}, f.renderer.contents[0])

	first, err := f.store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	issued, _ := first.Participants.Get("stu-1")
	require.True(t, issued.CertificateIssued)
	require.NotNil(t, issued.CertificateURL)
	assert.Equal(t, "http://media.test/certificates/"+event.ID+"/stu-1.pdf", *issued.CertificateURL)

	again, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Zero(t, again.Issued)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, f.renderer.contents, 1)
	assert.Equal(t, 1, f.media.puts())

	second, err := f.store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Participants.All(), second.Participants.All())
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestIssueCertificatesSkipsConcurrentlyIssued(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t,
		models.Participant{UserID: "stu-1", Name: "Ada", Attended: true},
		models.Participant{UserID: "stu-2", Name: "Linus", Attended: true},
	)
	other := "http://media.test/other.pdf"
	f.renderer.onRender = func(content export.CertificateContent) {
		if content.Recipient != "Ada" {
			return
		}
		_, err := f.store.Update(context.Background(), event.ID, func(e *models.Event) error {
			e.Participants.Update("stu-1", func(p *models.Participant) {
				p.CertificateIssued = true
				p.CertificateURL = &other
			})
			return nil
		})
		require.NoError(t, err)
	}

	run, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Issued)
	assert.Equal(t, 1, run.Skipped)
	assert.Zero(t, run.Failed)

	stored, err := f.store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	ada, _ := stored.Participants.Get("stu-1")
	require.NotNil(t, ada.CertificateURL)
	assert.Equal(t, other, *ada.CertificateURL)
}

func TestIssueCertificatesRetriesAfterStoreFailure(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t, models.Participant{UserID: "stu-1", Name: "Ada", Attended: true})
	f.media.failFor["stu-1"] = true

	run, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.Failed)

	stored, err := f.store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	p, _ := stored.Participants.Get("stu-1")
	assert.False(t, p.CertificateIssued)
	assert.Nil(t, p.CertificateURL)

	f.media.failFor["stu-1"] = false
	run, err = f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Issued)

	stored, err = f.store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	p, _ = stored.Participants.Get("stu-1")
	assert.True(t, p.CertificateIssued)
	require.NotNil(t, p.CertificateURL)
}

func TestIssueCertificatesIsolatesFailures(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t,
		models.Participant{UserID: "stu-1", Name: "Ada", Attended: true},
		models.Participant{UserID: "stu-2", Name: "Linus", Attended: true},
	)
	f.media.failFor["stu-1"] = true

	run, err := f.svc.IssueCertificates(context.Background(), event.ID, &adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Issued)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "stu-1", run.Failures[0].UserID)

	byID := map[string]models.Participant{}
	for _, p := range run.Participants {
		byID[p.UserID] = p
	}
	assert.False(t, byID["stu-1"].CertificateIssued)
	assert.True(t, byID["stu-2"].CertificateIssued)
}

func TestIssueCertificatesUnknownEvent(t *testing.T) {
	f := newCertificateFixture(t)
	_, err := f.svc.IssueCertificates(context.Background(), "missing", &adminPrincipal)
	assert.ErrorIs(t, err, appErrors.ErrEventNotFound)
}

func TestCertificateJobRetriesPartialFailure(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t,
		models.Participant{UserID: "stu-1", Name: "Ada", Attended: true},
		models.Participant{UserID: "stu-2", Name: "Linus", Attended: true},
	)
	f.media.failFor["stu-2"] = true

	job := jobs.Job{ID: "job-1", Payload: certificateJob{EventID: event.ID, Actor: adminPrincipal}}
	require.Error(t, f.svc.HandleJob(context.Background(), job))

	f.media.failFor["stu-2"] = false
	require.NoError(t, f.svc.HandleJob(context.Background(), job))

	missing := jobs.Job{ID: "job-2", Payload: certificateJob{EventID: "gone"}}
	require.NoError(t, f.svc.HandleJob(context.Background(), missing))
}

func TestCertificateEnqueue(t *testing.T) {
	f := newCertificateFixture(t)
	event := f.eventWith(t)

	_, err := f.svc.Enqueue(context.Background(), event.ID, adminPrincipal)
	require.Error(t, err)

	queue := &queueStub{}
	f.svc.UseQueue(queue)
	resp, err := f.svc.Enqueue(context.Background(), event.ID, adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "certificates:"+event.ID, queue.jobs[0].Key)

	queue.err = jobs.ErrDuplicate
	resp, err = f.svc.Enqueue(context.Background(), event.ID, adminPrincipal)
	require.NoError(t, err)
	assert.Equal(t, "already_queued", resp.Status)

	queue.err = errors.New("stopped")
	_, err = f.svc.Enqueue(context.Background(), event.ID, adminPrincipal)
	require.Error(t, err)

	_, err = f.svc.Enqueue(context.Background(), "missing", adminPrincipal)
	assert.ErrorIs(t, err, appErrors.ErrEventNotFound)
}
