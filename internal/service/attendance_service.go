package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

// Attendance entry paths, used as metric labels.
const (
	AttendanceSourceDirect = "direct"
	AttendanceSourceQR     = "qr"
)

const qrImageSize = 256

type qrSigner interface {
	Sign(eventID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// AttendanceService marks attendance directly or through attendance QR codes.
type AttendanceService struct {
	store       EventStore
	tokens      qrSigner
	schedule    models.Schedule
	clock       Clock
	frontendURL string
	cache       *CacheService
	metrics     *MetricsService
	audit       auditor
	logger      *zap.Logger
}

func NewAttendanceService(store EventStore, tokens qrSigner, schedule models.Schedule, clock Clock, frontendURL string, cache *CacheService, metrics *MetricsService, audit auditWriter, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &AttendanceService{
		store:       store,
		tokens:      tokens,
		schedule:    schedule,
		clock:       clock,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		cache:       cache,
		metrics:     metrics,
		audit:       auditor{writer: audit, logger: logger, agent: "attendance-service"},
		logger:      logger,
	}
}

// MarkAttendance is the direct path: the caller marks their own attendance.
func (s *AttendanceService) MarkAttendance(ctx context.Context, eventID string, student models.Principal) (*models.Event, error) {
	return s.mark(ctx, eventID, student, AttendanceSourceDirect)
}

// Scan resolves the event from a QR token and marks the scanning student.
func (s *AttendanceService) Scan(ctx context.Context, token string, student models.Principal) (*models.Event, error) {
	eventID, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.RecordAttendance(AttendanceSourceQR, OutcomeRejected)
		return nil, err
	}
	return s.mark(ctx, eventID, student, AttendanceSourceQR)
}

// IssueQRCode signs a short-lived token for the event and renders it as a PNG
// data URL.
func (s *AttendanceService) IssueQRCode(ctx context.Context, eventID string, actor models.Principal) (*dto.QRCodeResponse, error) {
	event, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	if !event.RequiresAttendance {
		return nil, appErrors.ErrAttendanceNotRequired
	}

	token, expiresAt, err := s.tokens.Sign(event.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign attendance token")
	}
	content := token
	scanURL := ""
	if s.frontendURL != "" {
		scanURL = fmt.Sprintf("%s/scan-attendance?token=%s", s.frontendURL, url.QueryEscape(token))
		content = scanURL
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render QR code")
	}

	s.logger.Info("attendance qr issued", zap.String("event_id", event.ID), zap.String("user_id", actor.ID), zap.Time("expires_at", expiresAt))
	return &dto.QRCodeResponse{
		EventID:   event.ID,
		Token:     token,
		ScanURL:   scanURL,
		QRCode:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AttendanceService) mark(ctx context.Context, eventID string, student models.Principal, source string) (*models.Event, error) {
	if strings.TrimSpace(student.ID) == "" {
		return nil, appErrors.ErrUnauthorized
	}

	updated, err := s.store.Update(ctx, eventID, func(e *models.Event) error {
		if !e.RequiresAttendance {
			return appErrors.ErrAttendanceNotRequired
		}
		if !e.Participants.Has(student.ID) {
			return appErrors.ErrNotRegistered
		}
		if e.HasAttendance(student.ID) {
			return appErrors.ErrAlreadyMarked
		}
		now := s.clock.Now()
		open, err := s.schedule.WithinAttendanceWindow(e, now)
		if err != nil {
			return appErrors.Internal(err, "event schedule is invalid")
		}
		if !open {
			return appErrors.ErrWindowClosed
		}

		e.AttendanceLog = append(e.AttendanceLog, models.AttendanceMark{UserID: student.ID, MarkedAt: now.UTC()})
		e.Participants.Update(student.ID, func(p *models.Participant) {
			p.Attended = true
			// A participant holding a certificate keeps it.
			if p.CertificateURL == nil {
				p.CertificateIssued = false
			}
		})
		return nil
	})
	if err != nil {
		s.metrics.RecordAttendance(source, outcomeFor(err))
		mapped := storeError(err, "failed to mark attendance")
		if appErrors.FromError(mapped).Status >= 500 {
			s.logger.Error("attendance failed", zap.String("event_id", eventID), zap.String("user_id", student.ID), zap.Error(err))
		}
		return nil, mapped
	}

	s.metrics.RecordAttendance(source, OutcomeSuccess)
	s.cache.Invalidate(ctx, cachePatternEvents)
	s.audit.emit(ctx, &student, models.AuditActionAttendanceMark, eventID, map[string]string{"source": source})
	return updated, nil
}
