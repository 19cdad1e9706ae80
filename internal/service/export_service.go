package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-events-api/internal/dto"
	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/export"
)

// Supported roster formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportConfig tunes roster exports.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportDownload is an opened export file ready for streaming.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders attendance rosters and hands out signed download links.
type ExportService struct {
	store     EventStore
	storage   fileStorage
	signer    downloadSigner
	renderers map[string]datasetRenderer
	clock     Clock
	cfg       ExportConfig
	metrics   *MetricsService
	audit     auditor
	logger    *zap.Logger
}

func NewExportService(store EventStore, storage fileStorage, signer downloadSigner, cfg ExportConfig, clock Clock, metrics *MetricsService, audit auditWriter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	return &ExportService{
		store:   store,
		storage: storage,
		signer:  signer,
		renderers: map[string]datasetRenderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		clock:   clock,
		cfg:     cfg,
		metrics: metrics,
		audit:   auditor{writer: audit, logger: logger, agent: "export-service"},
		logger:  logger,
	}
}

// ExportAttendance renders the event's roster in the requested format.
func (s *ExportService) ExportAttendance(ctx context.Context, eventID, format string, actor models.Principal) (*dto.ExportResponse, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	event, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, storeError(err, "failed to load event")
	}
	dataset := rosterDataset(event)
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}

	filename := fmt.Sprintf("attendance/%s-%s.%s", event.ID, s.clock.Now().UTC().Format("20060102T150405"), renderer.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.logger.Error("failed to store roster", zap.String("event_id", event.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to store roster")
	}
	token, expiresAt, err := s.signer.Generate(event.ID, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}

	s.metrics.RecordExport(format)
	s.audit.emit(ctx, &actor, models.AuditActionAttendanceExport, event.ID, map[string]string{"format": format})
	return &dto.ExportResponse{
		EventID:     event.ID,
		Format:      format,
		Rows:        len(dataset.Rows),
		DownloadURL: fmt.Sprintf("%s/exports/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates a download token and opens the file it points at.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	contentType := "application/octet-stream"
	for _, r := range s.renderers {
		if strings.HasSuffix(relPath, "."+r.Extension()) {
			contentType = r.ContentType()
		}
	}
	return &ExportDownload{File: file, Filename: relPath[strings.LastIndex(relPath, "/")+1:], ContentType: contentType}, nil
}

// CleanupExpired removes roster files older than the link lifetime.
func (s *ExportService) CleanupExpired() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export files removed", zap.Int("count", len(deleted)))
	}
}

func rosterDataset(event *models.Event) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Attendance - %s (%s)", event.Title, event.Date),
		Headers: []string{"Name", "Email", "Registered At", "Attended", "Marked At", "Certificate"},
	}
	marked := make(map[string]time.Time, len(event.AttendanceLog))
	for _, mark := range event.AttendanceLog {
		marked[mark.UserID] = mark.MarkedAt
	}
	for _, p := range event.Participants.All() {
		markedAt := ""
		if t, ok := marked[p.UserID]; ok {
			markedAt = t.UTC().Format(time.RFC3339)
		}
		certificate := ""
		if p.CertificateURL != nil {
			certificate = *p.CertificateURL
		}
		data.AddRow(p.Name, p.Email, p.RegisteredAt.UTC().Format(time.RFC3339), yesNo(p.Attended), markedAt, certificate)
	}
	return data
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
