package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type timetableFinder interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders timetable versions to files and hands out signed download links.
type ExportService struct {
	timetables timetableFinder
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(timetables timetableFinder, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Export renders the timetable version and stores the result behind a signed token.
func (s *ExportService) Export(ctx context.Context, timetableID string, req dto.ExportTimetableRequest) (*dto.ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	format := export.Format(req.Format)
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	dataset := TimetableDataset(timetable.Schedule)
	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, exportTitle(timetable))
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	exportID := strings.ReplaceAll(uuid.NewString(), "-", "")
	filename := fmt.Sprintf("%s/%s_v%d_%s.%s", time.Now().UTC().Format("20060102"), sanitizeFilename(timetable.GroupKey), timetable.Version, exportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("timetable exported",
		zap.String("timetable_id", timetable.ID),
		zap.String("format", string(format)),
		zap.String("path", relPath),
	)
	return &dto.ExportResult{
		ExportID:    exportID,
		Format:      string(format),
		Token:       token,
		DownloadURL: fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Resolve validates a download token.
func (s *ExportService) Resolve(token string) (storage.SignedToken, error) {
	signed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return storage.SignedToken{}, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return storage.SignedToken{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	return signed, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes rendered files older than the result TTL.
func (s *ExportService) Cleanup() (int, error) {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

// TimetableDataset lays a schedule out as one row per weekday and one column per period.
// Cells hold "subject / faculty / room" and the days follow the teaching week order.
func TimetableDataset(schedule models.Schedule) export.Dataset {
	periods := models.DefaultPeriodsPerDay
	for _, slots := range schedule {
		for key := range slots {
			if n, err := models.ParsePeriodKey(key); err == nil && n > periods {
				periods = n
			}
		}
	}

	headers := make([]string, 0, periods+1)
	headers = append(headers, "Day")
	for p := 1; p <= periods; p++ {
		headers = append(headers, models.PeriodKey(p))
	}

	rows := make([]map[string]string, 0, len(models.Weekdays))
	for _, day := range models.Weekdays {
		row := map[string]string{"Day": day}
		for p := 1; p <= periods; p++ {
			key := models.PeriodKey(p)
			row[key] = formatCell(schedule.Entry(day, key))
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCell(entry *models.SlotEntry) string {
	if entry == nil {
		return ""
	}
	parts := []string{entry.SubjectName}
	faculty := entry.FacultyName
	if entry.SecondaryFacultyName != "" {
		faculty += " & " + entry.SecondaryFacultyName
	}
	if faculty != "" {
		parts = append(parts, faculty)
	}
	if entry.RoomNumber != "" {
		parts = append(parts, entry.RoomNumber)
	}
	return strings.Join(parts, " / ")
}

func exportTitle(timetable *models.Timetable) string {
	return fmt.Sprintf("%s (v%d)", timetable.ClassLabel(), timetable.Version)
}

func sanitizeFilename(name string) string {
	if name == "" {
		return "timetable"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
