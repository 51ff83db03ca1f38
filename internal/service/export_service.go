package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"calexport/internal/domain"
	"calexport/internal/render"
	"calexport/internal/source"
	"calexport/internal/storage"
)

// ErrNoEvents means the caller asked to export an empty selection. A
// validation error, not a pipeline failure: nothing is rendered or sent.
var ErrNoEvents = errors.New("no events selected for export")

// Uploader sends a rendered document to a remote service.
type Uploader interface {
	UploadDocument(ctx context.Context, doc domain.RenderedDocument) (string, error)
	TestCredentials(ctx context.Context) bool
}

// ExportService composes source, renderer and uploader for a single user
// action. It holds no long-lived pipeline state.
type ExportService struct {
	source   source.Source
	uploader Uploader
	storage  *storage.Storage
	service  domain.ServiceKind
}

// NewExportService creates the pipeline. storage may be nil to skip the
// audit log.
func NewExportService(src source.Source, uploader Uploader, store *storage.Storage) *ExportService {
	return &ExportService{
		source:   src,
		uploader: uploader,
		storage:  store,
		service:  domain.ServiceClaude,
	}
}

// Fetch connects to the calendar host, retrieves events overlapping the
// range and releases the connection. A fresh handle is acquired per call
// and closed on every exit path.
func (s *ExportService) Fetch(ctx context.Context, rng domain.DateRange) ([]domain.CalendarEvent, error) {
	h, err := s.source.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.source.Close(h)

	return s.source.FetchEvents(ctx, h, rng)
}

// Export renders the selected events and uploads the document. Upload
// failures come back as a failed UploadResult rather than an error, so
// the caller can show and optionally retry them.
func (s *ExportService) Export(ctx context.Context, events []domain.CalendarEvent, format domain.Format) (*domain.UploadResult, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	doc, err := render.Render(events, format, time.Now())
	if err != nil {
		return nil, err
	}

	var result *domain.UploadResult
	fileID, err := s.uploader.UploadDocument(ctx, doc)
	if err != nil {
		result = domain.ErrorResult(
			fmt.Sprintf("failed to upload %d events: %v", len(events), err), s.service)
	} else {
		result = domain.SuccessResult(fileID,
			fmt.Sprintf("successfully uploaded %d events", len(events)), s.service)
	}
	result.Content = doc.Content

	s.record(result, format, len(events))
	return result, nil
}

// Run is the full pipeline for one user action: fetch the range, export
// everything that came back.
func (s *ExportService) Run(ctx context.Context, rng domain.DateRange, format domain.Format) (*domain.UploadResult, error) {
	events, err := s.Fetch(ctx, rng)
	if err != nil {
		return nil, err
	}
	return s.Export(ctx, events, format)
}

func (s *ExportService) record(result *domain.UploadResult, format domain.Format, count int) {
	if s.storage == nil {
		return
	}
	rec := &storage.ExportRecord{
		Service:    string(result.Service),
		Format:     string(format),
		EventCount: count,
		Success:    result.Success,
		FileID:     result.FileID,
		Message:    result.Message,
		ExportedAt: result.ExportedAt,
	}
	if err := s.storage.RecordExport(rec); err != nil {
		log.Printf("service: record export: %v", err)
	}
}
