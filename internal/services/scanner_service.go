package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgedesk/scanforge/internal/engine"
	"github.com/edgedesk/scanforge/internal/metrics"
	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/registry"
	"github.com/edgedesk/scanforge/internal/repo"
	"github.com/edgedesk/scanforge/internal/utils"
)

// ErrBackendUnavailable marks failures reaching the execution backend, as
// opposed to request validation failures.
var ErrBackendUnavailable = errors.New("execution backend unavailable")

// Executor defines the execution backend submission behaviour.
type Executor interface {
	Execute(ctx context.Context, req models.ScanRequest) (repo.SubmitResult, error)
}

// ScannerService is the facade the API layer talks to. It owns the scan
// tracker so job events can feed the session registry and metrics.
type ScannerService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	executor  Executor
	tracker   *engine.Tracker
	params    *registry.ParameterRegistry
	columns   *registry.ColumnRegistry
	sessions  *registry.SessionRegistry
	latencies *utils.LatencyTracker
}

// NewScannerService constructs the service facade and its tracker.
func NewScannerService(
	logger *slog.Logger,
	pipeline *engine.Pipeline,
	executor Executor,
	statusClient engine.StatusClient,
	trackerOpts engine.TrackerOptions,
	params *registry.ParameterRegistry,
	columns *registry.ColumnRegistry,
	sessions *registry.SessionRegistry,
) *ScannerService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ScannerService{
		logger:    logger,
		pipeline:  pipeline,
		executor:  executor,
		params:    params,
		columns:   columns,
		sessions:  sessions,
		latencies: utils.NewLatencyTracker(1024),
	}
	s.tracker = engine.NewTracker(logger, statusClient, trackerOpts, s.onJobEvent)
	return s
}

// Detect runs heuristic scanner type detection over free text.
func (s *ScannerService) Detect(text string) (models.DetectionResult, error) {
	if s.pipeline == nil {
		return models.DetectionResult{}, utils.NewAppError("Detect", "format pipeline not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return models.DetectionResult{}, utils.NewAppError("Detect", "text is required", nil)
	}
	result, err := s.pipeline.Detect(text)
	if err != nil {
		return models.DetectionResult{}, err
	}
	metrics.ObserveDetection(result.ScannerType != "")
	return result, nil
}

// Format turns free text into scanner code.
func (s *ScannerService) Format(ctx context.Context, req models.FormatRequest) (models.FormatResult, error) {
	if s.pipeline == nil {
		return models.FormatResult{}, utils.NewAppError("Format", "format pipeline not configured", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return models.FormatResult{}, utils.NewAppError("Format", "text is required", nil)
	}

	start := time.Now()
	result, err := s.pipeline.Format(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("format pipeline failed", slog.Any("error", err))
		return models.FormatResult{}, utils.NewAppError("Format", "could not format scanner text", err)
	}

	s.latencies.Observe(duration)
	metrics.ObserveFormat(duration, string(result.Source))
	metrics.ObserveDetection(result.Detection.ScannerType != "")
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("format latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
	return result, nil
}

// StartScan validates the request, formats text into code when needed,
// submits to the execution backend, and begins tracking. The returned session
// links back to the backend scan id.
func (s *ScannerService) StartScan(ctx context.Context, req models.ScanRequest) (models.ScanSession, error) {
	if s.executor == nil {
		return models.ScanSession{}, utils.NewAppError("StartScan", "execution backend not configured", nil)
	}
	if err := utils.ValidateDateRange(req.StartDate, req.EndDate); err != nil {
		return models.ScanSession{}, utils.NewAppError("StartScan", err.Error(), err)
	}

	scannerType := req.ScannerType
	if req.Code == "" {
		if strings.TrimSpace(req.Text) == "" {
			return models.ScanSession{}, utils.NewAppError("StartScan", "either code or text is required", nil)
		}
		formatted, err := s.Format(ctx, models.FormatRequest{Text: req.Text})
		if err != nil {
			return models.ScanSession{}, err
		}
		req.Code = formatted.Code
		if scannerType == "" {
			scannerType = formatted.Detection.ScannerType
		}
	}
	req.ScannerType = scannerType

	submit, err := s.executor.Execute(ctx, req)
	if err != nil {
		s.logger.Error("scan submission failed", slog.Any("error", err))
		return models.ScanSession{}, utils.NewAppError("StartScan", "scan submission failed", errors.Join(ErrBackendUnavailable, err))
	}

	job := models.ScanJob{
		ID:          submit.ScanID,
		ScannerType: scannerType,
		State:       models.ScanQueued,
	}
	if len(submit.Results) > 0 {
		// Small ranges complete synchronously; no poll loop needed.
		job.State = models.ScanComplete
		job.Progress = 100
		job.Results = submit.Results
		job.TotalFound = submit.TotalFound
	}

	session := s.sessions.Create(scannerType, req.Code, req.Filters)
	s.sessions.UpdateState(session.ID, job.State, submit.ScanID)

	if err := s.tracker.Submit(job); err != nil {
		return models.ScanSession{}, fmt.Errorf("track scan %q: %w", submit.ScanID, err)
	}

	session, _ = s.sessions.Get(session.ID)
	s.logger.Info("scan started",
		slog.String("session_id", session.ID),
		slog.String("scan_id", submit.ScanID),
		slog.String("scanner_type", scannerType))
	return session, nil
}

// GetScan returns a tracked job by backend scan id, falling back to session
// id lookup.
func (s *ScannerService) GetScan(id string) (models.ScanJob, bool) {
	if job, ok := s.tracker.Get(id); ok {
		return job, true
	}
	if session, ok := s.sessions.Get(id); ok && session.ScanID != "" {
		return s.tracker.Get(session.ScanID)
	}
	return models.ScanJob{}, false
}

// ListScans returns all tracked jobs, newest first.
func (s *ScannerService) ListScans() []models.ScanJob {
	return s.tracker.List()
}

// CancelScan stops a running job by backend scan id or session id.
func (s *ScannerService) CancelScan(ctx context.Context, id string) error {
	scanID := id
	if _, ok := s.tracker.Get(scanID); !ok {
		session, ok := s.sessions.Get(id)
		if !ok || session.ScanID == "" {
			return utils.NewAppError("CancelScan", fmt.Sprintf("scan %q not found", id), nil)
		}
		scanID = session.ScanID
	}
	if err := s.tracker.Cancel(ctx, scanID); err != nil {
		return utils.NewAppError("CancelScan", "cancel request failed", err)
	}
	return nil
}

// Patterns returns the detection pattern library.
func (s *ScannerService) Patterns() []models.ScannerPattern {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Library()
}

// Parameters exposes the parameter registry.
func (s *ScannerService) Parameters() *registry.ParameterRegistry { return s.params }

// Columns exposes the column registry.
func (s *ScannerService) Columns() *registry.ColumnRegistry { return s.columns }

// Sessions exposes the session registry.
func (s *ScannerService) Sessions() *registry.SessionRegistry { return s.sessions }

// Close stops the tracker's poll loops.
func (s *ScannerService) Close() {
	if s.tracker != nil {
		s.tracker.Close()
	}
}

// onJobEvent mirrors tracker transitions into the session registry and the
// terminal-state metrics.
func (s *ScannerService) onJobEvent(job models.ScanJob) {
	if s.sessions != nil {
		s.sessions.UpdateByScanID(job.ID, job.State)
	}
	if job.State.Terminal() {
		metrics.ObserveScanTerminal(string(job.State))
		s.logger.Info("scan finished",
			slog.String("scan_id", job.ID),
			slog.String("state", string(job.State)),
			slog.Int("total_found", job.TotalFound))
	}
}
