package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgedesk/scanforge/internal/codegen"
	"github.com/edgedesk/scanforge/internal/detect"
	"github.com/edgedesk/scanforge/internal/engine"
	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/registry"
	"github.com/edgedesk/scanforge/internal/repo"
	"github.com/edgedesk/scanforge/internal/services"
)

type stubExecutor struct {
	result repo.SubmitResult
	err    error
}

func (e *stubExecutor) Execute(ctx context.Context, req models.ScanRequest) (repo.SubmitResult, error) {
	return e.result, e.err
}

type stubStatus struct {
	result repo.StatusResult
}

func (s *stubStatus) Status(ctx context.Context, scanID string) (repo.StatusResult, error) {
	return s.result, nil
}

func (s *stubStatus) Cancel(ctx context.Context, scanID string) error { return nil }

func newTestHandler(t *testing.T, executor *stubExecutor, status *stubStatus) (*Handler, *services.ScannerService) {
	t.Helper()
	detector := detect.NewDetector(nil, detect.BuiltinLibrary(), detect.Options{})
	pipeline := engine.NewPipeline(nil, detector, codegen.NewGenerator(), nil)
	svc := services.NewScannerService(
		nil,
		pipeline,
		executor,
		status,
		engine.TrackerOptions{PollInterval: 5 * time.Millisecond},
		registry.NewParameterRegistry(nil, nil),
		registry.NewColumnRegistry(nil, nil),
		registry.NewSessionRegistry(nil, nil),
	)
	t.Cleanup(svc.Close)
	advice, err := engine.NewAdviceEngine("", nil)
	if err != nil {
		t.Fatalf("NewAdviceEngine: %v", err)
	}
	return NewHandler(nil, svc, advice), svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &stubExecutor{}, &stubStatus{})
	rec := doJSON(t, h.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestDetectEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &stubExecutor{}, &stubStatus{})
	router := h.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scanners/detect", map[string]string{
		"text": "slope5d >= 1.5\natr_ratio >= 0.9\nclose > ema9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var result models.DetectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ScannerType != "backside_momentum" {
		t.Fatalf("detected %q", result.ScannerType)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/scanners/detect", map[string]string{"text": " "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank text status = %d", rec.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errResp["error"] == "" {
		t.Fatalf("error body missing message: %v", errResp)
	}
}

func TestFormatEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &stubExecutor{}, &stubStatus{})
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/v1/scanners/format", models.FormatRequest{
		Text: "gap_pct >= 2.5\nvolume >= 500000\ngap_min = 2.5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var result models.FormatResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Code == "" || result.Source != models.FormatSourceTemplate {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestScanLifecycleEndpoints(t *testing.T) {
	executor := &stubExecutor{result: repo.SubmitResult{ScanID: "scan-1"}}
	status := &stubStatus{result: repo.StatusResult{State: models.ScanRunning, Progress: 50}}
	h, _ := newTestHandler(t, executor, status)
	router := h.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		Code:      "# scanner",
		StartDate: "2024-01-02",
		EndDate:   "2024-01-31",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d body = %s", rec.Code, rec.Body.String())
	}
	var session models.ScanSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.ScanID != "scan-1" {
		t.Fatalf("session not linked: %+v", session)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/scan-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var job scanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != "scan-1" {
		t.Fatalf("unexpected job: %+v", job)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/scans/scan-1/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing scan status = %d", rec.Code)
	}
}

func TestStartScanErrorStatuses(t *testing.T) {
	executor := &stubExecutor{err: errors.New("connection refused")}
	h, _ := newTestHandler(t, executor, &stubStatus{})
	router := h.Router()

	// Validation failures are the client's fault.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code/text status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		Code:      "# scanner",
		StartDate: "2024-02-01",
		EndDate:   "2024-01-01",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted date range status = %d, want 400", rec.Code)
	}

	// Backend submission failures are upstream's fault.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		Code:      "# scanner",
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("backend failure status = %d, want 502", rec.Code)
	}
}

func TestFailedScanCarriesSuggestions(t *testing.T) {
	executor := &stubExecutor{result: repo.SubmitResult{ScanID: "scan-f"}}
	status := &stubStatus{result: repo.StatusResult{
		State: models.ScanFailed,
		Error: "scan timed out waiting for backend",
	}}
	h, svc := newTestHandler(t, executor, status)
	router := h.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		Code:      "# scanner",
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d", rec.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := svc.GetScan("scan-f"); ok && job.State == models.ScanFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/scan-f", nil)
	var job scanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.State != models.ScanFailed {
		t.Fatalf("state = %q", job.State)
	}
	if len(job.Suggestions) == 0 {
		t.Fatalf("failed job should carry suggestions")
	}
}

func TestParameterEndpoints(t *testing.T) {
	h, _ := newTestHandler(t, &stubExecutor{}, &stubStatus{})
	router := h.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/parameters/?scanner_type=gap_and_go", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var defs []models.ParameterDefinition
	if err := json.Unmarshal(rec.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, def := range defs {
		if def.ID == "ema_fast" {
			t.Fatalf("filter leaked non-matching parameter")
		}
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/parameters/", models.ParameterDefinition{
		ID: "rvol_min", Label: "RVol Min", Type: "number", Default: 1.5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/parameters/rvol_min", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/parameters/rvol_min", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	executor := &stubExecutor{result: repo.SubmitResult{ScanID: "scan-s"}}
	status := &stubStatus{result: repo.StatusResult{State: models.ScanRunning}}
	h, _ := newTestHandler(t, executor, status)
	router := h.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans/", models.ScanRequest{
		Code:      "# scanner",
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
	})
	var session models.ScanSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+session.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+session.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session status = %d", rec.Code)
	}
}
