package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/edgedesk/scanforge/internal/models"
)

// SubmitResult is the backend's acknowledgement of an execution request.
// Small date ranges may complete synchronously, in which case Results and
// TotalFound are already populated.
type SubmitResult struct {
	ScanID        string
	Results       []map[string]any
	TotalFound    int
	ExecutionTime float64
}

// StatusResult is one poll of a running execution.
type StatusResult struct {
	State      models.ScanState
	Progress   float64
	Message    string
	Error      string
	Results    []map[string]any
	TotalFound int
}

// ExecutionClient wraps the scan execution backend's HTTP API.
type ExecutionClient struct {
	baseURL     string
	executePath string
	statusPath  string
	cancelPath  string
	httpClient  *http.Client
}

// NewExecutionClient constructs a client targeting the configured backend.
func NewExecutionClient(baseURL, executePath, statusPath, cancelPath string, timeout time.Duration) *ExecutionClient {
	return &ExecutionClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		executePath: executePath,
		statusPath:  statusPath,
		cancelPath:  cancelPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Execute submits scanner code for a date range and returns the backend's
// scan id. A success:false body is a terminal failure, not a transport error
// to retry.
func (c *ExecutionClient) Execute(ctx context.Context, req models.ScanRequest) (SubmitResult, error) {
	if c == nil {
		return SubmitResult{}, fmt.Errorf("execution client not initialised")
	}
	if c.baseURL == "" {
		return SubmitResult{}, fmt.Errorf("execution backend base URL not configured")
	}

	payload := map[string]interface{}{
		"code":       req.Code,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
	}
	if req.ScannerType != "" {
		payload["scanner_type"] = req.ScannerType
	}
	if len(req.Filters) > 0 {
		payload["filters"] = req.Filters
	}
	if req.TimeoutSeconds > 0 {
		payload["timeout_seconds"] = req.TimeoutSeconds
	}

	var response struct {
		Success       bool             `json:"success"`
		ScanID        string           `json:"scan_id"`
		Error         string           `json:"error"`
		Results       []map[string]any `json:"results"`
		ExecutionTime float64          `json:"execution_time"`
		TotalFound    int              `json:"total_found"`
	}

	if err := c.postJSON(ctx, c.executeURL(), payload, &response); err != nil {
		return SubmitResult{}, fmt.Errorf("execution submit failed: %w", err)
	}
	if !response.Success {
		msg := response.Error
		if msg == "" {
			msg = "backend rejected scan"
		}
		return SubmitResult{}, fmt.Errorf("execution rejected: %s", msg)
	}
	if response.ScanID == "" {
		return SubmitResult{}, fmt.Errorf("execution backend returned no scan id")
	}
	return SubmitResult{
		ScanID:        response.ScanID,
		Results:       response.Results,
		TotalFound:    response.TotalFound,
		ExecutionTime: response.ExecutionTime,
	}, nil
}

// Status polls one execution and maps the backend status vocabulary into the
// local scan states.
func (c *ExecutionClient) Status(ctx context.Context, scanID string) (StatusResult, error) {
	if c == nil {
		return StatusResult{}, fmt.Errorf("execution client not initialised")
	}
	if c.baseURL == "" {
		return StatusResult{}, fmt.Errorf("execution backend base URL not configured")
	}
	if scanID == "" {
		return StatusResult{}, fmt.Errorf("scan id is required")
	}

	var response struct {
		Status          string           `json:"status"`
		ProgressPercent float64          `json:"progress_percent"`
		Message         string           `json:"message"`
		Error           string           `json:"error"`
		Results         []map[string]any `json:"results"`
		TotalFound      int              `json:"total_found"`
	}

	if err := c.getJSON(ctx, c.statusURL(scanID), &response); err != nil {
		return StatusResult{}, fmt.Errorf("execution status failed: %w", err)
	}

	state, err := mapRemoteStatus(response.Status)
	if err != nil {
		return StatusResult{}, err
	}
	result := StatusResult{
		State:      state,
		Progress:   response.ProgressPercent,
		Message:    response.Message,
		Error:      response.Error,
		Results:    response.Results,
		TotalFound: response.TotalFound,
	}
	if state == models.ScanComplete {
		result.Progress = 100
	}
	return result, nil
}

// Cancel asks the backend to stop a running execution.
func (c *ExecutionClient) Cancel(ctx context.Context, scanID string) error {
	if c == nil {
		return fmt.Errorf("execution client not initialised")
	}
	if c.baseURL == "" {
		return fmt.Errorf("execution backend base URL not configured")
	}
	if scanID == "" {
		return fmt.Errorf("scan id is required")
	}
	if err := c.postJSON(ctx, c.cancelURL(scanID), map[string]interface{}{}, nil); err != nil {
		return fmt.Errorf("execution cancel failed: %w", err)
	}
	return nil
}

// mapRemoteStatus translates the backend vocabulary. Unknown statuses are an
// error so a drifting backend surfaces loudly instead of wedging a job.
func mapRemoteStatus(status string) (models.ScanState, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "initializing":
		return models.ScanQueued, nil
	case "running":
		return models.ScanRunning, nil
	case "completed":
		return models.ScanComplete, nil
	case "error":
		return models.ScanFailed, nil
	default:
		return "", fmt.Errorf("unknown backend status %q", status)
	}
}

func (c *ExecutionClient) executeURL() string { return c.resolvePath(c.executePath) }

func (c *ExecutionClient) statusURL(scanID string) string {
	return c.resolvePath(strings.TrimRight(c.statusPath, "/") + "/" + url.PathEscape(scanID))
}

func (c *ExecutionClient) cancelURL(scanID string) string {
	return c.resolvePath(strings.TrimRight(c.cancelPath, "/") + "/" + url.PathEscape(scanID))
}

func (c *ExecutionClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *ExecutionClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("execution backend returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *ExecutionClient) getJSON(ctx context.Context, endpoint string, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("execution backend returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
