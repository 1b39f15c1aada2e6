package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/edgedesk/scanforge/internal/models"
)

func newExecutionClient() *ExecutionClient {
	return NewExecutionClient("https://backend.example.com", "/api/scan/execute", "/api/scan/status", "/api/scan/cancel", time.Second)
}

func TestExecuteSubmitsCodeAndDates(t *testing.T) {
	client := newExecutionClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		if req.URL.Path != "/api/scan/execute" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["code"] != "# scanner" || body["start_date"] != "2024-01-02" || body["end_date"] != "2024-01-31" {
			t.Fatalf("unexpected request body: %v", body)
		}
		if body["scanner_type"] != "gap_and_go" {
			t.Fatalf("scanner_type missing from body: %v", body)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"success": true,
			"scan_id": "scan-7",
		}), nil
	}))

	result, err := client.Execute(context.Background(), models.ScanRequest{
		Code:        "# scanner",
		StartDate:   "2024-01-02",
		EndDate:     "2024-01-31",
		ScannerType: "gap_and_go",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ScanID != "scan-7" {
		t.Fatalf("scan id = %q, want scan-7", result.ScanID)
	}
}

func TestExecuteRejectionIsNotTransportError(t *testing.T) {
	client := newExecutionClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"success": false,
			"error":   "syntax error on line 3",
		}), nil
	}))

	_, err := client.Execute(context.Background(), models.ScanRequest{Code: "bad", StartDate: "2024-01-02", EndDate: "2024-01-03"})
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	if !strings.Contains(err.Error(), "syntax error on line 3") {
		t.Fatalf("rejection should carry backend message: %v", err)
	}
}

func TestStatusMapsBackendVocabulary(t *testing.T) {
	cases := []struct {
		remote   string
		want     models.ScanState
		progress float64
	}{
		{"initializing", models.ScanQueued, 0},
		{"running", models.ScanRunning, 40},
		{"completed", models.ScanComplete, 100},
		{"error", models.ScanFailed, 40},
	}

	for _, tc := range cases {
		client := newExecutionClient()
		client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodGet {
				t.Fatalf("unexpected method: %s", req.Method)
			}
			if req.URL.Path != "/api/scan/status/scan-7" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(t, http.StatusOK, map[string]any{
				"status":           tc.remote,
				"progress_percent": tc.progress,
			}), nil
		}))

		status, err := client.Status(context.Background(), "scan-7")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.remote, err)
		}
		if status.State != tc.want {
			t.Fatalf("%s mapped to %q, want %q", tc.remote, status.State, tc.want)
		}
		if tc.want == models.ScanComplete && status.Progress != 100 {
			t.Fatalf("completed status should pin progress to 100, got %v", status.Progress)
		}
	}
}

func TestStatusUnknownVocabularyFails(t *testing.T) {
	client := newExecutionClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "paused"}), nil
	}))

	if _, err := client.Status(context.Background(), "scan-7"); err == nil {
		t.Fatalf("unknown status should be an error")
	}
}

func TestCancelPostsToScanPath(t *testing.T) {
	called := false
	client := newExecutionClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		if req.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		if req.URL.Path != "/api/scan/cancel/scan-7" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"success": true}), nil
	}))

	if err := client.Cancel(context.Background(), "scan-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("cancel never reached the backend")
	}
}

func TestClientGuardsMissingConfiguration(t *testing.T) {
	var nilClient *ExecutionClient
	if _, err := nilClient.Execute(context.Background(), models.ScanRequest{}); err == nil {
		t.Fatalf("nil client should error")
	}

	blank := NewExecutionClient("", "/e", "/s", "/c", time.Second)
	if _, err := blank.Status(context.Background(), "scan-7"); err == nil {
		t.Fatalf("blank base URL should error")
	}
	configured := newExecutionClient()
	if _, err := configured.Status(context.Background(), ""); err == nil {
		t.Fatalf("empty scan id should error")
	}
}
