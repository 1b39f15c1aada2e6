package repo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func newAIClient() *AIClient {
	return NewAIClient("https://ai.example.com", "scanner-large", "", time.Second)
}

func chatReply(t *testing.T, content string) *http.Response {
	t.Helper()
	return jsonResponse(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
}

func TestFormatCodeExtractsFencedBlock(t *testing.T) {
	client := newAIClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["model"] != "scanner-large" {
			t.Fatalf("model = %v", body["model"])
		}
		return chatReply(t, "Here you go:\n```python\ngap_min = 2.0\n```\nDone."), nil
	}))

	code, err := client.FormatCode(context.Background(), "gap over 2 percent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "gap_min = 2.0\n" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestFormatCodeAcceptsBareFence(t *testing.T) {
	client := newAIClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return chatReply(t, "```\natr_mult = 1.5\n```"), nil
	}))

	code, err := client.FormatCode(context.Background(), "atr above 1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "atr_mult = 1.5\n" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestFormatCodeNoBlockIsSentinel(t *testing.T) {
	client := newAIClient()
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return chatReply(t, "I cannot write that scanner."), nil
	}))

	_, err := client.FormatCode(context.Background(), "whatever")
	if !errors.Is(err, ErrNoCodeBlock) {
		t.Fatalf("expected ErrNoCodeBlock, got %v", err)
	}
}

func TestFormatCodeAuthHeader(t *testing.T) {
	client := NewAIClient("https://ai.example.com", "scanner-large", "secret-key", time.Second)
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Fatalf("authorization header = %q", got)
		}
		return chatReply(t, "```py\nx = 1\n```"), nil
	}))

	if _, err := client.FormatCode(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractCodeBlockVariants(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"python fence", "```python\na = 1\n```", "a = 1\n", true},
		{"py fence", "```py\nb = 2\n```", "b = 2\n", true},
		{"bare fence", "pre\n```\nc = 3\n```\npost", "c = 3\n", true},
		{"unterminated", "```python\nd = 4", "", false},
		{"empty block", "```python\n\n```", "", false},
		{"no fence", "plain text", "", false},
	}

	for _, tc := range cases {
		got, ok := extractCodeBlock(tc.content)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
