package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoCodeBlock signals that the AI backend answered but its reply carried
// no fenced code block. Callers treat it like any other AI failure and fall
// back to template generation.
var ErrNoCodeBlock = errors.New("ai response contained no code block")

const aiSystemPrompt = "You are a trading scanner author. Rewrite the user's scanner " +
	"description as Python scanner code operating on a daily candidates table. " +
	"Reply with a single fenced code block and nothing else."

// AIClient wraps an OpenAI-compatible chat completions endpoint used to
// format free-text scanner descriptions into code.
type AIClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewAIClient constructs a client for the configured completions backend.
func NewAIClient(baseURL, model, apiKey string, timeout time.Duration) *AIClient {
	return &AIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FormatCode asks the backend to rewrite the description as scanner code and
// returns the first fenced code block from the reply.
func (c *AIClient) FormatCode(ctx context.Context, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("ai client not initialised")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("ai backend base URL not configured")
	}

	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": aiSystemPrompt},
			{"role": "user", "content": text},
		},
		"temperature": 0.1,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := c.postJSON(ctx, c.baseURL+"/v1/chat/completions", payload, &response); err != nil {
		return "", fmt.Errorf("ai format request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("ai backend returned no choices")
	}

	code, ok := extractCodeBlock(response.Choices[0].Message.Content)
	if !ok {
		return "", ErrNoCodeBlock
	}
	return code, nil
}

// extractCodeBlock returns the body of the first fenced block in the reply.
func extractCodeBlock(content string) (string, bool) {
	for _, opener := range []string{"```python\n", "```py\n", "```\n"} {
		start := strings.Index(content, opener)
		if start < 0 {
			continue
		}
		rest := content[start+len(opener):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		code := strings.TrimRight(rest[:end], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		return code + "\n", true
	}
	return "", false
}

func (c *AIClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ai backend returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
