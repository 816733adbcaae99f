// Package generate wraps the external chat-completion provider used to
// produce single-page applications from a build brief.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/appbuilder/internal/attach"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	apperrors "git.home.luguber.info/inful/appbuilder/internal/errors"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        config.GeneratorConfig
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a generator client from configuration.
func NewClient(cfg config.GeneratorConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.TimeoutDuration()},
		token:      cfg.Token,
	}
}

// SetToken replaces the provider token for subsequent requests. Called
// when the configuration file is reloaded; an empty token is ignored.
func (c *Client) SetToken(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) authToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces a self-contained HTML document for the brief. The round
// selects between the initial-build and revision prompts. A provider error,
// empty response, or unparseable markup is returned as an error; the caller
// decides the fallback.
func (c *Client) Generate(ctx context.Context, brief string, attachments []attach.Attachment, round int) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(brief, attachments, round)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.GenerationError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.GenerationError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.GenerationError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.GenerationError(fmt.Errorf("provider returned %s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.GenerationError(err)
	}
	if parsed.Error != nil {
		return "", apperrors.GenerationError(fmt.Errorf("provider error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.EmptyGeneration()
	}

	code := StripFences(parsed.Choices[0].Message.Content)
	if code == "" {
		return "", apperrors.EmptyGeneration()
	}
	if err := checkMarkup(code); err != nil {
		return "", apperrors.GenerationError(err)
	}
	return code, nil
}

// StripFences removes enclosing markdown code-fence markers from a provider
// response, if present.
func StripFences(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "```html") {
		code = code[len("```html"):]
	} else if strings.HasPrefix(code, "```") {
		code = code[len("```"):]
	}
	code = strings.TrimSuffix(strings.TrimSpace(code), "```")
	return strings.TrimSpace(code)
}

// checkMarkup sanity-parses the generated document so that a completely
// broken response is handled as a generation failure instead of being
// published verbatim.
func checkMarkup(code string) error {
	if _, err := html.Parse(strings.NewReader(code)); err != nil {
		return fmt.Errorf("generated markup does not parse: %w", err)
	}
	lower := strings.ToLower(code)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<!doctype") {
		return fmt.Errorf("generated content is not an HTML document")
	}
	return nil
}
