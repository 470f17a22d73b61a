// Package ai talks to an OpenRouter-compatible chat completion API to edit a
// task from an instruction or to extract tasks from free text.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

const (
	DefaultURL   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel = "deepseek/deepseek-r1-distill-llama-70b:free"
	appTitle     = "Todo AI Assistant"

	editMaxTokens = 300
	maxErrorBody  = 4 << 10
)

// ErrNoAPIKey is returned before any request is made when no key is configured.
var ErrNoAPIKey = fmt.Errorf("%w: completion api key not configured", model.ErrTransport)

// UpstreamError is a non-2xx reply from the completion service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	return target == model.ErrTransport
}

type Config struct {
	APIKey  string
	URL     string
	Model   string
	SiteURL string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ProposeEdit asks the model for a revised version of current. A reply
// without a usable title is rejected with ErrValidation.
func (c *Client) ProposeEdit(ctx context.Context, current model.Task, instruction string) (model.Edit, error) {
	if strings.TrimSpace(instruction) == "" {
		return model.Edit{}, fmt.Errorf("%w: prompt must not be empty", model.ErrValidation)
	}
	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: editSystemPrompt},
		{Role: "user", Content: editUserPrompt(current, instruction)},
	}, editMaxTokens)
	if err != nil {
		return model.Edit{}, err
	}
	return ParseEdit(content)
}

// ExtractTasks returns the tasks the model finds in document. Output that does
// not contain a task array yields an empty result rather than an error.
func (c *Client) ExtractTasks(ctx context.Context, document string) ([]model.Draft, error) {
	if strings.TrimSpace(document) == "" {
		return []model.Draft{}, nil
	}
	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: "Extract tasks from this document: " + document},
	}, 0)
	if errors.Is(err, model.ErrParse) {
		c.logger.Debug("extraction reply not decodable", zap.Error(err))
		return []model.Draft{}, nil
	}
	if err != nil {
		return nil, err
	}
	drafts, err := ParseDrafts(content)
	if err != nil {
		c.logger.Debug("extraction output not parseable", zap.Error(err))
		return []model.Draft{}, nil
	}
	return drafts, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	req.Header.Set("X-Title", appTitle)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &UpstreamError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		c.logger.Warn("completion request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", upstream.Message),
			zap.Duration("latency", time.Since(start)),
		)
		return "", upstream
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode completion response: %v", model.ErrParse, err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", model.ErrParse)
	}
	c.logger.Debug("completion received", zap.Duration("latency", time.Since(start)))
	return decoded.Choices[0].Message.Content, nil
}

func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var ce chatError
	if err := json.Unmarshal(raw, &ce); err == nil && ce.Error.Message != "" {
		return ce.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

type rawEdit struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     json.RawMessage `json:"due_date"`
}

// ParseEdit decodes the first JSON object in content as an edit.
func ParseEdit(content string) (model.Edit, error) {
	obj, ok := FirstJSON(content, '{')
	if !ok {
		return model.Edit{}, fmt.Errorf("%w: no JSON object in completion", model.ErrParse)
	}
	var raw rawEdit
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return model.Edit{}, fmt.Errorf("%w: %v", model.ErrParse, err)
	}
	if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
		return model.Edit{}, fmt.Errorf("%w: proposed edit has no title", model.ErrValidation)
	}

	edit := model.Edit{Title: strings.TrimSpace(*raw.Title), Description: raw.Description}
	due, err := parseDueDate(raw.DueDate)
	if err != nil {
		return model.Edit{}, err
	}
	edit.DueDate = due
	return edit, nil
}

// parseDueDate accepts a date string, null, "" or the literal "null".
func parseDueDate(raw json.RawMessage) (*model.Date, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: due_date must be a string", model.ErrValidation)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type rawDraft struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ParseDrafts decodes the first JSON array in content. Items without a
// string title are dropped.
func ParseDrafts(content string) ([]model.Draft, error) {
	arr, ok := FirstJSON(content, '[')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in completion", model.ErrParse)
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}

	drafts := make([]model.Draft, 0, len(items))
	for _, item := range items {
		var raw rawDraft
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
			continue
		}
		d := model.Draft{Title: strings.TrimSpace(*raw.Title)}
		if raw.Description != nil {
			d.Description = *raw.Description
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// IsUpstream reports the upstream status carried by err, if any.
func IsUpstream(err error) (int, bool) {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.Status, true
	}
	return 0, false
}
