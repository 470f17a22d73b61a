// Package gateway is the HTTP client for the task API. It serves both the
// collection and the AI operations the controllers consume.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// StatusError is a non-2xx reply from the task API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("task api returned %d: %s", e.Code, e.Message)
}

// Is maps the status onto the model sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.Code == http.StatusNotFound
	case model.ErrValidation:
		return e.Code == http.StatusBadRequest
	case model.ErrConflict:
		return e.Code == http.StatusConflict
	case model.ErrTransport:
		return e.Code != http.StatusNotFound && e.Code != http.StatusBadRequest && e.Code != http.StatusConflict
	}
	return false
}

type Client struct {
	baseURL string
	owner   string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL, owner string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		owner:   owner,
		http:    httpClient,
		logger:  logger,
	}
}

type listResponse struct {
	Items []model.Task `json:"items"`
	Total int          `json:"total"`
}

func (c *Client) List(ctx context.Context, p model.ListParams) (model.TaskPage, error) {
	p = p.Normalize()
	q := url.Values{}
	if p.Status != model.FilterAll {
		q.Set("status", string(p.Status))
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	q.Set("sort", string(p.Sort))
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("page_size", strconv.Itoa(p.PageSize))

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks?"+q.Encode(), nil, nil, &resp); err != nil {
		return model.TaskPage{}, err
	}
	if resp.Items == nil {
		resp.Items = []model.Task{}
	}
	return model.TaskPage{Items: resp.Items, Total: resp.Total}, nil
}

func (c *Client) Get(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, nil, &t)
	return t, err
}

// Create posts n with a fresh idempotency key.
func (c *Client) Create(ctx context.Context, n model.NewTask) (model.Task, error) {
	if err := n.Validate(); err != nil {
		return model.Task{}, err
	}
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	owner := n.Owner
	if owner == "" {
		owner = c.owner
	}
	if owner != "" {
		headers["X-Owner"] = owner
	}

	var t model.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", n, headers, &t)
	return t, err
}

func (c *Client) Update(ctx context.Context, id string, p model.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patchBody(p), nil, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func patchBody(p model.Patch) map[string]any {
	body := map[string]any{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.DueDateSet {
		if p.DueDate == nil {
			body["due_date"] = nil
		} else {
			body["due_date"] = p.DueDate.String()
		}
	}
	return body
}

type editRequest struct {
	CurrentTodo model.Task `json:"currentTodo"`
	Prompt      string     `json:"prompt"`
}

// ProposeEdit requests an edit and enforces a non-empty title on the reply.
func (c *Client) ProposeEdit(ctx context.Context, current model.Task, instruction string) (model.Edit, error) {
	var edit model.Edit
	if err := c.do(ctx, http.MethodPost, "/api/ai-edit", editRequest{CurrentTodo: current, Prompt: instruction}, nil, &edit); err != nil {
		return model.Edit{}, err
	}
	if strings.TrimSpace(edit.Title) == "" {
		return model.Edit{}, fmt.Errorf("%w: proposed edit has no title", model.ErrValidation)
	}
	return edit, nil
}

// ExtractTasks returns no drafts, and no error, when the reply cannot be decoded.
func (c *Client) ExtractTasks(ctx context.Context, document string) ([]model.Draft, error) {
	var resp struct {
		Tasks []model.Draft `json:"tasks"`
	}
	err := c.do(ctx, http.MethodPost, "/api/ai-extract", map[string]string{"document": document}, nil, &resp)
	if errors.Is(err, model.ErrParse) {
		c.logger.Debug("extraction reply not decodable", zap.Error(err))
		return []model.Draft{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.Draft, 0, len(resp.Tasks))
	for _, d := range resp.Tasks {
		if strings.TrimSpace(d.Title) != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, headers map[string]string, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", model.ErrParse, method, path, err)
	}
	return nil
}
