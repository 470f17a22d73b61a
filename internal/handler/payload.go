package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type createRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      model.Status `json:"status"`
	DueDate     *model.Date  `json:"due_date"`
}

type patchRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Status      *model.Status `json:"status"`
	DueDate     *model.Date   `json:"due_date"`
}

var patchFields = []string{"title", "description", "status", "due_date"}

func buildNewTask(body []byte, owner string) (model.NewTask, error) {
	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.NewTask{}, decodeError(err)
	}
	n := model.NewTask{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
		Owner:       owner,
	}
	return n, n.Validate()
}

// buildPatch reads a partial update. Absent fields stay untouched; null clears
// description and due_date and is rejected for title and status.
func buildPatch(body []byte) (model.Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.Patch{}, decodeError(err)
	}
	var req patchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.Patch{}, decodeError(err)
	}

	if !hasAnyField(raw, patchFields...) {
		return model.Patch{}, model.ErrEmptyPatch
	}
	if hasJSONField(raw, "title") && isJSONNull(raw["title"]) {
		return model.Patch{}, fmt.Errorf("%w: title cannot be null", model.ErrValidation)
	}
	if hasJSONField(raw, "status") && isJSONNull(raw["status"]) {
		return model.Patch{}, fmt.Errorf("%w: status cannot be null", model.ErrValidation)
	}

	p := model.Patch{Title: req.Title, Status: req.Status}
	if hasJSONField(raw, "description") {
		desc := ""
		if req.Description != nil {
			desc = *req.Description
		}
		p.Description = &desc
	}
	if hasJSONField(raw, "due_date") {
		p.DueDateSet = true
		p.DueDate = req.DueDate
	}
	return p, p.Validate()
}

func decodeError(err error) error {
	if _, ok := err.(*json.UnmarshalTypeError); ok {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return err
}

func hasAnyField(raw map[string]json.RawMessage, fields ...string) bool {
	for _, f := range fields {
		if hasJSONField(raw, f) {
			return true
		}
	}
	return false
}

func hasJSONField(raw map[string]json.RawMessage, field string) bool {
	_, ok := raw[field]
	return ok
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
