package model

import (
	"strings"
	"time"
)

// Edit is a change proposed by the language model for a single task.
type Edit struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *Date   `json:"due_date,omitempty"`
}

// Patch turns the edit into a partial update. Absent optional fields keep the current values.
func (e Edit) Patch() Patch {
	title := strings.TrimSpace(e.Title)
	p := Patch{Title: &title}
	if e.Description != nil && *e.Description != "" {
		desc := *e.Description
		p.Description = &desc
	}
	if e.DueDate != nil {
		d := *e.DueDate
		p.DueDate = &d
		p.DueDateSet = true
	}
	return p
}

// Draft is a task extracted from free text, not yet persisted.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (d Draft) NewTask(owner string) NewTask {
	return NewTask{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      StatusPending,
		Owner:       owner,
	}
}

type ImportStatus string

const (
	ImportQueued     ImportStatus = "queued"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportJob turns a pasted document into tasks in the background.
type ImportJob struct {
	ID        string       `json:"id"`
	Document  string       `json:"-"`
	Owner     string       `json:"owner"`
	Status    ImportStatus `json:"status"`
	Created   int          `json:"created"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
