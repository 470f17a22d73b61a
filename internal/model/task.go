package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Toggled flips between pending and completed, which is all the list view knows about.
// An in-progress task toggles to completed.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	DueDate     *Date     `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Owner       string    `json:"owner"`
}

// IsOverdue reports whether the due date lies strictly before the calendar day of now.
// Overdue tasks are only flagged, never transitioned.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(DateOf(now))
}

// NewTask carries the fields a client may supply on creation.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status,omitempty"`
	DueDate     *Date  `json:"due_date,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if n.Status != "" && !n.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched; an empty Description clears it
// and DueDateSet with a nil DueDate clears the due date.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	DueDate     *Date
	DueDateSet  bool
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && !p.DueDateSet
}

func (p Patch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Apply returns a copy of t with the patch applied.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDateSet {
		if p.DueDate == nil {
			t.DueDate = nil
		} else {
			d := *p.DueDate
			t.DueDate = &d
		}
	}
	return t
}

func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

type Stats struct {
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
	Overdue  int            `json:"overdue"`
}
