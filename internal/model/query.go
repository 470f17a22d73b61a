package model

import (
	"fmt"
	"slices"
	"strings"
)

// StatusFilter is either FilterAll or one of the task statuses.
type StatusFilter string

const FilterAll StatusFilter = "all"

func ParseStatusFilter(s string) (StatusFilter, error) {
	if s == "" || s == string(FilterAll) {
		return FilterAll, nil
	}
	if !Status(s).Valid() {
		return "", ErrInvalidStatus
	}
	return StatusFilter(s), nil
}

type SortKey string

const (
	SortCreatedDesc SortKey = "created_desc"
	SortCreatedAsc  SortKey = "created_asc"
	SortDueDate     SortKey = "due_date"
	SortTitle       SortKey = "title"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortCreatedDesc, nil
	case SortCreatedDesc, SortCreatedAsc, SortDueDate, SortTitle:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", ErrValidation, s)
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListParams selects one page of tasks. It is comparable so it can key caches.
type ListParams struct {
	Status   StatusFilter `json:"status"`
	Search   string       `json:"search"`
	Sort     SortKey      `json:"sort"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// Normalize fills defaults: all statuses, newest first, page 1 of DefaultPageSize.
func (p ListParams) Normalize() ListParams {
	if p.Status == "" {
		p.Status = FilterAll
	}
	if p.Sort == "" {
		p.Sort = SortCreatedDesc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the zero-based row index of the first item on the page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TaskPage is one slice of a filtered, sorted collection plus the total matching count.
type TaskPage struct {
	Items []Task `json:"items"`
	Total int    `json:"total"`
}

// PageCount is ceil(total/size).
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Matches reports whether t passes the status filter and the free-text query.
// The query matches case-insensitively as a substring of the title or the description.
func Matches(t Task, query string, filter StatusFilter) bool {
	if filter != FilterAll && filter != "" && Status(filter) != t.Status {
		return false
	}
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	return t.Description != "" && strings.Contains(strings.ToLower(t.Description), q)
}

// Compare orders a and b under key. Equal keys fall back to ascending id,
// so the result is a total order for tasks with distinct ids.
func Compare(a, b Task, key SortKey) int {
	if c := compareKey(a, b, key); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func compareKey(a, b Task, key SortKey) int {
	switch key {
	case SortCreatedAsc:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Time.Compare(b.DueDate.Time)
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return b.CreatedAt.Compare(a.CreatedAt)
	}
}

// SortTasks sorts in place under key.
func SortTasks(tasks []Task, key SortKey) {
	slices.SortFunc(tasks, func(a, b Task) int { return Compare(a, b, key) })
}

// FilterTasks returns the tasks matching query and filter, preserving order.
func FilterTasks(tasks []Task, query string, filter StatusFilter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if Matches(t, query, filter) {
			out = append(out, t)
		}
	}
	return out
}
