// Package calendar lays tasks out on a Sunday-first month grid.
package calendar

import (
	"fmt"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type Day struct {
	Date    model.Date   `json:"date"`
	InMonth bool         `json:"in_month"`
	Tasks   []model.Task `json:"tasks"`
}

type Month struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Weeks [][]Day `json:"weeks"`
}

// ParseMonth reads "YYYY-MM". An empty string selects the month containing now.
func ParseMonth(s string, now time.Time) (int, time.Month, error) {
	if s == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad month %q", model.ErrValidation, s)
	}
	return t.Year(), t.Month(), nil
}

// Range returns the first and last day shown on the grid for the month,
// including the leading and trailing days of neighbouring months.
func Range(year int, month time.Month) (model.Date, model.Date) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	last := first.AddDate(0, 1, -1)
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))
	return model.DateOf(start), model.DateOf(end)
}

// TasksByDate groups dated tasks under their YYYY-MM-DD key, keeping input order.
func TasksByDate(tasks []model.Task) map[string][]model.Task {
	out := make(map[string][]model.Task)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		key := t.DueDate.String()
		out[key] = append(out[key], t)
	}
	return out
}

func Build(year int, month time.Month, tasks []model.Task) Month {
	byDate := TasksByDate(tasks)
	start, end := Range(year, month)

	m := Month{Year: year, Month: int(month)}
	var week []Day
	for d := start.Time; !d.After(end.Time); d = d.AddDate(0, 0, 1) {
		date := model.DateOf(d)
		day := Day{Date: date, InMonth: d.Month() == month, Tasks: byDate[date.String()]}
		if day.Tasks == nil {
			day.Tasks = []model.Task{}
		}
		week = append(week, day)
		if len(week) == 7 {
			m.Weeks = append(m.Weeks, week)
			week = nil
		}
	}
	return m
}
