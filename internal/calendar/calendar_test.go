package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func TestRange(t *testing.T) {
	tests := []struct {
		name       string
		year       int
		month      time.Month
		start, end string
	}{
		{name: "october 2026 starts thursday", year: 2026, month: time.October, start: "2026-09-27", end: "2026-10-31"},
		{name: "february 2026 fits four weeks", year: 2026, month: time.February, start: "2026-02-01", end: "2026-02-28"},
		{name: "crosses year", year: 2026, month: time.December, start: "2026-11-29", end: "2027-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Range(tt.year, tt.month)
			assert.Equal(t, tt.start, start.String())
			assert.Equal(t, tt.end, end.String())
			assert.Equal(t, time.Sunday, start.Weekday())
			assert.Equal(t, time.Saturday, end.Weekday())
		})
	}
}

func TestBuild(t *testing.T) {
	d := func(m time.Month, day int) *model.Date {
		v := model.NewDate(2026, m, day)
		return &v
	}
	tasks := []model.Task{
		{ID: "1", Title: "first", DueDate: d(time.October, 16)},
		{ID: "2", Title: "second", DueDate: d(time.October, 16)},
		{ID: "3", Title: "spill", DueDate: d(time.September, 28)},
		{ID: "4", Title: "undated"},
	}

	m := Build(2026, time.October, tasks)
	assert.Equal(t, 2026, m.Year)
	assert.Equal(t, 10, m.Month)
	require.Len(t, m.Weeks, 5)
	for _, w := range m.Weeks {
		assert.Len(t, w, 7)
	}

	spill := m.Weeks[0][1]
	assert.Equal(t, "2026-09-28", spill.Date.String())
	assert.False(t, spill.InMonth)
	require.Len(t, spill.Tasks, 1)

	// Oct 16 2026 is a Friday in the third row.
	day := m.Weeks[2][5]
	assert.Equal(t, "2026-10-16", day.Date.String())
	assert.True(t, day.InMonth)
	require.Len(t, day.Tasks, 2)
	assert.Equal(t, "first", day.Tasks[0].Title)
	assert.NotNil(t, m.Weeks[4][6].Tasks)
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	y, mo, err := ParseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.October, mo)

	y, mo, err = ParseMonth("2027-03", now)
	require.NoError(t, err)
	assert.Equal(t, 2027, y)
	assert.Equal(t, time.March, mo)

	_, _, err = ParseMonth("March", now)
	assert.ErrorIs(t, err, model.ErrValidation)
}
