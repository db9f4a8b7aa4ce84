package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_AlwaysUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
}

func TestStartOfDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "midnight_utc",
			input:    time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "late_evening_utc",
			input:    time.Date(2025, 11, 20, 23, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "early_morning_ist_is_previous_utc_day",
			input:    time.Date(2025, 11, 20, 2, 0, 0, 0, ist),
			expected: time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StartOfDay(tt.input)
			assert.True(t, tt.expected.Equal(result), "got %v", result)
			assert.Equal(t, time.UTC, result.Location())
		})
	}
}

func TestEndOfDay(t *testing.T) {
	result := EndOfDay(time.Date(2025, 11, 20, 12, 30, 45, 0, time.UTC))
	assert.Equal(t, "2025-11-20 23:59:59.999999999 +0000 UTC", result.String())
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC).Equal(got))

	_, err = ParseDate("14/03/2025")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		to       time.Time
		expected int
	}{
		{name: "same_day", to: time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), expected: 0},
		{name: "next_day_within_hours", to: time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), expected: 1},
		{name: "three_days", to: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), expected: 3},
		{name: "before", to: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), expected: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(base, tt.to))
		})
	}
}

func TestAddDays(t *testing.T) {
	got := AddDays(time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), -30)
	assert.True(t, time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC).Equal(got), "got %v", got)
}
