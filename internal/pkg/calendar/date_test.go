package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDayOfUsesLocation(t *testing.T) {
	// 2024-01-01 23:30 UTC is already Jan 2 in Tokyo and still Jan 1 in New York.
	instant := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.Equal(t, New(2024, 1, 2), DayOf(instant, tokyo))
	assert.Equal(t, New(2024, 1, 1), DayOf(instant, newYork))
	assert.Equal(t, New(2024, 1, 1), DayOf(instant, nil))
}

func TestAddDaysCrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, New(2024, 3, 1), New(2024, 2, 29).AddDays(1))
	assert.Equal(t, New(2025, 1, 1), New(2024, 12, 31).AddDays(1))
	assert.Equal(t, New(2023, 12, 31), New(2024, 1, 1).AddDays(-1))
}

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, New(2024, 1, 2), d)
	assert.Equal(t, "2024-01-02", d.String())

	_, err = Parse("02/01/2024")
	assert.Error(t, err)
}

func TestUnmarshalText(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2024-07-15")))
	assert.Equal(t, New(2024, 7, 15), d)
}

// TestDaysSinceInvertsAddDays checks that DaysSince is the inverse of AddDays.
func TestDaysSinceInvertsAddDays(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := New(
			rapid.IntRange(1970, 2100).Draw(t, "year"),
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"),
		)
		n := rapid.IntRange(-4000, 4000).Draw(t, "n")

		later := base.AddDays(n)
		if got := later.DaysSince(base); got != n {
			t.Fatalf("DaysSince mismatch: base=%s n=%d got=%d", base, n, got)
		}
		if n > 0 && !later.After(base) {
			t.Fatalf("%s should be after %s", later, base)
		}
		if n < 0 && !later.Before(base) {
			t.Fatalf("%s should be before %s", later, base)
		}
	})
}
