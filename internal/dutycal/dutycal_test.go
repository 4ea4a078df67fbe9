package dutycal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pkt = time.FixedZone("PKT", 5*3600)

func TestDutyDateOfUsesReferenceZone(t *testing.T) {
	cal := New(pkt)

	// 20:30 UTC は PKT で翌日 01:30
	assert.Equal(t, DateKey("2025-03-11"), cal.DutyDateOf(time.Date(2025, 3, 10, 20, 30, 0, 0, time.UTC)))
	assert.Equal(t, DateKey("2025-03-10"), cal.DutyDateOf(time.Date(2025, 3, 10, 18, 59, 59, 0, time.UTC)))

	// 端末側のゾーンには依存しない
	ny := time.FixedZone("EST", -5*3600)
	assert.Equal(t, DateKey("2025-03-11"), cal.DutyDateOf(time.Date(2025, 3, 10, 15, 30, 0, 0, ny)))
}

func TestSameDayAndMidnightStraddle(t *testing.T) {
	cal := New(pkt)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, pkt)

	first := cal.DutyDateOf(day)
	for _, off := range []time.Duration{time.Second, time.Hour, 12 * time.Hour, 24*time.Hour - time.Second} {
		assert.Equal(t, first, cal.DutyDateOf(day.Add(off)))
	}

	before := cal.DutyDateOf(day.Add(-time.Second))
	assert.Equal(t, first, before.Shift(1))
	assert.Equal(t, before, first.Shift(-1))
	assert.Equal(t, -1, Compare(before, first))
}

func TestShiftAcrossMonthsAndYears(t *testing.T) {
	assert.Equal(t, DateKey("2025-03-01"), DateKey("2025-02-28").Shift(1))
	assert.Equal(t, DateKey("2024-02-29"), DateKey("2024-03-01").Shift(-1))
	assert.Equal(t, DateKey("2025-01-01"), DateKey("2024-12-31").Shift(1))
	assert.Equal(t, DateKey("2024-12-30"), DateKey("2025-01-02").Shift(-3))
	assert.Equal(t, 3, DateKey("2024-12-30").DaysUntil("2025-01-02"))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare("2025-01-01", "2025-01-01"))
	assert.Equal(t, -1, Compare("2024-12-31", "2025-01-01"))
	assert.Equal(t, 1, Compare("2025-10-01", "2025-09-30"))
}

func TestParseDateKey(t *testing.T) {
	k, err := ParseDateKey("2025-07-04")
	require.NoError(t, err)
	assert.Equal(t, DateKey("2025-07-04"), k)

	for _, bad := range []string{"", "2025-7-4", "2025/07/04", "2025-02-30", "today", "2025-07-04T00:00:00Z"} {
		_, err := ParseDateKey(bad)
		assert.ErrorIs(t, err, ErrInvalidDateKey, bad)
	}
}

func TestDayBounds(t *testing.T) {
	cal := New(pkt)
	start, end := cal.DayBounds("2025-06-01")

	assert.True(t, start.Equal(time.Date(2025, 5, 31, 19, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24*time.Hour, end.Sub(start))
	assert.Equal(t, DateKey("2025-06-01"), cal.DutyDateOf(start))
	assert.Equal(t, DateKey("2025-06-02"), cal.DutyDateOf(end))
}

func TestWithinLookback(t *testing.T) {
	cal := New(pkt)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, pkt)

	assert.True(t, cal.WithinLookback("2025-06-10", now, 2))
	assert.True(t, cal.WithinLookback("2025-06-09", now, 2))
	assert.True(t, cal.WithinLookback("2025-06-08", now, 2))
	assert.False(t, cal.WithinLookback("2025-06-07", now, 2))
	assert.False(t, cal.WithinLookback("2025-06-11", now, 2))

	// 0 は当日のみ
	assert.True(t, cal.WithinLookback("2025-06-10", now, 0))
	assert.False(t, cal.WithinLookback("2025-06-09", now, 0))
}
