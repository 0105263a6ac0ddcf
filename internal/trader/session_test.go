package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("09:10-13:00,17:10-19:00", time.UTC)
	require.NoError(t, err)
	require.Len(t, sched.windows, 2)
	assert.Equal(t, 9*60+10, sched.windows[0].start)
	assert.Equal(t, 13*60, sched.windows[0].end)
	assert.Equal(t, 17*60+10, sched.windows[1].start)
}

func TestParseSchedule_Malformed(t *testing.T) {
	cases := []string{
		"",
		"09:10",
		"09:10-13:00-14:00",
		"9h10-13:00",
		"25:00-26:00",
		"09:61-10:00",
		"13:00-09:10", // start after end
		"09:10-09:10", // empty window
	}
	for _, spec := range cases {
		_, err := ParseSchedule(spec, time.UTC)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestSchedule_Active(t *testing.T) {
	sched, err := ParseSchedule("09:10-13:00,17:10-19:00", time.UTC)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	start, end, ok := sched.Active(day.Add(10 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, day.Add(9*time.Hour+10*time.Minute), start)
	assert.Equal(t, day.Add(13*time.Hour), end)

	// Between windows.
	_, _, ok = sched.Active(day.Add(14 * time.Hour))
	assert.False(t, ok)

	// Start inclusive, end exclusive.
	_, _, ok = sched.Active(day.Add(9*time.Hour + 10*time.Minute))
	assert.True(t, ok)
	_, _, ok = sched.Active(day.Add(13 * time.Hour))
	assert.False(t, ok)

	// Second window.
	start, _, ok = sched.Active(day.Add(18 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, day.Add(17*time.Hour+10*time.Minute), start)
}

func TestSchedule_ActiveTimezone(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	sched, err := ParseSchedule("09:10-13:00", seoul)
	require.NoError(t, err)

	// 01:00 UTC is 10:00 KST, inside the window.
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	start, _, ok := sched.Active(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 10, 0, 0, seoul), start)

	// 10:00 UTC is 19:00 KST, outside.
	_, _, ok = sched.Active(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestSchedule_NextOpen(t *testing.T) {
	sched, err := ParseSchedule("09:10-13:00,17:10-19:00", time.UTC)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Before both windows.
	assert.Equal(t, day.Add(9*time.Hour+10*time.Minute), sched.NextOpen(day.Add(8*time.Hour)))

	// Between windows.
	assert.Equal(t, day.Add(17*time.Hour+10*time.Minute), sched.NextOpen(day.Add(14*time.Hour)))

	// After the last window: tomorrow's first.
	next := sched.NextOpen(day.Add(20 * time.Hour))
	assert.Equal(t, day.AddDate(0, 0, 1).Add(9*time.Hour+10*time.Minute), next)
}

func TestSchedule_LastOpen(t *testing.T) {
	sched, err := ParseSchedule("09:10-13:00,17:10-19:00", time.UTC)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Inside the first window.
	assert.Equal(t, day.Add(9*time.Hour+10*time.Minute), sched.LastOpen(day.Add(10*time.Hour)))

	// Between windows: still the first window's start.
	assert.Equal(t, day.Add(9*time.Hour+10*time.Minute), sched.LastOpen(day.Add(14*time.Hour)))

	// After the second window.
	assert.Equal(t, day.Add(17*time.Hour+10*time.Minute), sched.LastOpen(day.Add(20*time.Hour)))

	// Before any window today: yesterday's last window.
	assert.Equal(t, day.AddDate(0, 0, -1).Add(17*time.Hour+10*time.Minute), sched.LastOpen(day.Add(5*time.Hour)))
}

func TestSchedule_TradingDate(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	sched, err := ParseSchedule("09:10-13:00", seoul)
	require.NoError(t, err)

	// 23:00 UTC on Mar 2 is already Mar 3 in Seoul.
	now := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-03", sched.TradingDate(now))
}
