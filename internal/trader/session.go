package trader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// windowSpec is a daily session range expressed as minutes since midnight in
// the schedule's timezone. Start is inclusive, End exclusive.
type windowSpec struct {
	start int
	end   int
}

// Schedule holds the daily session windows. Windows repeat every day and do
// not cross midnight.
type Schedule struct {
	windows []windowSpec
	loc     *time.Location
}

// ParseSchedule parses a comma-separated list of "HH:MM-HH:MM" ranges, e.g.
// "09:10-13:00,17:10-19:00". Ranges must be well-formed and start before they
// end.
func ParseSchedule(spec string, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("empty session schedule")
	}

	var windows []windowSpec
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		bounds := strings.Split(part, "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid session window %q", part)
		}
		start, err := parseMinuteOfDay(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid session window %q: %w", part, err)
		}
		end, err := parseMinuteOfDay(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid session window %q: %w", part, err)
		}
		if start >= end {
			return nil, fmt.Errorf("session window %q must start before it ends", part)
		}
		windows = append(windows, windowSpec{start: start, end: end})
	}

	return &Schedule{windows: windows, loc: loc}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(fields[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour %q", fields[0])
	}
	minute, err := strconv.Atoi(fields[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute %q", fields[1])
	}
	return hour*60 + minute, nil
}

// Active returns the window containing now, with concrete start and end
// times on now's date in the schedule timezone.
func (s *Schedule) Active(now time.Time) (start, end time.Time, ok bool) {
	local := now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	for _, w := range s.windows {
		if minute >= w.start && minute < w.end {
			return midnight.Add(time.Duration(w.start) * time.Minute),
				midnight.Add(time.Duration(w.end) * time.Minute),
				true
		}
	}
	return time.Time{}, time.Time{}, false
}

// NextOpen returns the next window start at or after now. When all of
// today's windows have passed it rolls to tomorrow's first window.
func (s *Schedule) NextOpen(now time.Time) time.Time {
	local := now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	next := -1
	for _, w := range s.windows {
		if w.start > minute && (next == -1 || w.start < next) {
			next = w.start
		}
	}
	if next >= 0 {
		return midnight.Add(time.Duration(next) * time.Minute)
	}

	first := s.windows[0].start
	for _, w := range s.windows[1:] {
		if w.start < first {
			first = w.start
		}
	}
	return midnight.AddDate(0, 0, 1).Add(time.Duration(first) * time.Minute)
}

// LastOpen returns the most recent window start at or before now, looking
// back to the previous day when needed.
func (s *Schedule) LastOpen(now time.Time) time.Time {
	local := now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	last := -1
	for _, w := range s.windows {
		if w.start <= minute && w.start > last {
			last = w.start
		}
	}
	if last >= 0 {
		return midnight.Add(time.Duration(last) * time.Minute)
	}

	latest := s.windows[0].start
	for _, w := range s.windows[1:] {
		if w.start > latest {
			latest = w.start
		}
	}
	return midnight.AddDate(0, 0, -1).Add(time.Duration(latest) * time.Minute)
}

// TradingDate returns the risk-accounting date for now in the schedule
// timezone, formatted YYYY-MM-DD.
func (s *Schedule) TradingDate(now time.Time) string {
	return now.In(s.loc).Format("2006-01-02")
}

// Location returns the schedule timezone.
func (s *Schedule) Location() *time.Location {
	return s.loc
}
