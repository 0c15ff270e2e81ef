package models

import "time"

// Window is the half-open interval [Start, End) of history a chart shows.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration is the elapsed time between Start and End.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Days is the number of calendar days the window spans.
func (w Window) Days() int {
	n := 0
	for d := w.Start; d.Before(w.End); d = addDate(d, 0, 0, 1) {
		n++
	}
	return n
}

// Calendar is the local calendar that period boundaries are computed in.
type Calendar struct {
	Location     *time.Location
	FirstWeekday time.Weekday
}

// DefaultCalendar uses the host's local time zone and Monday-first weeks.
func DefaultCalendar() Calendar {
	return Calendar{Location: time.Local, FirstWeekday: time.Monday}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// StartOfWeek returns the start of the calendar week containing t.
func (c Calendar) StartOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	back := (int(day.Weekday()) - int(c.FirstWeekday) + 7) % 7
	return addDate(day, 0, 0, -back)
}

// StartOfMonth returns the first instant of the month containing t.
func (c Calendar) StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.In(c.location()).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, c.location())
}

// StartOfYear returns the first instant of the year containing t.
func (c Calendar) StartOfYear(t time.Time) time.Time {
	return time.Date(t.In(c.location()).Year(), time.January, 1, 0, 0, 0, 0, c.location())
}

// ComputeRange maps a granularity and navigation offset to the window of
// history to query, anchored at ref (normally now). The period is shifted
// from its own start, so consecutive offsets give contiguous windows.
// offset is not validated; callers clamp it to <= 0.
func ComputeRange(cal Calendar, g Granularity, offset int, ref time.Time) Window {
	var start, end time.Time
	switch g {
	case GranularityHour:
		start = addDate(cal.StartOfDay(ref), 0, 0, offset)
		end = addDate(start, 0, 0, 1)
	case GranularityWeek:
		start = addDate(cal.StartOfMonth(ref), 0, offset, 0)
		end = addDate(start, 0, 1, 0)
	case GranularityMonth:
		start = addDate(cal.StartOfYear(ref), offset, 0, 0)
		end = addDate(start, 1, 0, 0)
	default:
		start = addDate(cal.StartOfWeek(ref), 0, 0, 7*offset)
		end = addDate(start, 0, 0, 7)
	}
	return Window{Start: start, End: end}
}
