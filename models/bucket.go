package models

import (
	"fmt"
	"time"
)

// BucketUnit is the calendar unit a BucketWidth is counted in.
type BucketUnit int

const (
	UnitMinute BucketUnit = iota
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
)

// BucketWidth is a fixed number of calendar units, e.g. 10 minutes or 1 month.
type BucketWidth struct {
	Unit  BucketUnit
	Count int
}

func Minutes(n int) BucketWidth { return BucketWidth{Unit: UnitMinute, Count: n} }
func Hours(n int) BucketWidth   { return BucketWidth{Unit: UnitHour, Count: n} }
func Days(n int) BucketWidth    { return BucketWidth{Unit: UnitDay, Count: n} }
func Weeks(n int) BucketWidth   { return BucketWidth{Unit: UnitWeek, Count: n} }
func Months(n int) BucketWidth  { return BucketWidth{Unit: UnitMonth, Count: n} }

// Step returns the start of the n-th bucket counted from anchor.
// Day, week and month steps keep the wall clock of anchor, so a bucket that
// spans a DST change is 23 or 25 hours long.
func (w BucketWidth) Step(anchor time.Time, n int) time.Time {
	k := n * w.Count
	switch w.Unit {
	case UnitMinute:
		return anchor.Add(time.Duration(k) * time.Minute)
	case UnitHour:
		return anchor.Add(time.Duration(k) * time.Hour)
	case UnitDay:
		return addDate(anchor, 0, 0, k)
	case UnitWeek:
		return addDate(anchor, 0, 0, 7*k)
	case UnitMonth:
		return addDate(anchor, 0, k, 0)
	default:
		return anchor
	}
}

// SubDaily reports whether a bucket is shorter than one calendar day.
func (w BucketWidth) SubDaily() bool {
	switch w.Unit {
	case UnitMinute:
		return w.Count < 24*60
	case UnitHour:
		return w.Count < 24
	default:
		return false
	}
}

func (w BucketWidth) String() string {
	switch w.Unit {
	case UnitMinute:
		return fmt.Sprintf("%dm", w.Count)
	case UnitHour:
		return fmt.Sprintf("%dh", w.Count)
	case UnitDay:
		return fmt.Sprintf("%dd", w.Count)
	case UnitWeek:
		return fmt.Sprintf("%dw", w.Count)
	case UnitMonth:
		return fmt.Sprintf("%dmo", w.Count)
	default:
		return fmt.Sprintf("unit(%d)x%d", int(w.Unit), w.Count)
	}
}

// addDate shifts t by calendar fields and lets time.Date normalize the result.
func addDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y+years, m+time.Month(months), d+days, hh, mm, ss, t.Nanosecond(), t.Location())
}
