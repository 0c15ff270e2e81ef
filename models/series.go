package models

import (
	"sort"
	"time"
)

// Point is one bucket of a Series.
type Point struct {
	Start time.Time
	Value float64
}

// Series maps bucket start instants to aggregated values. Keys are unix
// seconds so an instant is the same key whatever location it was built in.
// Buckets without samples are absent, not zero.
type Series map[int64]float64

// NewSeries builds a series from points. A later point with the same start
// replaces an earlier one.
func NewSeries(points ...Point) Series {
	s := make(Series, len(points))
	for _, p := range points {
		s.Set(p.Start, p.Value)
	}
	return s
}

// Set stores v for the bucket starting at t.
func (s Series) Set(t time.Time, v float64) { s[t.Unix()] = v }

// Get returns the value of the bucket starting at t.
func (s Series) Get(t time.Time) (float64, bool) {
	v, ok := s[t.Unix()]
	return v, ok
}

// Keys returns the bucket starts in ascending order.
func (s Series) Keys() []int64 {
	keys := make([]int64, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Points returns the buckets in ascending order with starts in loc.
func (s Series) Points(loc *time.Location) []Point {
	if loc == nil {
		loc = time.Local
	}
	keys := s.Keys()
	points := make([]Point, len(keys))
	for i, k := range keys {
		points[i] = Point{Start: time.Unix(k, 0).In(loc), Value: s[k]}
	}
	return points
}

// Latest is the value of the most recent bucket, or 0 for an empty series.
func (s Series) Latest() float64 {
	if len(s) == 0 {
		return 0
	}
	var (
		latest int64
		first  = true
	)
	for k := range s {
		if first || k > latest {
			latest = k
			first = false
		}
	}
	return s[latest]
}

// Total is the sum of all bucket values.
func (s Series) Total() float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return total
}

// Average divides the total by the number of present buckets, floored at 1.
func (s Series) Average() float64 {
	return s.Total() / float64(max(1, len(s)))
}

// ValueAt returns the value of the bucket of width w, anchored at anchor,
// that contains t. Missing buckets read as 0.
func (s Series) ValueAt(anchor time.Time, w BucketWidth, t time.Time) float64 {
	if t.Before(anchor) || w.Count <= 0 {
		return 0
	}
	var start time.Time
	for i := 0; ; i++ {
		next := w.Step(anchor, i+1)
		if next.After(t) {
			start = w.Step(anchor, i)
			break
		}
	}
	v, _ := s.Get(start)
	return v
}
