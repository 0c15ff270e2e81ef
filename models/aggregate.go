package models

import (
	"sort"
	"time"
)

// Sample is a single raw reading from a health data source.
type Sample struct {
	Time  time.Time
	Value float64
}

// Aggregate folds samples into buckets of width w anchored at the window
// start. Samples outside the window are ignored and buckets that receive no
// sample are left out of the result.
func Aggregate(samples []Sample, window Window, w BucketWidth, agg Aggregation) Series {
	out := make(Series)
	if !window.End.After(window.Start) || w.Count <= 0 {
		return out
	}

	var bounds []time.Time
	for i := 0; ; i++ {
		b := w.Step(window.Start, i)
		if !b.Before(window.End) {
			break
		}
		bounds = append(bounds, b)
	}

	sums := make([]float64, len(bounds))
	counts := make([]int, len(bounds))
	for _, s := range samples {
		if !window.Contains(s.Time) {
			continue
		}
		// last boundary <= s.Time
		idx := sort.Search(len(bounds), func(i int) bool { return bounds[i].After(s.Time) }) - 1
		if idx < 0 {
			continue
		}
		sums[idx] += s.Value
		counts[idx]++
	}

	for i, b := range bounds {
		if counts[i] == 0 {
			continue
		}
		switch agg {
		case AggregationAverage:
			out.Set(b, sums[i]/float64(counts[i]))
		default:
			out.Set(b, sums[i])
		}
	}
	return out
}
