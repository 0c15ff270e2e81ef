package models

import (
	"testing"
	"time"
)

func TestSeriesDerivedValues(t *testing.T) {
	base := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	s := NewSeries(
		Point{Start: base.Add(2 * time.Hour), Value: 30},
		Point{Start: base, Value: 10},
		Point{Start: base.Add(time.Hour), Value: 20},
	)

	if got := s.Latest(); got != 30 {
		t.Errorf("Latest: expected 30, got %v", got)
	}
	if got := s.Total(); got != 60 {
		t.Errorf("Total: expected 60, got %v", got)
	}
	if got := s.Average(); got != 20 {
		t.Errorf("Average: expected 20, got %v", got)
	}

	points := s.Points(time.UTC)
	for i := 1; i < len(points); i++ {
		if !points[i].Start.After(points[i-1].Start) {
			t.Fatalf("Expected ascending points, got %v", points)
		}
	}
}

func TestEmptySeries(t *testing.T) {
	var s Series
	if s.Latest() != 0 || s.Total() != 0 || s.Average() != 0 {
		t.Errorf("Expected zeros for an empty series, got %v %v %v", s.Latest(), s.Total(), s.Average())
	}
	if len(s.Points(nil)) != 0 {
		t.Error("Expected no points")
	}
}

func TestSeriesKeysIgnoreLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2024, 3, 11, 9, 0, 0, 0, tokyo)
	s := NewSeries(Point{Start: instant, Value: 5})
	if v, ok := s.Get(instant.UTC()); !ok || v != 5 {
		t.Errorf("Expected the same instant in UTC to find the bucket")
	}
}

func TestSeriesValueAt(t *testing.T) {
	anchor := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	s := NewSeries(Point{Start: anchor.AddDate(0, 0, 2), Value: 4321})

	if got := s.ValueAt(anchor, Days(1), anchor.AddDate(0, 0, 2).Add(15*time.Hour)); got != 4321 {
		t.Errorf("Expected 4321, got %v", got)
	}
	if got := s.ValueAt(anchor, Days(1), anchor.AddDate(0, 0, 1)); got != 0 {
		t.Errorf("Expected 0 for a missing bucket, got %v", got)
	}
	if got := s.ValueAt(anchor, Days(1), anchor.Add(-time.Second)); got != 0 {
		t.Errorf("Expected 0 before the anchor, got %v", got)
	}
	if got := s.ValueAt(anchor, Days(0), anchor); got != 0 {
		t.Errorf("Expected 0 for a zero width, got %v", got)
	}
}
