// Package healthstore is an in-memory health data store. It serves
// aggregated series from samples held in memory and is used for the demo
// dashboard and for tests.
package healthstore

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gohealthy/models"
)

// ErrAuthorizationDenied is returned by RequestAuthorization after Deny.
var ErrAuthorizationDenied = errors.New("authorization denied")

// Store holds raw samples per metric.
type Store struct {
	mu      sync.RWMutex
	samples map[models.Metric][]models.Sample
	denial  error
	latency time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLatency delays every request, so callers see the store as a slow remote.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// New creates an empty store that grants authorization.
func New(opts ...Option) *Store {
	s := &Store{samples: make(map[models.Metric][]models.Sample)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deny makes every following authorization request fail with reason.
// An empty reason grants access again.
func (s *Store) Deny(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		s.denial = nil
		return
	}
	s.denial = &DeniedError{Reason: reason}
}

// DeniedError carries the reason an authorization request was refused.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

func (e *DeniedError) Unwrap() error { return ErrAuthorizationDenied }

// Add appends samples for a metric.
func (s *Store) Add(metric models.Metric, samples ...models.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[metric] = append(s.samples[metric], samples...)
}

// Len returns the number of samples stored for a metric.
func (s *Store) Len(metric models.Metric) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[metric])
}

// RequestAuthorization grants or refuses access to the stored samples.
func (s *Store) RequestAuthorization(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.denial
}

// FetchSeries aggregates the stored samples of metric in [start, end) into
// buckets of width w. An unsupported metric yields an empty series.
func (s *Store) FetchSeries(ctx context.Context, metric models.Metric, w models.BucketWidth, start, end time.Time) (models.Series, error) {
	if !metric.IsValid() {
		return models.Series{}, nil
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	samples := s.samples[metric]
	s.mu.RUnlock()

	window := models.Window{Start: start, End: end}
	return models.Aggregate(samples, window, w, metric.Aggregation()), nil
}

func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Seed fills the store with days of plausible demo data ending at now:
// steps every 10 minutes while awake and a heart-rate reading every 5 minutes.
func (s *Store) Seed(now time.Time, days int, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	loc := now.Location()
	y, m, d := now.Date()
	first := time.Date(y, m, d-days+1, 0, 0, 0, 0, loc)

	var steps, heart []models.Sample
	for day := first; !day.After(now); day = day.AddDate(0, 0, 1) {
		// some days are lazier than others
		activity := 0.6 + rng.Float64()*0.8
		for t := day; t.Before(day.AddDate(0, 0, 1)) && !t.After(now); t = t.Add(5 * time.Minute) {
			hour := float64(t.Hour()) + float64(t.Minute())/60
			awake := hour >= 7 && hour < 23
			if awake && t.Minute()%10 == 0 {
				base := 60 + 90*math.Max(0, math.Sin((hour-7)/16*math.Pi))
				steps = append(steps, models.Sample{Time: t, Value: math.Round(base * activity * (0.5 + rng.Float64()))})
			}
			rate := 55 + 10*rng.Float64()
			if awake {
				rate += 15 + 25*activity*rng.Float64()
			}
			heart = append(heart, models.Sample{Time: t, Value: math.Round(rate)})
		}
	}
	s.Add(models.MetricSteps, steps...)
	s.Add(models.MetricHeartRate, heart...)
}
