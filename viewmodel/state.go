package viewmodel

import (
	"time"

	"github.com/gohealthy/models"
)

// AuthState is the authorization state of the session.
type AuthState int

const (
	Unauthorized AuthState = iota
	Authorizing
	Authorized
)

func (a AuthState) String() string {
	switch a {
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	default:
		return "unauthorized"
	}
}

// ViewState is everything the dashboard renders.
// Series are replaced, never mutated, so a copy of ViewState may share them.
type ViewState struct {
	Auth        AuthState
	Granularity models.Granularity
	Offset      int
	Window      models.Window

	StepsSeries     models.Series
	HeartRateSeries models.Series
	// StepsError and HeartRateError hold the reason of the last failed fetch,
	// so an empty series can be told apart from a failure.
	StepsError     string
	HeartRateError string

	AuthorizationMessage string
	// Pending counts fetches of the current generation still in flight.
	Pending int
}

// InitialState is the state before any command: unauthorized, on the
// default granularity at offset 0.
func InitialState() ViewState {
	return ViewState{
		Auth:            Unauthorized,
		Granularity:     models.DefaultGranularity,
		StepsSeries:     models.Series{},
		HeartRateSeries: models.Series{},
	}
}

// Series returns the series and error text of a metric.
func (s ViewState) Series(m models.Metric) (models.Series, string) {
	if m == models.MetricHeartRate {
		return s.HeartRateSeries, s.HeartRateError
	}
	return s.StepsSeries, s.StepsError
}

func (s *ViewState) setSeries(m models.Metric, series models.Series, errText string) {
	if m == models.MetricHeartRate {
		s.HeartRateSeries, s.HeartRateError = series, errText
		return
	}
	s.StepsSeries, s.StepsError = series, errText
}

// TodaySteps is the steps bucket containing now, 0 if the window does not
// contain now or the bucket is missing.
func (s ViewState) TodaySteps(now time.Time) float64 {
	if !s.Window.Contains(now) {
		return 0
	}
	return s.StepsSeries.ValueAt(s.Window.Start, models.MetricSteps.BucketWidth(s.Granularity), now)
}

// LatestHeartRate is the most recent heart rate bucket.
func (s ViewState) LatestHeartRate() float64 {
	return s.HeartRateSeries.Latest()
}

// generation identifies the refresh a fetch was issued for.
type generation struct {
	granularity models.Granularity
	offset      int
	session     uint64
	// serial counts refreshes, so repeating a refresh of the same window
	// makes the earlier one stale.
	serial      uint64
}

// EventKind tells what changed.
type EventKind int

const (
	// EventAuthorization follows an authorization request or its result.
	EventAuthorization EventKind = iota
	// EventNavigation is a command that did not start a refresh.
	EventNavigation
	// EventRefresh is a command that started a refresh.
	EventRefresh
	EventSeries
	EventStale
)

func (k EventKind) String() string {
	switch k {
	case EventAuthorization:
		return "authorization"
	case EventNavigation:
		return "navigation"
	case EventRefresh:
		return "refresh"
	case EventSeries:
		return "series"
	case EventStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on the loop goroutine after every change.
type Event struct {
	Kind  EventKind
	State ViewState
	// Metric is set for EventSeries and EventStale.
	Metric models.Metric
}
