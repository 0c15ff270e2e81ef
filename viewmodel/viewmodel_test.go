package viewmodel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gohealthy/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

// queue is a Dispatcher drained by the test goroutine, which then plays the loop.
type queue struct {
	ch chan func()
}

func newQueue() *queue { return &queue{ch: make(chan func(), 64)} }

func (q *queue) Post(fn func()) { q.ch <- fn }

func (q *queue) runNext(t *testing.T) {
	t.Helper()
	select {
	case fn := <-q.ch:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("nothing was posted to the loop")
	}
}

func (q *queue) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case <-q.ch:
		t.Fatal("unexpected closure posted to the loop")
	case <-time.After(20 * time.Millisecond):
	}
}

type fetchResult struct {
	series models.Series
	err    error
}

type fetchCall struct {
	metric models.Metric
	width  models.BucketWidth
	start  time.Time
	end    time.Time
	reply  chan fetchResult
}

// fakeStore hands every fetch to the test, which answers when it likes.
type fakeStore struct {
	AuthFunc func(ctx context.Context) error
	calls    chan fetchCall
}

func (f *fakeStore) RequestAuthorization(ctx context.Context) error {
	if f.AuthFunc != nil {
		return f.AuthFunc(ctx)
	}
	return nil
}

func (f *fakeStore) FetchSeries(ctx context.Context, metric models.Metric, w models.BucketWidth, start, end time.Time) (models.Series, error) {
	c := fetchCall{metric: metric, width: w, start: start, end: end, reply: make(chan fetchResult, 1)}
	f.calls <- c
	r := <-c.reply
	return r.series, r.err
}

var (
	utc      = models.Calendar{Location: time.UTC, FirstWeekday: time.Monday}
	fixedNow = time.Date(2024, 3, 13, 10, 30, 0, 0, time.UTC) // a Wednesday
)

type harness struct {
	vm      *ViewModel
	q       *queue
	store   *fakeStore
	metrics *Metrics
	events  []Event
}

func newHarness(t *testing.T, authErr error) *harness {
	t.Helper()
	h := &harness{
		q: newQueue(),
		store: &fakeStore{
			AuthFunc: func(context.Context) error { return authErr },
			calls:    make(chan fetchCall, 16),
		},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	h.vm = New(context.Background(), h.store, h.q, zap.NewNop(),
		WithCalendar(utc),
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(h.metrics))
	h.vm.Subscribe(func(ev Event) { h.events = append(h.events, ev) })
	return h
}

// calls collects the two fetches of one refresh, keyed by metric.
func (h *harness) calls(t *testing.T) map[models.Metric]fetchCall {
	t.Helper()
	got := make(map[models.Metric]fetchCall)
	for len(got) < 2 {
		select {
		case c := <-h.store.calls:
			got[c.metric] = c
		case <-time.After(2 * time.Second):
			t.Fatalf("expected two fetches, got %d", len(got))
		}
	}
	return got
}

func (h *harness) expectNoFetch(t *testing.T) {
	t.Helper()
	select {
	case c := <-h.store.calls:
		t.Fatalf("unexpected fetch of %v", c.metric)
	case <-time.After(20 * time.Millisecond):
	}
}

// answer replies to both fetches with empty series and applies the results.
func (h *harness) answer(t *testing.T) {
	t.Helper()
	for _, c := range h.calls(t) {
		c.reply <- fetchResult{series: models.Series{}}
	}
	h.q.runNext(t)
	h.q.runNext(t)
}

func (h *harness) authorize(t *testing.T) {
	t.Helper()
	h.vm.OnScreenEnter()
	h.q.runNext(t) // enter
	h.q.runNext(t) // authorization result
	h.answer(t)
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestAuthorizationDenied(t *testing.T) {
	h := newHarness(t, errors.New("denied"))

	h.vm.OnScreenEnter()
	h.q.runNext(t)
	if got := h.vm.State().Auth; got != Authorizing {
		t.Fatalf("Expected authorizing, got %v", got)
	}
	h.q.runNext(t)

	s := h.vm.State()
	if s.Auth != Unauthorized {
		t.Errorf("Expected unauthorized, got %v", s.Auth)
	}
	if s.AuthorizationMessage != "no access: denied" {
		t.Errorf("Unexpected message %q", s.AuthorizationMessage)
	}
	if len(s.StepsSeries) != 0 || len(s.HeartRateSeries) != 0 {
		t.Error("Expected both series to stay empty")
	}
	h.expectNoFetch(t)
}

func TestAuthorizationDeniedWithoutReason(t *testing.T) {
	h := newHarness(t, errors.New(""))
	h.vm.OnScreenEnter()
	h.q.runNext(t)
	h.q.runNext(t)
	if got := h.vm.State().AuthorizationMessage; got != "no access: unknown" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestReenterRetriesAuthorization(t *testing.T) {
	attempts := 0
	h := newHarness(t, nil)
	h.store.AuthFunc = func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("denied")
		}
		return nil
	}

	h.vm.OnScreenEnter()
	h.q.runNext(t)
	h.q.runNext(t)
	h.expectNoFetch(t)

	h.vm.OnScreenExit()
	h.q.runNext(t)
	h.authorize(t)
	if attempts != 2 {
		t.Errorf("Expected a second authorization request, got %d", attempts)
	}
	if s := h.vm.State(); s.Auth != Authorized || s.AuthorizationMessage != "" {
		t.Errorf("Expected authorized without message, got %v %q", s.Auth, s.AuthorizationMessage)
	}
}

func TestAuthorizationRefreshesDefaultWindow(t *testing.T) {
	h := newHarness(t, nil)
	h.vm.OnScreenEnter()
	h.q.runNext(t)
	h.q.runNext(t)

	s := h.vm.State()
	if s.Auth != Authorized || s.Pending != 2 {
		t.Fatalf("Expected authorized with two pending fetches, got %v %d", s.Auth, s.Pending)
	}

	week := models.ComputeRange(utc, models.GranularityDay, 0, fixedNow)
	calls := h.calls(t)
	for _, m := range models.Metrics {
		c := calls[m]
		if !c.start.Equal(week.Start) || !c.end.Equal(week.End) {
			t.Errorf("%v: expected window %v - %v, got %v - %v", m, week.Start, week.End, c.start, c.end)
		}
		if c.width != m.BucketWidth(models.GranularityDay) {
			t.Errorf("%v: unexpected bucket width %v", m, c.width)
		}
	}

	calls[models.MetricSteps].reply <- fetchResult{series: models.NewSeries(models.Point{Start: week.Start, Value: 1200})}
	calls[models.MetricHeartRate].reply <- fetchResult{series: models.NewSeries(models.Point{Start: week.Start, Value: 64})}
	h.q.runNext(t)
	h.q.runNext(t)

	s = h.vm.State()
	if s.Pending != 0 {
		t.Errorf("Expected no pending fetches, got %d", s.Pending)
	}
	if v, _ := s.StepsSeries.Get(week.Start); v != 1200 {
		t.Errorf("Expected 1200 steps, got %v", v)
	}
	if s.LatestHeartRate() != 64 {
		t.Errorf("Expected latest heart rate 64, got %v", s.LatestHeartRate())
	}
	if got := testutil.ToFloat64(h.metrics.refreshes.WithLabelValues("authorization")); got != 1 {
		t.Errorf("Expected one authorization refresh, got %v", got)
	}
}

func TestSwipeClampsAtPresent(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)
	before := h.count(EventRefresh)

	for i := 0; i < 2; i++ {
		h.vm.OnSwipeOlder()
		h.q.runNext(t)
		h.answer(t)
	}
	if got := h.vm.State().Offset; got != -2 {
		t.Fatalf("Expected offset -2, got %d", got)
	}

	for i := 0; i < 2; i++ {
		h.vm.OnSwipeNewer()
		h.q.runNext(t)
		h.answer(t)
	}
	h.vm.OnSwipeNewer()
	h.q.runNext(t)
	h.expectNoFetch(t)

	if got := h.vm.State().Offset; got != 0 {
		t.Errorf("Expected offset 0, got %d", got)
	}
	if got := h.count(EventRefresh) - before; got != 4 {
		t.Errorf("Expected 4 refreshes, got %d", got)
	}
}

func TestGranularityChangeIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)
	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	h.answer(t)
	before := h.count(EventRefresh)

	for i := 0; i < 2; i++ {
		h.vm.OnGranularityChanged(models.GranularityWeek)
		h.q.runNext(t)
		if s := h.vm.State(); s.Offset != 0 || s.Granularity != models.GranularityWeek {
			t.Errorf("call %d: expected week at offset 0, got %v %d", i, s.Granularity, s.Offset)
		}
		h.answer(t)
	}
	if got := h.count(EventRefresh) - before; got != 2 {
		t.Errorf("Expected one refresh per call, got %d", got)
	}
}

func TestInvalidGranularityIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)
	h.vm.OnGranularityChanged(models.Granularity(9))
	h.q.runNext(t)
	h.expectNoFetch(t)
	if got := h.vm.State().Granularity; got != models.GranularityDay {
		t.Errorf("Expected granularity to stay day, got %v", got)
	}
}

func TestStaleResultsAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	h.vm.OnGranularityChanged(models.GranularityWeek)
	h.q.runNext(t)
	first := h.calls(t)

	h.vm.OnGranularityChanged(models.GranularityMonth)
	h.q.runNext(t)
	second := h.calls(t)

	year := models.ComputeRange(utc, models.GranularityMonth, 0, fixedNow)
	second[models.MetricSteps].reply <- fetchResult{series: models.NewSeries(models.Point{Start: year.Start, Value: 2})}
	h.q.runNext(t)

	month := models.ComputeRange(utc, models.GranularityWeek, 0, fixedNow)
	first[models.MetricSteps].reply <- fetchResult{series: models.NewSeries(models.Point{Start: month.Start, Value: 1})}
	h.q.runNext(t)
	first[models.MetricHeartRate].reply <- fetchResult{series: models.NewSeries(models.Point{Start: month.Start, Value: 70})}
	h.q.runNext(t)

	s := h.vm.State()
	if len(s.StepsSeries) != 1 {
		t.Fatalf("Expected only the newest steps result, got %v", s.StepsSeries)
	}
	if v, _ := s.StepsSeries.Get(year.Start); v != 2 {
		t.Errorf("Expected steps from the newer generation, got %v", s.StepsSeries)
	}
	if len(s.HeartRateSeries) != 0 {
		t.Errorf("Expected the stale heart rate to be dropped, got %v", s.HeartRateSeries)
	}
	if s.Pending != 1 {
		t.Errorf("Expected one fetch still pending, got %d", s.Pending)
	}
	if got := h.count(EventStale); got != 2 {
		t.Errorf("Expected two stale events, got %d", got)
	}
	if got := testutil.ToFloat64(h.metrics.fetches.WithLabelValues("steps", resultStale)); got != 1 {
		t.Errorf("Expected one stale steps fetch, got %v", got)
	}

	second[models.MetricHeartRate].reply <- fetchResult{series: models.NewSeries(models.Point{Start: year.Start, Value: 66})}
	h.q.runNext(t)
	if v, _ := h.vm.State().HeartRateSeries.Get(year.Start); v != 66 {
		t.Errorf("Expected heart rate from the newer generation, got %v", v)
	}
}

func TestFetchFailureSetsError(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	calls := h.calls(t)
	calls[models.MetricSteps].reply <- fetchResult{series: models.Series{}}
	calls[models.MetricHeartRate].reply <- fetchResult{series: models.NewSeries(models.Point{Start: fixedNow, Value: 1}), err: errors.New("boom")}
	h.q.runNext(t)
	h.q.runNext(t)

	s := h.vm.State()
	if s.HeartRateError != "boom" || len(s.HeartRateSeries) != 0 {
		t.Errorf("Expected empty heart rate with error, got %v %q", s.HeartRateSeries, s.HeartRateError)
	}
	if s.StepsError != "" {
		t.Errorf("Expected an empty steps result to carry no error, got %q", s.StepsError)
	}
	if got := testutil.ToFloat64(h.metrics.fetches.WithLabelValues("heart_rate", resultError)); got != 1 {
		t.Errorf("Expected one failed heart rate fetch, got %v", got)
	}
}

func TestExitResetsWithoutRefresh(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	h.vm.OnGranularityChanged(models.GranularityHour)
	h.q.runNext(t)
	h.answer(t)
	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	inflight := h.calls(t)
	before := h.count(EventRefresh)

	h.vm.OnScreenExit()
	h.q.runNext(t)
	s := h.vm.State()
	if s.Granularity != models.GranularityDay || s.Offset != 0 {
		t.Errorf("Expected default window after exit, got %v %d", s.Granularity, s.Offset)
	}
	h.expectNoFetch(t)
	if h.count(EventRefresh) != before {
		t.Error("Expected exit not to refresh")
	}

	for _, c := range inflight {
		c.reply <- fetchResult{series: models.NewSeries(models.Point{Start: fixedNow, Value: 5})}
	}
	h.q.runNext(t)
	h.q.runNext(t)
	if got := h.count(EventStale); got != 2 {
		t.Errorf("Expected results issued before exit to be stale, got %d", got)
	}
}

func TestDragPages(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	tests := []struct {
		dx     float64
		offset int
		fetch  bool
	}{
		{dx: 80, offset: -1, fetch: true},
		{dx: 30, offset: -1},
		{dx: -50, offset: -1},
		{dx: -120, offset: 0, fetch: true},
		{dx: -120, offset: 0},
	}
	for _, tt := range tests {
		h.vm.OnDrag(tt.dx)
		h.q.runNext(t)
		if tt.fetch {
			h.answer(t)
		} else {
			h.expectNoFetch(t)
		}
		if got := h.vm.State().Offset; got != tt.offset {
			t.Errorf("dx %v: expected offset %d, got %d", tt.dx, tt.offset, got)
		}
	}
}

func TestNavigationBeforeAuthorizationDoesNotFetch(t *testing.T) {
	h := newHarness(t, nil)
	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	h.expectNoFetch(t)

	s := h.vm.State()
	if s.Offset != -1 {
		t.Errorf("Expected offset -1, got %d", s.Offset)
	}
	if want := models.ComputeRange(utc, models.GranularityDay, -1, fixedNow); !s.Window.Start.Equal(want.Start) {
		t.Errorf("Expected window to follow the offset, got %v", s.Window.Start)
	}
}

func TestTodaySteps(t *testing.T) {
	week := models.ComputeRange(utc, models.GranularityDay, 0, fixedNow)
	today := utc.StartOfDay(fixedNow)
	s := ViewState{
		Granularity: models.GranularityDay,
		Window:      week,
		StepsSeries: models.NewSeries(models.Point{Start: today, Value: 4321}, models.Point{Start: week.Start, Value: 10}),
	}
	if got := s.TodaySteps(fixedNow); got != 4321 {
		t.Errorf("Expected 4321, got %v", got)
	}
	if got := s.TodaySteps(week.End.Add(time.Hour)); got != 0 {
		t.Errorf("Expected 0 outside the window, got %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t, nil)
	var n int
	cancel := h.vm.Subscribe(func(Event) { n++ })
	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	cancel()
	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	if n != 1 {
		t.Errorf("Expected one event before unsubscribing, got %d", n)
	}
}

func TestExitWhileFetchingClearsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	inflight := h.calls(t)
	if got := h.vm.State().Pending; got != 2 {
		t.Fatalf("Expected two pending fetches, got %d", got)
	}

	h.vm.OnScreenExit()
	h.q.runNext(t)
	if got := h.vm.State().Pending; got != 0 {
		t.Errorf("Expected no pending fetches after exit, got %d", got)
	}

	for _, c := range inflight {
		c.reply <- fetchResult{series: models.Series{}}
	}
	h.q.runNext(t)
	h.q.runNext(t)
	if got := h.vm.State().Pending; got != 0 {
		t.Errorf("Expected results from before the exit to leave pending at 0, got %d", got)
	}
}

func TestReenterWhileFetchingRestartsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)

	h.vm.OnSwipeOlder()
	h.q.runNext(t)
	inflight := h.calls(t)

	h.vm.OnScreenEnter()
	h.q.runNext(t)
	fresh := h.calls(t)
	if got := h.vm.State().Pending; got != 2 {
		t.Fatalf("Expected only the new refresh to be pending, got %d", got)
	}

	for _, c := range inflight {
		c.reply <- fetchResult{series: models.Series{}}
	}
	h.q.runNext(t)
	h.q.runNext(t)
	if got := h.vm.State().Pending; got != 2 {
		t.Errorf("Expected stale results not to count down, got %d", got)
	}

	for _, c := range fresh {
		c.reply <- fetchResult{series: models.Series{}}
	}
	h.q.runNext(t)
	h.q.runNext(t)
	if got := h.vm.State().Pending; got != 0 {
		t.Errorf("Expected no pending fetches, got %d", got)
	}
}

func TestRepeatedRefreshDropsEarlierResults(t *testing.T) {
	h := newHarness(t, nil)
	h.authorize(t)
	month := models.ComputeRange(utc, models.GranularityWeek, 0, fixedNow)

	h.vm.OnGranularityChanged(models.GranularityWeek)
	h.q.runNext(t)
	first := h.calls(t)
	h.vm.OnGranularityChanged(models.GranularityWeek)
	h.q.runNext(t)
	second := h.calls(t)

	for _, c := range first {
		c.reply <- fetchResult{series: models.NewSeries(models.Point{Start: month.Start, Value: 1})}
	}
	h.q.runNext(t)
	h.q.runNext(t)

	s := h.vm.State()
	if s.Pending != 2 {
		t.Errorf("Expected the second refresh to stay pending, got %d", s.Pending)
	}
	if len(s.StepsSeries) != 0 {
		t.Errorf("Expected the first refresh's steps to be dropped, got %v", s.StepsSeries)
	}
	if got := h.count(EventStale); got != 2 {
		t.Errorf("Expected two stale events, got %d", got)
	}

	for _, c := range second {
		c.reply <- fetchResult{series: models.NewSeries(models.Point{Start: month.Start, Value: 2})}
	}
	h.q.runNext(t)
	h.q.runNext(t)
	s = h.vm.State()
	if s.Pending != 0 {
		t.Errorf("Expected no pending fetches, got %d", s.Pending)
	}
	if v, _ := s.StepsSeries.Get(month.Start); v != 2 {
		t.Errorf("Expected steps from the latest refresh, got %v", v)
	}
}
