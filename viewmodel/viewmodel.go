// Package viewmodel coordinates the dashboard: it owns the view state, turns
// user commands into date windows and keeps both series in step with the
// window the user is looking at.
//
// All state lives on a single loop goroutine. Commands may be called from any
// goroutine; they are posted to the loop. Fetches run on their own goroutines
// and post their results back, where results for a window the user already
// left are dropped.
package viewmodel

import (
	"context"
	"sync"
	"time"

	"github.com/gohealthy/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DragThreshold is the horizontal travel, in points, a drag needs to page.
const DragThreshold = 50

// HealthStore is the source of health data.
type HealthStore interface {
	RequestAuthorization(ctx context.Context) error
	// FetchSeries returns metric aggregated into buckets of width w over
	// [start, end). Unsupported metrics yield an empty series.
	FetchSeries(ctx context.Context, metric models.Metric, w models.BucketWidth, start, end time.Time) (models.Series, error)
}

type ViewModel struct {
	ctx     context.Context
	store   HealthStore
	loop    Dispatcher
	log     *zap.Logger
	cal     models.Calendar
	now     func() time.Time
	metrics *Metrics

	// owned by the loop
	state   ViewState
	session uint64
	serial  uint64

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// Option configures a ViewModel.
type Option func(*ViewModel)

func WithCalendar(cal models.Calendar) Option {
	return func(vm *ViewModel) { vm.cal = cal }
}

// WithClock replaces time.Now as the reference instant of every window.
func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) { vm.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(vm *ViewModel) { vm.metrics = m }
}

// New creates a view model. ctx is handed to every store call and should
// only be cancelled at shutdown.
func New(ctx context.Context, store HealthStore, loop Dispatcher, log *zap.Logger, opts ...Option) *ViewModel {
	vm := &ViewModel{
		ctx:       ctx,
		store:     store,
		loop:      loop,
		log:       log,
		cal:       models.DefaultCalendar(),
		now:       time.Now,
		state:     InitialState(),
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// State returns a copy of the current state. Only call it on the loop.
func (vm *ViewModel) State() ViewState { return vm.state }

// Snapshot reads the state from any goroutine.
func (vm *ViewModel) Snapshot(ctx context.Context) (ViewState, error) {
	var s ViewState
	err := Call(ctx, vm.loop, func() { s = vm.state })
	return s, err
}

// Subscribe registers fn for every event and returns a function that removes it.
// fn runs on the loop and must not block.
func (vm *ViewModel) Subscribe(fn func(Event)) (cancel func()) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id := vm.nextID
	vm.nextID++
	vm.listeners[id] = fn
	return func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		delete(vm.listeners, id)
	}
}

func (vm *ViewModel) emit(kind EventKind, metric models.Metric) {
	vm.mu.Lock()
	listeners := make([]func(Event), 0, len(vm.listeners))
	for _, fn := range vm.listeners {
		listeners = append(listeners, fn)
	}
	vm.mu.Unlock()

	ev := Event{Kind: kind, State: vm.state, Metric: metric}
	for _, fn := range listeners {
		fn(ev)
	}
}

func (vm *ViewModel) OnScreenEnter() { vm.loop.Post(vm.enter) }

func (vm *ViewModel) OnScreenExit() { vm.loop.Post(vm.exit) }

func (vm *ViewModel) OnGranularityChanged(g models.Granularity) {
	vm.loop.Post(func() { vm.changeGranularity(g) })
}

func (vm *ViewModel) OnSwipeOlder() { vm.loop.Post(vm.older) }

func (vm *ViewModel) OnSwipeNewer() { vm.loop.Post(vm.newer) }

// OnDrag pages by a horizontal drag of dx points: right is older, left is newer.
func (vm *ViewModel) OnDrag(dx float64) {
	vm.loop.Post(func() {
		switch {
		case dx > DragThreshold:
			vm.older()
		case dx < -DragThreshold:
			vm.newer()
		default:
			vm.emit(EventNavigation, 0)
		}
	})
}

// reset returns to the default window. In-flight fetches become stale.
func (vm *ViewModel) reset() {
	vm.session++
	vm.state.Granularity = models.DefaultGranularity
	vm.state.Offset = 0
	vm.state.Pending = 0
	vm.state.Window = vm.window()
}

func (vm *ViewModel) enter() {
	vm.reset()

	switch vm.state.Auth {
	case Unauthorized:
		vm.state.Auth = Authorizing
		vm.state.AuthorizationMessage = ""
		vm.log.Info("requesting authorization")
		vm.emit(EventAuthorization, 0)
		go vm.authorize()
	case Authorized:
		vm.navigate("enter")
	default:
		vm.emit(EventNavigation, 0)
	}
}

func (vm *ViewModel) exit() {
	vm.reset()
	vm.emit(EventNavigation, 0)
}

func (vm *ViewModel) changeGranularity(g models.Granularity) {
	if !g.IsValid() {
		vm.log.Warn("ignoring invalid granularity", zap.Int("granularity", int(g)))
		vm.emit(EventNavigation, 0)
		return
	}
	vm.state.Granularity = g
	vm.state.Offset = 0
	vm.navigate("granularity")
}

func (vm *ViewModel) older() {
	vm.state.Offset--
	vm.navigate("older")
}

func (vm *ViewModel) newer() {
	if vm.state.Offset >= 0 {
		vm.state.Offset = 0
		vm.emit(EventNavigation, 0)
		return
	}
	vm.state.Offset++
	vm.navigate("newer")
}

// navigate publishes a new window, refreshing it when authorized.
func (vm *ViewModel) navigate(trigger string) {
	vm.state.Window = vm.window()
	if vm.refresh(trigger) {
		vm.emit(EventRefresh, 0)
		return
	}
	vm.emit(EventNavigation, 0)
}

func (vm *ViewModel) window() models.Window {
	return models.ComputeRange(vm.cal, vm.state.Granularity, vm.state.Offset, vm.now())
}

func (vm *ViewModel) generation() generation {
	return generation{
		granularity: vm.state.Granularity,
		offset:      vm.state.Offset,
		session:     vm.session,
		serial:      vm.serial,
	}
}

func (vm *ViewModel) authorize() {
	err := vm.store.RequestAuthorization(vm.ctx)
	vm.loop.Post(func() { vm.authorized(err) })
}

func (vm *ViewModel) authorized(err error) {
	if err != nil {
		reason := err.Error()
		if reason == "" {
			reason = "unknown"
		}
		vm.state.Auth = Unauthorized
		vm.state.AuthorizationMessage = "no access: " + reason
		vm.log.Warn("authorization failed", zap.Error(err))
		vm.emit(EventAuthorization, 0)
		return
	}

	vm.state.Auth = Authorized
	vm.state.AuthorizationMessage = ""
	vm.log.Info("authorization granted")
	vm.refresh("authorization")
	vm.emit(EventAuthorization, 0)
}

// refresh fetches both metrics for the current window. It reports false,
// and does nothing, while not authorized. Callers emit the event.
func (vm *ViewModel) refresh(trigger string) bool {
	if vm.state.Auth != Authorized {
		vm.log.Debug("refresh skipped", zap.String("trigger", trigger), zap.Stringer("auth", vm.state.Auth))
		return false
	}

	vm.serial++
	gen := vm.generation()
	win := models.ComputeRange(vm.cal, gen.granularity, gen.offset, vm.now())
	vm.state.Window = win
	vm.state.Pending = len(models.Metrics)

	id := uuid.NewString()
	vm.metrics.refreshed(trigger)
	vm.log.Info("refreshing",
		zap.String("refresh_id", id),
		zap.String("trigger", trigger),
		zap.Stringer("granularity", gen.granularity),
		zap.Int("offset", gen.offset),
		zap.Time("start", win.Start),
		zap.Time("end", win.End))

	for _, m := range models.Metrics {
		go vm.fetch(id, gen, m, win)
	}
	return true
}

func (vm *ViewModel) fetch(id string, gen generation, m models.Metric, win models.Window) {
	began := time.Now()
	series, err := vm.store.FetchSeries(vm.ctx, m, m.BucketWidth(gen.granularity), win.Start, win.End)
	vm.metrics.observe(m, time.Since(began))
	vm.loop.Post(func() { vm.fetched(id, gen, m, series, err) })
}

func (vm *ViewModel) fetched(id string, gen generation, m models.Metric, series models.Series, err error) {
	log := vm.log.With(zap.String("refresh_id", id), zap.Stringer("metric", m))
	if gen != vm.generation() {
		vm.metrics.fetched(m, resultStale)
		log.Debug("dropping stale result")
		vm.emit(EventStale, m)
		return
	}

	if vm.state.Pending > 0 {
		vm.state.Pending--
	}
	var errText string
	if err != nil {
		vm.metrics.fetched(m, resultError)
		log.Warn("fetch failed", zap.Error(err))
		series, errText = models.Series{}, err.Error()
	} else {
		vm.metrics.fetched(m, resultSuccess)
		log.Debug("fetch finished", zap.Int("buckets", len(series)))
		if series == nil {
			series = models.Series{}
		}
	}
	vm.state.setSeries(m, series, errText)
	vm.emit(EventSeries, m)
}
