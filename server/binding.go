package server

import (
	"context"
	"sync"

	"github.com/gohealthy/viewmodel"
)

// Subscriber is the event source of the view model.
type Subscriber interface {
	Subscribe(fn func(viewmodel.Event)) (cancel func())
}

// Binding mirrors the latest view state for request goroutines.
type Binding struct {
	mu      sync.Mutex
	state   viewmodel.ViewState
	version uint64
	changed chan struct{}

	cancel func()
}

// Bind subscribes to src. Call Close to unsubscribe.
func Bind(src Subscriber) *Binding {
	b := &Binding{state: viewmodel.InitialState(), changed: make(chan struct{})}
	b.cancel = src.Subscribe(b.update)
	return b
}

func (b *Binding) update(ev viewmodel.Event) {
	// a dropped result changes nothing and must not end a wait
	if ev.Kind == viewmodel.EventStale {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = ev.State
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Snapshot returns the latest state and its version.
func (b *Binding) Snapshot() (viewmodel.ViewState, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.version
}

// WaitSettled blocks until a state newer than version arrives with no
// authorization or fetch in flight, or until ctx is done. It returns the
// latest state either way.
func (b *Binding) WaitSettled(ctx context.Context, version uint64) viewmodel.ViewState {
	for {
		b.mu.Lock()
		state, v, changed := b.state, b.version, b.changed
		b.mu.Unlock()

		if v > version && settled(state) {
			return state
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state
		}
	}
}

func settled(s viewmodel.ViewState) bool {
	return s.Auth != viewmodel.Authorizing && s.Pending == 0
}

func (b *Binding) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
