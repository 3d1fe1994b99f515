package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Factory builds the view of a device.
type Factory func(deviceID string) *View

// Registry keeps one View per device and drops views that have been idle
// longer than the configured TTL.
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*entry
}

type entry struct {
	view     *View
	lastUsed time.Time
	// closed once the first Load has returned
	ready chan struct{}
}

func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		views:   make(map[string]*entry),
	}
}

// Get returns the device's view, creating and loading it on first use.
// Requests arriving while that first load runs wait for it. A view left
// without a profile (signed out or failed load) is loaded again. The returned
// error is ErrAuthenticationRequired when nobody is signed in.
func (r *Registry) Get(ctx context.Context, deviceID string) (*View, error) {
	r.mu.Lock()
	e, ok := r.views[deviceID]
	if ok {
		e.lastUsed = r.now()
		r.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			return e.view, ctx.Err()
		}
		switch e.view.Snapshot().Phase {
		case PhaseAuthRequired, PhaseLoadFailed:
			return e.view, e.view.Load(ctx)
		}
		return e.view, nil
	}
	e = &entry{view: r.factory(deviceID), lastUsed: r.now(), ready: make(chan struct{})}
	r.views[deviceID] = e
	r.mu.Unlock()

	// first mount
	defer close(e.ready)
	if err := e.view.Load(ctx); err != nil {
		return e.view, err
	}
	return e.view, nil
}

// Forget drops the device's view, for example after sign-out.
func (r *Registry) Forget(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, deviceID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep removes idle views that are not saving and returns how many it removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.views {
		if e.lastUsed.Before(cutoff) && !e.view.Snapshot().Saving {
			delete(r.views, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until done is closed.
func (r *Registry) StartSweeper(interval time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					slog.Info("idle profile views evicted", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
}

// IsAuthError reports whether err means the device has no signed-in user.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationRequired)
}
