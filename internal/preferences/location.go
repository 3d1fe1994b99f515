// Package preferences holds device-scoped user preferences that other views
// observe, such as the active location shown in the page header.
package preferences

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
)

// Hub fans location changes out to subscribers of the same device.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan profile.Location
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan profile.Location)}
}

// Subscribe returns a channel receiving every location published for
// deviceID and a cancel func that closes it. Slow subscribers only see the
// latest value.
func (h *Hub) Subscribe(deviceID string) (<-chan profile.Location, func()) {
	ch := make(chan profile.Location, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[deviceID] == nil {
		h.subs[deviceID] = make(map[int]chan profile.Location)
	}
	h.subs[deviceID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[deviceID], id)
			if len(h.subs[deviceID]) == 0 {
				delete(h.subs, deviceID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish never blocks.
func (h *Hub) Publish(deviceID string, loc profile.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[deviceID] {
		select {
		case ch <- loc:
		default:
			// drop the stale value, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- loc
		}
	}
}

// Subscribers reports how many subscriptions deviceID has.
func (h *Hub) Subscribers(deviceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[deviceID])
}

// LocationPreference is the observable location preference of one device,
// persisted under the userLocation key.
type LocationPreference struct {
	deviceID string
	store    devicestore.Store
	hub      *Hub
}

func NewLocationPreference(deviceID string, store devicestore.Store, hub *Hub) *LocationPreference {
	return &LocationPreference{deviceID: deviceID, store: store, hub: hub}
}

// Get returns the stored location. ok is false when nothing valid is stored.
func (p *LocationPreference) Get(ctx context.Context) (profile.Location, bool, error) {
	raw, ok, err := devicestore.Lookup(ctx, p.store, devicestore.LocationKey)
	if err != nil || !ok {
		return "", false, err
	}
	loc, err := profile.ParseLocation(raw)
	if err != nil {
		return "", false, nil
	}
	return loc, true, nil
}

// Current returns the stored location or All India.
func (p *LocationPreference) Current(ctx context.Context) profile.Location {
	loc, ok, err := p.Get(ctx)
	if err != nil || !ok {
		return profile.AllIndia
	}
	return loc
}

// Set persists loc and notifies subscribers.
func (p *LocationPreference) Set(ctx context.Context, loc profile.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: %q", profile.ErrUnsupportedLocation, string(loc))
	}
	if err := p.store.Set(ctx, devicestore.LocationKey, string(loc)); err != nil {
		return err
	}
	p.hub.Publish(p.deviceID, loc)
	return nil
}

func (p *LocationPreference) Subscribe() (<-chan profile.Location, func()) {
	return p.hub.Subscribe(p.deviceID)
}
