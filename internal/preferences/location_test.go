package preferences

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan profile.Location) profile.Location {
	t.Helper()
	select {
	case loc := <-ch:
		return loc
	case <-time.After(time.Second):
		t.Fatal("no location received")
		return ""
	}
}

func TestLocationPreference_SetPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := devicestore.NewMemoryBackend().ForDevice("dev-1")
	pref := NewLocationPreference("dev-1", store, NewHub())

	ch, cancel := pref.Subscribe()
	defer cancel()

	require.NoError(t, pref.Set(ctx, "Mumbai"))

	assert.Equal(t, profile.Location("Mumbai"), receive(t, ch))
	raw, err := store.Get(ctx, devicestore.LocationKey)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", raw)
}

func TestLocationPreference_RejectsUnknownLocation(t *testing.T) {
	store := devicestore.NewMemoryBackend().ForDevice("dev-1")
	pref := NewLocationPreference("dev-1", store, NewHub())

	err := pref.Set(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, profile.ErrUnsupportedLocation)

	_, err = store.Get(context.Background(), devicestore.LocationKey)
	assert.ErrorIs(t, err, devicestore.ErrNotFound)
}

func TestLocationPreference_GetAndCurrent(t *testing.T) {
	ctx := context.Background()
	store := devicestore.NewMemoryBackend().ForDevice("dev-1")
	pref := NewLocationPreference("dev-1", store, NewHub())

	_, ok, err := pref.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, profile.AllIndia, pref.Current(ctx))

	require.NoError(t, store.Set(ctx, devicestore.LocationKey, "Narnia"))
	_, ok, err = pref.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "garbage is treated as absent")

	require.NoError(t, store.Set(ctx, devicestore.LocationKey, "Pune"))
	loc, ok, err := pref.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, profile.Location("Pune"), loc)
	assert.Equal(t, profile.Location("Pune"), pref.Current(ctx))
}

func TestHub_DevicesAreIsolated(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe("a")
	defer cancelA()
	b, cancelB := hub.Subscribe("b")
	defer cancelB()

	hub.Publish("a", "Delhi")

	assert.Equal(t, profile.Location("Delhi"), receive(t, a))
	select {
	case loc := <-b:
		t.Fatalf("device b received %q", loc)
	default:
	}
}

func TestHub_SlowSubscriberSeesLatest(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a")
	defer cancel()

	hub.Publish("a", "Delhi")
	hub.Publish("a", "Chennai")

	assert.Equal(t, profile.Location("Chennai"), receive(t, ch))
}

func TestHub_CancelClosesAndUnregisters(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("a")
	assert.Equal(t, 1, hub.Subscribers("a"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers("a"))
	hub.Publish("a", "Delhi")
}
