package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(opts ...Option) (*DeviceProvider, devicestore.Store) {
	store := devicestore.NewMemoryBackend().ForDevice("dev-1")
	return NewDeviceProvider(store, opts...), store
}

func TestCurrent_NoRecord(t *testing.T) {
	p, _ := newProvider()
	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestCurrent_MalformedRecord(t *testing.T) {
	p, store := newProvider()
	require.NoError(t, store.Set(context.Background(), devicestore.UserKey, "{not json"))

	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestCurrent_RecordWithoutEmail(t *testing.T) {
	p, store := newProvider()
	require.NoError(t, store.Set(context.Background(), devicestore.UserKey, `{"firstName":"Asha"}`))

	_, err := p.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSignInAndCurrent(t *testing.T) {
	ctx := context.Background()
	p, store := newProvider()

	require.NoError(t, p.SignIn(ctx, Identity{Email: "a@b.com", FirstName: "Asha", Token: "tok"}))

	raw, err := store.Get(ctx, devicestore.UserKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.com","firstName":"Asha","token":"tok"}`, raw)

	id, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)

	tok, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestSignIn_RejectsEmptyEmail(t *testing.T) {
	p, _ := newProvider()
	assert.ErrorIs(t, p.SignIn(context.Background(), Identity{}), ErrNoIdentity)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider()
	require.NoError(t, p.SignIn(ctx, Identity{Email: "a@b.com"}))

	require.NoError(t, p.SignOut(ctx))

	_, err := p.Current(ctx)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	var gotRefresh string
	p, _ := newProvider(WithRenewal(func(_ context.Context, refresh string) (string, string, error) {
		gotRefresh = refresh
		return "access-2", "refresh-2", nil
	}))
	require.NoError(t, p.SignIn(ctx, Identity{Email: "a@b.com", Token: "access-1", RefreshToken: "refresh-1"}))

	tok, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, "refresh-1", gotRefresh)

	id, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", id.RefreshToken)
}

func TestRefresh_Errors(t *testing.T) {
	ctx := context.Background()

	p, _ := newProvider()
	_, err := p.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoRenewal)

	failing := errors.New("revoked")
	p, _ = newProvider(WithRenewal(func(context.Context, string) (string, string, error) {
		return "", "", failing
	}))
	require.NoError(t, p.SignIn(ctx, Identity{Email: "a@b.com"}))
	_, err = p.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoRefreshable)

	require.NoError(t, p.SignIn(ctx, Identity{Email: "a@b.com", RefreshToken: "r"}))
	_, err = p.Refresh(ctx)
	assert.ErrorIs(t, err, failing)
}
