// Package session resolves the signed-in identity of a device. The identity
// is stored JSON-encoded under the "user" key of the device store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
)

var (
	ErrNoIdentity    = errors.New("no signed-in identity")
	ErrNoRenewal     = errors.New("session renewal not configured")
	ErrNoRefreshable = errors.New("identity has no refresh token")
)

// Identity is the signed-in user as seen by the device.
type Identity struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Provider resolves the current identity.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

// RenewFunc exchanges a refresh token for a new token pair.
type RenewFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

// DeviceProvider reads and writes the identity record of one device.
type DeviceProvider struct {
	store devicestore.Store
	renew RenewFunc
}

type Option func(*DeviceProvider)

// WithRenewal enables Refresh.
func WithRenewal(fn RenewFunc) Option {
	return func(p *DeviceProvider) { p.renew = fn }
}

func NewDeviceProvider(store devicestore.Store, opts ...Option) *DeviceProvider {
	p := &DeviceProvider{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the stored identity. A missing, unreadable or email-less
// record yields ErrNoIdentity.
func (p *DeviceProvider) Current(ctx context.Context) (Identity, error) {
	raw, ok, err := devicestore.Lookup(ctx, p.store, devicestore.UserKey)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read identity: %w", err)
	}
	if !ok {
		return Identity{}, ErrNoIdentity
	}

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, fmt.Errorf("%w: malformed identity record: %v", ErrNoIdentity, err)
	}
	if strings.TrimSpace(id.Email) == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// SignIn stores id as the device's identity.
func (p *DeviceProvider) SignIn(ctx context.Context, id Identity) error {
	if strings.TrimSpace(id.Email) == "" {
		return ErrNoIdentity
	}
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return p.store.Set(ctx, devicestore.UserKey, string(b))
}

// SignOut forgets the device's identity. Cached avatars and the location
// preference stay on the device.
func (p *DeviceProvider) SignOut(ctx context.Context) error {
	return p.store.Delete(ctx, devicestore.UserKey)
}

// Token returns the access token of the current identity.
func (p *DeviceProvider) Token(ctx context.Context) (string, error) {
	id, err := p.Current(ctx)
	if err != nil {
		return "", err
	}
	return id.Token, nil
}

// Refresh renews the token pair of the current identity and stores it.
func (p *DeviceProvider) Refresh(ctx context.Context) (string, error) {
	if p.renew == nil {
		return "", ErrNoRenewal
	}
	id, err := p.Current(ctx)
	if err != nil {
		return "", err
	}
	if id.RefreshToken == "" {
		return "", ErrNoRefreshable
	}

	access, refresh, err := p.renew(ctx, id.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to renew session: %w", err)
	}
	id.Token = access
	id.RefreshToken = refresh
	if err := p.SignIn(ctx, id); err != nil {
		return "", err
	}
	return access, nil
}
