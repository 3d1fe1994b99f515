// Package devicestore is a durable key-value string store scoped to one
// browser device. The device is identified by the device_id cookie.
package devicestore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("device store: key not found")

// Well-known keys.
const (
	UserKey     = "user"
	LocationKey = "userLocation"
)

// AvatarKey returns the key holding the cached avatar for email.
func AvatarKey(email string) string {
	return "avatar_" + email
}

// Store is the key-value view of a single device.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend hands out per-device stores.
type Backend interface {
	ForDevice(deviceID string) Store
	Ping(ctx context.Context) error
	Close() error
}

// Lookup returns the value under key, reporting absence as ok=false instead
// of ErrNotFound.
func Lookup(ctx context.Context, s Store, key string) (string, bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
