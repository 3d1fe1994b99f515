package devicestore

import (
	"context"
	"sync"
)

// MemoryBackend keeps device entries in process memory. Used in tests and
// with DEVICE_STORE=memory for local development.
type MemoryBackend struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{devices: make(map[string]map[string]string)}
}

func (b *MemoryBackend) ForDevice(deviceID string) Store {
	return &memoryStore{backend: b, deviceID: deviceID}
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

type memoryStore struct {
	backend  *MemoryBackend
	deviceID string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.devices[s.deviceID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	entries, ok := s.backend.devices[s.deviceID]
	if !ok {
		entries = make(map[string]string)
		s.backend.devices[s.deviceID] = entries
	}
	entries[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.devices[s.deviceID], key)
	return nil
}
