// Package memory provides an in-process PersistentStorage, used when no
// external store is configured and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
)

type value struct {
	isInt bool
	i     int32
	data  []byte
}

// Storage is a map-backed ports.PersistentStorage. Contents do not survive
// the process.
type Storage struct {
	mu     sync.RWMutex
	values map[uint32]value
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{values: make(map[uint32]value)}
}

func (s *Storage) ReadInt(ctx context.Context, key uint32) (int32, error) {
	metrics.PersistOps.WithLabelValues("memory", "read").Inc()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || !v.isInt {
		return 0, ports.ErrKeyNotFound
	}
	return v.i, nil
}

func (s *Storage) WriteInt(ctx context.Context, key uint32, i int32) error {
	metrics.PersistOps.WithLabelValues("memory", "write").Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value{isInt: true, i: i}
	return nil
}

func (s *Storage) ReadData(ctx context.Context, key uint32) ([]byte, error) {
	metrics.PersistOps.WithLabelValues("memory", "read").Inc()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || v.isInt {
		return nil, ports.ErrKeyNotFound
	}
	return append([]byte(nil), v.data...), nil
}

func (s *Storage) WriteData(ctx context.Context, key uint32, data []byte) error {
	metrics.PersistOps.WithLabelValues("memory", "write").Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value{data: append([]byte(nil), data...)}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key uint32) error {
	metrics.PersistOps.WithLabelValues("memory", "delete").Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Ping always succeeds.
func (s *Storage) Ping(ctx context.Context) error { return nil }
