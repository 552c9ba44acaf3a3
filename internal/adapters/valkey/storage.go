package valkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
)

// Storage implements ports.PersistentStorage on Valkey (Redis-compatible).
// Every key lives under a namespace so several watches can share a server.
type Storage struct {
	client    valkey.Client
	namespace string
}

// New creates a new Valkey storage client.
func New(addr, namespace string) (*Storage, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Storage{client: client, namespace: namespace}, nil
}

func (s *Storage) key(k uint32) string {
	return s.namespace + ":" + strconv.FormatUint(uint64(k), 10)
}

// ReadInt reads an integer value.
func (s *Storage) ReadInt(ctx context.Context, key uint32) (int32, error) {
	metrics.PersistOps.WithLabelValues("valkey", "read").Inc()
	v, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, ports.ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("valkey get %d: %w", key, err)
	}
	return int32(v), nil
}

// WriteInt stores an integer value.
func (s *Storage) WriteInt(ctx context.Context, key uint32, value int32) error {
	metrics.PersistOps.WithLabelValues("valkey", "write").Inc()
	cmd := s.client.B().Set().Key(s.key(key)).Value(strconv.FormatInt(int64(value), 10)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %d: %w", key, err)
	}
	return nil
}

// ReadData reads a binary value.
func (s *Storage) ReadData(ctx context.Context, key uint32) ([]byte, error) {
	metrics.PersistOps.WithLabelValues("valkey", "read").Inc()
	b, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ports.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %d: %w", key, err)
	}
	return b, nil
}

// WriteData stores a binary value.
func (s *Storage) WriteData(ctx context.Context, key uint32, data []byte) error {
	metrics.PersistOps.WithLabelValues("valkey", "write").Inc()
	cmd := s.client.B().Set().Key(s.key(key)).Value(valkey.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %d: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (s *Storage) Delete(ctx context.Context, key uint32) error {
	metrics.PersistOps.WithLabelValues("valkey", "delete").Inc()
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %d: %w", key, err)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *Storage) Close() {
	s.client.Close()
}
