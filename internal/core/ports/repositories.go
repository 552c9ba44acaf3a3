package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

// ErrKeyNotFound is returned by PersistentStorage reads for absent keys.
var ErrKeyNotFound = errors.New("persist: key not found")

// PersistentStorage is a flat integer-keyed store that survives restarts.
type PersistentStorage interface {
	ReadInt(ctx context.Context, key uint32) (int32, error)
	WriteInt(ctx context.Context, key uint32, value int32) error
	ReadData(ctx context.Context, key uint32) ([]byte, error)
	WriteData(ctx context.Context, key uint32, data []byte) error
	Delete(ctx context.Context, key uint32) error
}

// Pinger is implemented by storage backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StationFeed fetches the current public station list.
type StationFeed interface {
	FetchStations(ctx context.Context) ([]domain.BikeStation, error)
}
