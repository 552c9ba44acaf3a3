package usecases

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
)

const (
	countKey = 0

	// RecordSize is the persisted size of one station: name, x, y, racks.
	RecordSize = domain.MaxStationNameLength + 2 + 2 + 1
)

// PersistenceService dumps the station table to storage on shutdown and
// reloads it on start. Only populated stations are written.
type PersistenceService struct {
	storage ports.PersistentStorage
	store   *StationStore
}

// NewPersistenceService creates a new PersistenceService.
func NewPersistenceService(storage ports.PersistentStorage, store *StationStore) *PersistenceService {
	return &PersistenceService{storage: storage, store: store}
}

// Save writes the station count followed by one record per populated station.
func (s *PersistenceService) Save(ctx context.Context) (int, error) {
	table := s.store.table()

	if err := s.storage.WriteInt(ctx, countKey, int32(len(table))); err != nil {
		return 0, fmt.Errorf("write station count: %w", err)
	}
	written := 0
	for i, st := range table {
		if !st.Populated {
			continue
		}
		if err := s.storage.WriteData(ctx, uint32(i+1), EncodeRecord(st)); err != nil {
			return written, fmt.Errorf("write station %d: %w", i, err)
		}
		written++
	}
	return written, nil
}

// Load restores the table written by Save and removes it from storage.
// Missing storage leaves the store untouched. It returns the number of
// stations restored.
func (s *PersistenceService) Load(ctx context.Context) (int, error) {
	n, err := s.storage.ReadInt(ctx, countKey)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read station count: %w", err)
	}
	if n < 0 || n > MaxStations {
		_ = s.storage.Delete(ctx, countKey)
		return 0, fmt.Errorf("stored station count %d out of range", n)
	}

	table := make([]domain.Station, n)
	var keys []uint32
	restored := 0
	for i := range table {
		key := uint32(i + 1)
		data, err := s.storage.ReadData(ctx, key)
		if errors.Is(err, ports.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read station %d: %w", i, err)
		}
		keys = append(keys, key)
		st, ok := DecodeRecord(data)
		if !ok || !st.Populated {
			continue
		}
		table[i] = st
		restored++
	}

	s.store.restore(table)

	// Keys go only after the whole table is in the store.
	for _, key := range append(keys, countKey) {
		if err := s.storage.Delete(ctx, key); err != nil {
			return restored, fmt.Errorf("delete key %d: %w", key, err)
		}
	}
	return restored, nil
}

// EncodeRecord packs the persistent fields of a station.
func EncodeRecord(st domain.Station) []byte {
	buf := make([]byte, RecordSize)
	copy(buf[:domain.MaxStationNameLength-1], st.Name)
	off := domain.MaxStationNameLength
	binary.LittleEndian.PutUint16(buf[off:], uint16(st.Coords.X))
	binary.LittleEndian.PutUint16(buf[off+2:], uint16(st.Coords.Y))
	buf[off+4] = st.Racks
	return buf
}

// DecodeRecord unpacks a record written by EncodeRecord.
func DecodeRecord(data []byte) (domain.Station, bool) {
	if len(data) != RecordSize {
		return domain.Station{}, false
	}
	name := domain.Tuple{Data: data[:domain.MaxStationNameLength]}.String()
	off := domain.MaxStationNameLength
	return domain.Station{
		Name: name,
		Coords: domain.Coordinates{
			X: int16(binary.LittleEndian.Uint16(data[off:])),
			Y: int16(binary.LittleEndian.Uint16(data[off+2:])),
		},
		Racks:     data[off+4],
		Populated: name != "",
	}, true
}
