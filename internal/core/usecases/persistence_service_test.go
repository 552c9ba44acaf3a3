package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/core/usecases"
)

// --- Mock PersistentStorage ---

type mockStorage struct {
	ints     map[uint32]int32
	data     map[uint32][]byte
	readErr  error
	dataErrs map[uint32]error
}

func newMockStorage() *mockStorage {
	return &mockStorage{ints: map[uint32]int32{}, data: map[uint32][]byte{}}
}

func (m *mockStorage) ReadInt(ctx context.Context, key uint32) (int32, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	v, ok := m.ints[key]
	if !ok {
		return 0, ports.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStorage) WriteInt(ctx context.Context, key uint32, value int32) error {
	m.ints[key] = value
	return nil
}

func (m *mockStorage) ReadData(ctx context.Context, key uint32) ([]byte, error) {
	if err := m.dataErrs[key]; err != nil {
		return nil, err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStorage) WriteData(ctx context.Context, key uint32, data []byte) error {
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockStorage) Delete(ctx context.Context, key uint32) error {
	delete(m.ints, key)
	delete(m.data, key)
	return nil
}

// --- Tests ---

func TestPersistenceService_SaveOnlyPopulated(t *testing.T) {
	store := usecases.NewStationStore(nil)
	store.Resize(3)
	store.ApplyStationFields(0, named("Astoria", -120, 45))
	store.ApplyStationFields(2, named("Kálvin tér", 300, -8))

	storage := newMockStorage()
	n, err := usecases.NewPersistenceService(storage, store).Save(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
	if storage.ints[0] != 3 {
		t.Errorf("expected count 3, got %d", storage.ints[0])
	}
	if _, ok := storage.data[2]; ok {
		t.Error("unpopulated station 1 must not be written")
	}
	if len(storage.data[1]) != usecases.RecordSize || len(storage.data[3]) != usecases.RecordSize {
		t.Errorf("unexpected record sizes %d, %d", len(storage.data[1]), len(storage.data[3]))
	}
}

func TestPersistenceService_SaveSkipsUnnamed(t *testing.T) {
	store := usecases.NewStationStore(nil)
	store.Resize(3)
	store.ApplyStationFields(0, named("Far", 500, 0))
	store.ApplyStationFields(1, at(10, 0))
	store.ApplyStationFields(2, named("", 20, 0))

	storage := newMockStorage()
	n, err := usecases.NewPersistenceService(storage, store).Save(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(storage.data) != 1 {
		t.Fatalf("expected only the named station, got %d records", len(storage.data))
	}
	if _, ok := storage.data[1]; !ok {
		t.Error("expected station 0 under key 1")
	}
}

func TestPersistenceService_LoadSkipsUnnamedRecord(t *testing.T) {
	storage := newMockStorage()
	storage.ints[0] = 2
	storage.data[1] = usecases.EncodeRecord(domain.Station{Coords: domain.Coordinates{X: 4}})
	storage.data[2] = usecases.EncodeRecord(domain.Station{Name: "Ok", Racks: 9})

	store := usecases.NewStationStore(nil)
	n, err := usecases.NewPersistenceService(storage, store).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 restored, got %d", n)
	}
	if p := store.Pending(); p.Stations != 1 {
		t.Errorf("expected the unnamed slot to stay pending, got %d", p.Stations)
	}
	if len(storage.data) != 0 {
		t.Errorf("load should consume every record, left %v", storage.data)
	}
}

func TestPersistenceService_LoadReadErrorKeepsStorage(t *testing.T) {
	storage := newMockStorage()
	storage.ints[0] = 2
	storage.data[1] = usecases.EncodeRecord(domain.Station{Name: "Astoria"})
	storage.data[2] = usecases.EncodeRecord(domain.Station{Name: "Kálvin tér"})
	storage.dataErrs = map[uint32]error{2: errors.New("i/o timeout")}

	store := usecases.NewStationStore(nil)
	if _, err := usecases.NewPersistenceService(storage, store).Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if storage.ints[0] != 2 || len(storage.data) != 2 {
		t.Errorf("a failed load must leave the table in storage, got %v %v", storage.ints, storage.data)
	}
	if store.Count() != 0 {
		t.Errorf("store should be untouched, got %d stations", store.Count())
	}

	storage.dataErrs = nil
	n, err := usecases.NewPersistenceService(storage, store).Load(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("retry: expected 2 restored, got %d (%v)", n, err)
	}
}

func TestPersistenceService_LoadRestores(t *testing.T) {
	src := usecases.NewStationStore(nil)
	src.Resize(3)
	src.ApplyStationFields(0, named("Astoria", -120, 45))
	src.ApplyStationFields(2, named("Kálvin tér", 300, -8))
	src.ApplyBulkBikes(0, []byte{4, 4, 4})

	storage := newMockStorage()
	ctx := context.Background()
	if _, err := usecases.NewPersistenceService(storage, src).Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := usecases.NewStationStore(nil)
	n, err := usecases.NewPersistenceService(storage, dst).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 restored, got %d", n)
	}
	if dst.Count() != 3 {
		t.Fatalf("expected table of 3, got %d", dst.Count())
	}
	if p := dst.Pending(); p.Stations != 1 || !p.Bikes || !p.Location {
		t.Errorf("unexpected pending %+v", p)
	}

	st, _ := dst.StationAt(2)
	if st.Name != "Kálvin tér" || st.Coords != (domain.Coordinates{X: 300, Y: -8}) {
		t.Errorf("unexpected restored station %+v", st)
	}
	if st.Bikes != 0 {
		t.Errorf("bike counts are not persisted, got %d", st.Bikes)
	}

	if len(storage.ints) != 0 || len(storage.data) != 0 {
		t.Errorf("load should consume storage, left %v %v", storage.ints, storage.data)
	}
}

func TestPersistenceService_LoadEmptyStorage(t *testing.T) {
	store := usecases.NewStationStore(nil)
	n, err := usecases.NewPersistenceService(newMockStorage(), store).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || store.Count() != 0 {
		t.Errorf("expected nothing restored")
	}
	if p := store.Pending(); p != domain.InitialPending() {
		t.Errorf("store should be untouched, got %+v", p)
	}
}

func TestPersistenceService_LoadError(t *testing.T) {
	storage := newMockStorage()
	storage.readErr = errors.New("connection refused")

	_, err := usecases.NewPersistenceService(storage, usecases.NewStationStore(nil)).Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPersistenceService_LoadSkipsMalformedRecord(t *testing.T) {
	storage := newMockStorage()
	storage.ints[0] = 2
	storage.data[1] = []byte{1, 2, 3}
	storage.data[2] = usecases.EncodeRecord(domain.Station{Name: "Ok", Racks: 9})

	store := usecases.NewStationStore(nil)
	n, err := usecases.NewPersistenceService(storage, store).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 restored, got %d", n)
	}
	if p := store.Pending(); p.Stations != 1 {
		t.Errorf("expected the malformed slot to stay pending, got %d", p.Stations)
	}
}

func TestRecord_Layout(t *testing.T) {
	rec := usecases.EncodeRecord(domain.Station{
		Name:   "Moszkva tér",
		Coords: domain.Coordinates{X: -2, Y: 258},
		Racks:  21,
		Bikes:  7,
	})
	if len(rec) != 37 {
		t.Fatalf("expected 37 bytes, got %d", len(rec))
	}
	if rec[len("Moszkva tér")] != 0 {
		t.Error("name must be NUL terminated")
	}
	if rec[32] != 0xfe || rec[33] != 0xff || rec[34] != 0x02 || rec[35] != 0x01 || rec[36] != 21 {
		t.Errorf("unexpected tail % x", rec[32:])
	}

	st, ok := usecases.DecodeRecord(rec)
	if !ok || st.Name != "Moszkva tér" || st.Coords.Y != 258 || st.Racks != 21 || !st.Populated {
		t.Errorf("unexpected decode %+v", st)
	}
}
