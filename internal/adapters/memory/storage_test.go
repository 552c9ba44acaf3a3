package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/molbubble/internal/adapters/memory"
	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/core/usecases"
)

func TestStorage_MissingKeys(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.ReadInt(ctx, 0); !errors.Is(err, ports.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if _, err := s.ReadData(ctx, 1); !errors.Is(err, ports.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestStorage_TypedValues(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_ = s.WriteInt(ctx, 0, 42)
	_ = s.WriteData(ctx, 1, []byte{1, 2, 3})

	if v, err := s.ReadInt(ctx, 0); err != nil || v != 42 {
		t.Errorf("expected 42, got %d (%v)", v, err)
	}
	if _, err := s.ReadData(ctx, 0); !errors.Is(err, ports.ErrKeyNotFound) {
		t.Error("int key should not read as data")
	}

	data, _ := s.ReadData(ctx, 1)
	data[0] = 9
	again, _ := s.ReadData(ctx, 1)
	if again[0] != 1 {
		t.Error("ReadData must return a copy")
	}

	_ = s.Delete(ctx, 1)
	if s.Len() != 1 {
		t.Errorf("expected 1 key left, got %d", s.Len())
	}
}

func TestStorage_StationTableRestart(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	before := usecases.NewStationStore(nil)
	before.Resize(2)
	before.ApplyStationFields(0, []domain.StationFieldUpdate{{Field: domain.FieldName, Text: "Széll Kálmán tér"}})
	before.ApplyStationFields(1, []domain.StationFieldUpdate{{Field: domain.FieldName, Text: "Batthyány tér"}})
	if _, err := usecases.NewPersistenceService(s, before).Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	after := usecases.NewStationStore(nil)
	n, err := usecases.NewPersistenceService(s, after).Load(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 restored, got %d (%v)", n, err)
	}
	if p := after.Pending(); p.Stations != 0 {
		t.Errorf("expected no stations pending, got %d", p.Stations)
	}
	if s.Len() != 0 {
		t.Errorf("expected storage consumed, %d keys left", s.Len())
	}
}
