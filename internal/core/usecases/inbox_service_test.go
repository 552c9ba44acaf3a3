package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/usecases"
)

// --- Mock RequestSender ---

type mockSender struct {
	calls  int
	sendFn func(ctx context.Context) error
}

func (m *mockSender) SendRequest(ctx context.Context) error {
	m.calls++
	if m.sendFn != nil {
		return m.sendFn(ctx)
	}
	return nil
}

// --- Tests ---

func TestInboxService_Dispatch(t *testing.T) {
	store := usecases.NewStationStore(nil)
	inbox := usecases.NewInboxService(store, &mockSender{}, 0)

	if k := inbox.Handle(domain.Message{domain.IntTuple(domain.KeyNumStations, 2)}); k != domain.KindCount {
		t.Fatalf("expected count, got %s", k)
	}
	if store.Count() != 2 {
		t.Fatalf("expected 2 stations, got %d", store.Count())
	}

	k := inbox.Handle(domain.Message{
		domain.IntTuple(domain.KeyIndex, 1),
		domain.StringTuple(domain.KeyName, "Blaha Lujza tér"),
		domain.IntTuple(domain.KeyX, 30),
		domain.IntTuple(domain.KeyY, 40),
		domain.IntTuple(domain.KeyRacks, 12),
	})
	if k != domain.KindStation {
		t.Fatalf("expected station, got %s", k)
	}
	st, _ := store.StationAt(1)
	if st.Name != "Blaha Lujza tér" || st.Coords.X != 30 || st.Racks != 12 {
		t.Errorf("unexpected station %+v", st)
	}

	if k := inbox.Handle(domain.Message{domain.BytesTuple(domain.KeyUpdate, []byte{0, 3, 6})}); k != domain.KindBikes {
		t.Fatalf("expected bikes, got %s", k)
	}
	if st, _ := store.StationAt(1); st.Bikes != 6 {
		t.Errorf("expected 6 bikes, got %d", st.Bikes)
	}

	if k := inbox.Handle(domain.Message{domain.IntTuple(domain.KeyX, 0), domain.IntTuple(domain.KeyY, 0)}); k != domain.KindPosition {
		t.Fatalf("expected position, got %s", k)
	}
	if store.Pending().Location {
		t.Error("location should be known")
	}
}

func TestInboxService_CountWinsOverIndex(t *testing.T) {
	store := usecases.NewStationStore(nil)
	inbox := usecases.NewInboxService(store, &mockSender{}, 0)

	k := inbox.Handle(domain.Message{
		domain.IntTuple(domain.KeyIndex, 0),
		domain.IntTuple(domain.KeyNumStations, 5),
	})
	if k != domain.KindCount || store.Count() != 5 {
		t.Errorf("expected count announcement, got %s with %d stations", k, store.Count())
	}
	if p := store.Pending(); p.Stations != 5 {
		t.Errorf("station fields must not be applied, got %d pending", p.Stations)
	}
}

func TestInboxService_PartialPosition(t *testing.T) {
	store := usecases.NewStationStore(nil)
	inbox := usecases.NewInboxService(store, &mockSender{}, 0)

	inbox.Handle(domain.Message{domain.IntTuple(domain.KeyX, 10), domain.IntTuple(domain.KeyY, 20)})
	inbox.Handle(domain.Message{domain.IntTuple(domain.KeyY, -5)})

	if got := store.LastKnown(); got != (domain.Coordinates{X: 10, Y: -5}) {
		t.Errorf("expected x kept and y updated, got %+v", got)
	}
}

func TestInboxService_Drops(t *testing.T) {
	store := usecases.NewStationStore(nil)
	inbox := usecases.NewInboxService(store, &mockSender{}, 0)
	inbox.Handle(domain.Message{domain.IntTuple(domain.KeyNumStations, 1)})

	tests := []struct {
		name string
		msg  domain.Message
	}{
		{"index out of range", domain.Message{domain.IntTuple(domain.KeyIndex, 1)}},
		{"empty update", domain.Message{domain.BytesTuple(domain.KeyUpdate, nil)}},
		{"negative count", domain.Message{domain.IntTuple(domain.KeyNumStations, -3)}},
		{"empty message", domain.Message{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if k := inbox.Handle(tt.msg); k != domain.KindDropped {
				t.Errorf("expected dropped, got %s", k)
			}
		})
	}
	if store.Count() != 1 || !store.Pending().Location {
		t.Error("dropped messages must not change state")
	}
}

func TestInboxService_RequestRefresh(t *testing.T) {
	sender := &mockSender{}
	inbox := usecases.NewInboxService(usecases.NewStationStore(nil), sender, time.Hour)

	if err := inbox.RequestRefresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := inbox.RequestRefresh(context.Background())
	if !errors.Is(err, usecases.ErrRefreshThrottled) {
		t.Errorf("expected throttled, got %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("expected one send, got %d", sender.calls)
	}
}

func TestInboxService_RequestRefreshSendError(t *testing.T) {
	sender := &mockSender{sendFn: func(ctx context.Context) error { return errors.New("no responders") }}
	inbox := usecases.NewInboxService(usecases.NewStationStore(nil), sender, 0)

	if err := inbox.RequestRefresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if err := inbox.RequestRefresh(context.Background()); errors.Is(err, usecases.ErrRefreshThrottled) {
		t.Error("unthrottled inbox should not throttle")
	}
}
