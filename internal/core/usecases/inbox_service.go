package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
)

// ErrRefreshThrottled is returned when refresh requests come in too fast.
var ErrRefreshThrottled = errors.New("refresh request throttled")

// InboxService routes inbound companion messages to the station store and
// sends refresh requests back.
type InboxService struct {
	store   *StationStore
	sender  ports.RequestSender
	limiter *rate.Limiter
}

// NewInboxService creates a new InboxService. At most one refresh request
// is sent per refreshInterval; zero disables throttling.
func NewInboxService(store *StationStore, sender ports.RequestSender, refreshInterval time.Duration) *InboxService {
	limit := rate.Inf
	if refreshInterval > 0 {
		limit = rate.Every(refreshInterval)
	}
	return &InboxService{
		store:   store,
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Handle applies one message. A count announcement wins over a station
// record, which wins over a bike update; anything else is a position.
// Messages that cannot be applied are reported as KindDropped.
func (s *InboxService) Handle(msg domain.Message) domain.MessageKind {
	if t, ok := msg.Find(domain.KeyNumStations); ok {
		if !s.store.Resize(int(t.Int32())) {
			return domain.KindDropped
		}
		return domain.KindCount
	}

	if t, ok := msg.Find(domain.KeyIndex); ok {
		if !s.store.ApplyStationFields(int(t.Int32()), stationFields(msg)) {
			return domain.KindDropped
		}
		return domain.KindStation
	}

	if t, ok := msg.Find(domain.KeyUpdate); ok {
		if !s.store.ApplyBikeUpdate(t.Data) {
			return domain.KindDropped
		}
		return domain.KindBikes
	}

	c := s.store.LastKnown()
	seen := false
	for _, t := range msg {
		switch t.Key {
		case domain.KeyX:
			c.X = int16(t.Int32())
			seen = true
		case domain.KeyY:
			c.Y = int16(t.Int32())
			seen = true
		}
	}
	if !seen {
		return domain.KindDropped
	}
	s.store.ApplyLocation(c)
	return domain.KindPosition
}

// RequestRefresh asks the companion to resend station data.
func (s *InboxService) RequestRefresh(ctx context.Context) error {
	if !s.limiter.Allow() {
		return ErrRefreshThrottled
	}
	if err := s.sender.SendRequest(ctx); err != nil {
		return fmt.Errorf("send refresh request: %w", err)
	}
	return nil
}

func stationFields(msg domain.Message) []domain.StationFieldUpdate {
	fields := make([]domain.StationFieldUpdate, 0, len(msg))
	for _, t := range msg {
		switch t.Key {
		case domain.KeyName:
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldName, Text: t.String()})
		case domain.KeyX:
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldX, Value: t.Int32()})
		case domain.KeyY:
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldY, Value: t.Int32()})
		case domain.KeyRacks:
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldRacks, Value: t.Int32()})
		}
	}
	return fields
}
