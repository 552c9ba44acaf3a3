package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/pkg/appmessage"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
	"github.com/samirrijal/molbubble/internal/pkg/telemetry"
)

// InboxHandler applies one decoded message and reports how it was dispatched.
type InboxHandler func(ctx context.Context, msg domain.Message) domain.MessageKind

// Subscriber delivers NATS messages to the watch and companion services.
// NATS runs each subscription's callbacks one at a time, so a handler
// finishes before the next message on the same subject is delivered.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on a shared connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeInbox decodes app message dictionaries and hands them to handler.
// Requests are answered with an ack once applied and a nack when the
// message cannot be decoded.
func (s *Subscriber) SubscribeInbox(ctx context.Context, subject string, handler InboxHandler) error {
	tracer := telemetry.Tracer("nats")
	sub, err := s.conn.Subscribe(subject, func(m *nats.Msg) {
		ctx, span := tracer.Start(ctx, telemetry.SpanInboxMessage)
		defer span.End()
		span.SetAttributes(attribute.Int(telemetry.AttrMessageBytes, len(m.Data)))

		msg, err := appmessage.Decode(m.Data)
		if err != nil {
			metrics.InboxDecodeErrors.Inc()
			slog.Warn("message dropped", "subject", m.Subject, "error", err)
			respond(m, NackReply)
			return
		}

		kind := handler(ctx, msg)
		span.SetAttributes(attribute.String(telemetry.AttrMessageKind, string(kind)))
		metrics.InboxMessages.WithLabelValues(string(kind)).Inc()
		if kind == domain.KindDropped {
			slog.Debug("message ignored", "subject", m.Subject, "tuples", len(msg))
		}
		respond(m, AckReply)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeRequests calls handler for every refresh request published by
// the watch.
func (s *Subscriber) SubscribeRequests(ctx context.Context, subject string, handler func(ctx context.Context) error) error {
	sub, err := s.conn.Subscribe(subject, func(m *nats.Msg) {
		if _, err := appmessage.Decode(m.Data); err != nil {
			slog.Warn("refresh request dropped", "error", err)
			return
		}
		if err := handler(ctx); err != nil {
			slog.Error("refresh request failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeLocation decodes JSON positions and hands them to handler.
func (s *Subscriber) SubscribeLocation(ctx context.Context, subject string, handler func(ctx context.Context, p domain.GeoPoint) error) error {
	sub, err := s.conn.Subscribe(subject, func(m *nats.Msg) {
		var p domain.GeoPoint
		if err := json.Unmarshal(m.Data, &p); err != nil {
			slog.Warn("location dropped", "error", err)
			return
		}
		if err := handler(ctx, p); err != nil {
			slog.Error("location update failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes everything. The connection is left open.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

func respond(m *nats.Msg, reply []byte) {
	if m.Reply == "" {
		return
	}
	if err := m.Respond(reply); err != nil {
		slog.Warn("reply failed", "subject", m.Subject, "error", err)
	}
}
