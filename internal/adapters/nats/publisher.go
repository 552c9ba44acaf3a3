package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/molbubble/internal/pkg/appmessage"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
	"github.com/samirrijal/molbubble/internal/pkg/telemetry"
)

// Outbox implements ports.RequestSender by publishing an empty dictionary.
type Outbox struct {
	conn    *nats.Conn
	subject string
}

// NewOutbox creates an outbox publishing on subject.
func NewOutbox(conn *nats.Conn, subject string) *Outbox {
	return &Outbox{conn: conn, subject: subject}
}

// SendRequest publishes a refresh request. Failures are logged and
// returned; nothing is retried.
func (o *Outbox) SendRequest(ctx context.Context) error {
	_, span := telemetry.Tracer("nats").Start(ctx, telemetry.SpanOutboxRequest)
	defer span.End()

	data, err := appmessage.Encode(nil)
	if err != nil {
		return err
	}
	if err := o.conn.Publish(o.subject, data); err != nil {
		metrics.OutboxRequests.WithLabelValues("failed").Inc()
		slog.Error("outbox send failed", "subject", o.subject, "error", err)
		return fmt.Errorf("publish %s: %w", o.subject, err)
	}
	metrics.OutboxRequests.WithLabelValues("sent").Inc()
	slog.Info("outbox send success", "subject", o.subject)
	return nil
}
