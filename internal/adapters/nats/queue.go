package natsadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/pkg/appmessage"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
	"github.com/samirrijal/molbubble/internal/pkg/telemetry"
)

// Requester is the part of *nats.Conn the queue needs.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// QueueConfig tunes delivery of companion messages.
type QueueConfig struct {
	MaxRetry  int
	AckDelay  time.Duration
	NackDelay time.Duration
	Timeout   time.Duration
}

// DefaultQueueConfig returns the standard retry policy.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetry:  5,
		AckDelay:  0,
		NackDelay: 200 * time.Millisecond,
		Timeout:   time.Second,
	}
}

type queued struct {
	kind     string
	data     []byte
	attempts int
}

// Queue implements ports.MessagePublisher. Messages are delivered one at
// a time as NATS requests; a nack is retried after NackDelay times the
// attempt count, a timeout moves on to the next message.
type Queue struct {
	req     Requester
	subject string
	cfg     QueueConfig

	mu    sync.Mutex
	items []*queued
	wake  chan struct{}
}

// NewQueue creates a queue delivering to subject.
func NewQueue(req Requester, subject string, cfg QueueConfig) *Queue {
	return &Queue{
		req:     req,
		subject: subject,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
	}
}

// Publish encodes msg and queues it. High priority messages go to the front.
func (q *Queue) Publish(ctx context.Context, kind string, msg domain.Message, highPriority bool) error {
	data, err := appmessage.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	item := &queued{kind: kind, data: data}

	q.mu.Lock()
	if highPriority {
		q.items = append([]*queued{item}, q.items...)
	} else {
		q.items = append(q.items, item)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of messages waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run delivers queued messages until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		item := q.pop()
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		if !q.send(ctx, item) {
			return
		}
	}
}

func (q *Queue) pop() *queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

func (q *Queue) pushFront(item *queued) {
	q.mu.Lock()
	q.items = append([]*queued{item}, q.items...)
	q.mu.Unlock()
}

// send delivers one message and reports whether the queue should keep running.
func (q *Queue) send(ctx context.Context, item *queued) bool {
	item.attempts++
	sctx, span := telemetry.Tracer("nats").Start(ctx, telemetry.SpanCompanionSend)
	span.SetAttributes(
		attribute.String(telemetry.AttrMessageKind, item.kind),
		attribute.Int(telemetry.AttrAttempt, item.attempts),
	)
	defer span.End()

	rctx, cancel := context.WithTimeout(sctx, q.cfg.Timeout)
	reply, err := q.req.RequestWithContext(rctx, q.subject, item.data)
	cancel()

	if ctx.Err() != nil {
		return false
	}

	switch {
	case err == nil && bytes.Equal(reply.Data, AckReply):
		metrics.CompanionSends.WithLabelValues("acked").Inc()
		slog.Debug("sending succeeded", "kind", item.kind)
		return sleep(ctx, q.cfg.AckDelay)

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout):
		metrics.CompanionSends.WithLabelValues("timeout").Inc()
		slog.Warn("sending timed out", "kind", item.kind)
		return true
	}

	if err != nil {
		slog.Warn("sending failed", "kind", item.kind, "attempt", item.attempts, "error", err)
	}
	if item.attempts < q.cfg.MaxRetry {
		metrics.CompanionSends.WithLabelValues("retried").Inc()
		q.pushFront(item)
		return sleep(ctx, q.cfg.NackDelay*time.Duration(item.attempts))
	}
	metrics.CompanionSends.WithLabelValues("gave_up").Inc()
	slog.Error("giving up on sending", "kind", item.kind, "attempts", item.attempts)
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
