package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/molbubble/internal/adapters/bkk"
	natsadapter "github.com/samirrijal/molbubble/internal/adapters/nats"
	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/usecases"
	"github.com/samirrijal/molbubble/internal/pkg/config"
	"github.com/samirrijal/molbubble/internal/pkg/logging"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
	"github.com/samirrijal/molbubble/internal/pkg/telemetry"
)

// poller serializes feed polls coming from the ticker and from refresh
// requests.
type poller struct {
	svc *usecases.CompanionService

	mu        sync.Mutex
	announced bool
}

// poll fetches the feed and sends it to the watch. Until one poll has
// succeeded, every poll also sends the count and station records.
func (p *poller) poll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := telemetry.Tracer("molbubble-companion").Start(ctx, telemetry.SpanFeedPoll)
	defer span.End()

	start := time.Now()
	n, err := p.svc.Update(ctx, !p.announced)
	metrics.FeedPollDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int(telemetry.AttrStationCount, n))
	if err != nil {
		metrics.FeedPollErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.announced = true
	slog.Info("feed polled", "stations", n)
	return nil
}

func main() {
	cfg, err := config.Load("molbubble-companion")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// NATS
	nc, err := natsadapter.Connect(cfg.NATS.URL, "molbubble-companion")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	queue := natsadapter.NewQueue(nc, cfg.NATS.InboxSubject, natsadapter.QueueConfig{
		MaxRetry:  cfg.Companion.MaxRetry,
		AckDelay:  cfg.Companion.AckDelay,
		NackDelay: cfg.Companion.NackDelay,
		Timeout:   cfg.Companion.Timeout,
	})
	go queue.Run(ctx)

	center := domain.GeoPoint{Lat: cfg.Companion.CenterLat, Lon: cfg.Companion.CenterLon}
	svc := usecases.NewCompanionService(
		bkk.NewClient(cfg.Companion.FeedURL),
		queue,
		center,
		cfg.Companion.ChunkSize,
		cfg.Companion.MaxRadius,
	)
	p := &poller{svc: svc}

	sub := natsadapter.NewSubscriber(nc)
	defer sub.Close()
	if err := sub.SubscribeRequests(ctx, cfg.NATS.OutboxSubject, p.poll); err != nil {
		log.Fatalf("subscribe requests: %v", err)
	}
	if err := sub.SubscribeLocation(ctx, cfg.NATS.LocationSubject, svc.PublishLocation); err != nil {
		log.Fatalf("subscribe location: %v", err)
	}

	// Metrics endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: "Molbubble Companion"})
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "queued": queue.Len()})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	slog.Info("companion started",
		"feed", cfg.Companion.FeedURL,
		"center", center,
		"poll_interval", cfg.Companion.PollInterval,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	if err := p.poll(ctx); err != nil {
		slog.Error("feed poll failed", "error", err)
	}

	ticker := time.NewTicker(cfg.Companion.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				slog.Error("feed poll failed", "error", err)
			}
		case sig := <-quit:
			slog.Info("shutting down companion", "signal", sig.String(), "queued", queue.Len())
			cancel()
			_ = app.Shutdown()
			return
		}
	}
}
