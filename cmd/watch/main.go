package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/molbubble/internal/adapters/http"
	"github.com/samirrijal/molbubble/internal/adapters/memory"
	natsadapter "github.com/samirrijal/molbubble/internal/adapters/nats"
	"github.com/samirrijal/molbubble/internal/adapters/postgres"
	"github.com/samirrijal/molbubble/internal/adapters/valkey"
	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/core/usecases"
	"github.com/samirrijal/molbubble/internal/pkg/config"
	"github.com/samirrijal/molbubble/internal/pkg/logging"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
	"github.com/samirrijal/molbubble/internal/pkg/telemetry"
)

// persistentStorage is a storage backend that can also report liveness.
type persistentStorage interface {
	ports.PersistentStorage
	ports.Pinger
}

func main() {
	cfg, err := config.Load("molbubble-watch")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Persistent storage
	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStorage()

	// Station core
	hub := http.NewHub()
	store := usecases.NewStationStore(hub)
	persist := usecases.NewPersistenceService(storage, store)

	loadCtx, span := telemetry.Tracer("molbubble-watch").Start(ctx, telemetry.SpanPersistLoad)
	loaded, err := persist.Load(loadCtx)
	span.SetAttributes(attribute.Int(telemetry.AttrStationCount, loaded))
	span.End()
	if err != nil {
		slog.Warn("restore stations failed", "error", err)
	} else {
		slog.Info("stations restored", "count", store.Count(), "populated", loaded)
	}
	observe(store)

	// NATS
	nc, err := natsadapter.Connect(cfg.NATS.URL, "molbubble-watch")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Close()

	outbox := natsadapter.NewOutbox(nc, cfg.NATS.OutboxSubject)
	inbox := usecases.NewInboxService(store, outbox, cfg.Watch.RefreshInterval)

	sub := natsadapter.NewSubscriber(nc)
	defer sub.Close()
	err = sub.SubscribeInbox(ctx, cfg.NATS.InboxSubject, func(ctx context.Context, msg domain.Message) domain.MessageKind {
		kind := inbox.Handle(msg)
		observe(store)
		return kind
	})
	if err != nil {
		log.Fatalf("subscribe inbox: %v", err)
	}

	// Ask the companion for fresh bike counts
	if err := inbox.RequestRefresh(ctx); err != nil {
		slog.Warn("initial refresh request failed", "error", err)
	}

	deps := &http.Dependencies{
		Stations: store,
		Inbox:    inbox,
		Hub:      hub,
		NATS:     nc,
		Storage:  storage,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Molbubble Watch",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("watch server starting", "addr", addr, "storage", cfg.Storage.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, saving stations", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sub.Close()

	saveCtx, span := telemetry.Tracer("molbubble-watch").Start(shutdownCtx, telemetry.SpanPersistSave)
	saved, err := persist.Save(saveCtx)
	span.SetAttributes(attribute.Int(telemetry.AttrStationCount, saved))
	span.End()
	if err != nil {
		slog.Error("save stations failed", "error", err)
	} else {
		slog.Info("stations saved", "count", saved)
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// openStorage connects the configured persistence backend.
func openStorage(ctx context.Context, cfg *config.Config) (persistentStorage, func(), error) {
	switch cfg.Storage.Driver {
	case "valkey":
		s, err := valkey.New(cfg.Valkey.Addr, cfg.Storage.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewPersistRepo(db, cfg.Storage.Namespace), db.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func observe(store *usecases.StationStore) {
	st := store.Status()
	metrics.ObservePending(st.Count, st.Pending)
}
