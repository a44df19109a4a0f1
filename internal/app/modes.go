package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelinor/wagerbot/internal/market"
	"github.com/avelinor/wagerbot/internal/notify"
	"github.com/avelinor/wagerbot/internal/pipeline"
	"github.com/avelinor/wagerbot/internal/scheduler"
	"github.com/avelinor/wagerbot/internal/server"
	"github.com/avelinor/wagerbot/internal/server/handler"
	"github.com/avelinor/wagerbot/internal/server/ws"
	"github.com/avelinor/wagerbot/internal/transfer"
)

// services holds the core domain services built once per run and shared by
// the goroutines a mode starts.
type services struct {
	coordinator *transfer.Coordinator
	engine      *market.Engine
	scheduler   *scheduler.Scheduler
	events      *notify.MarketEvents
}

// buildServices constructs the transfer coordinator, market engine, and
// scheduler from the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	events := notify.NewMarketEvents(deps.Notifier)

	coordinator := transfer.NewCoordinator(
		deps.Registry,
		deps.TransferStore,
		deps.AuditStore,
		events,
		a.logger,
	)

	engine := market.NewEngine(
		deps.PredictionStore,
		deps.BetStore,
		coordinator,
		deps.Registry,
		deps.LockManager,
		deps.RateLimiter,
		deps.SignalBus,
		deps.AuditStore,
		events,
		a.logger,
		market.WithGraceWindow(a.cfg.Market.GraceWindow.Duration),
		market.WithLockTTL(a.cfg.Market.LockTTL.Duration),
		market.WithMaxOptions(a.cfg.Market.MaxOptions),
		market.WithBetRateLimit(a.cfg.Market.BetRateLimit, a.cfg.Market.BetRateWindow.Duration),
		market.WithPredictionCache(deps.PredictionCache),
	)

	sched := scheduler.New(engine, deps.PredictionStore, deps.SignalBus, a.logger)

	return &services{
		coordinator: coordinator,
		engine:      engine,
		scheduler:   sched,
		events:      events,
	}
}

// ServerMode runs the HTTP API, the WebSocket hub, and the deadline
// scheduler. Markets are created, bet on, and settled through the API;
// the scheduler locks them when betting ends and refunds them when the
// grace window expires.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)

	g.Go(func() error {
		return svcs.scheduler.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	} else {
		a.logger.WarnContext(ctx, "server mode with server.enabled=false; only the scheduler is running")
	}

	return g.Wait()
}

// MonitorMode runs a read-only observer: the HTTP API and WebSocket hub are
// available but no scheduler mutates market state. Lifecycle events from a
// writer instance are consumed off the signal bus and logged.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)

	g.Go(func() error {
		ch, err := deps.SignalBus.Subscribe(ctx, market.EventsChannel)
		if err != nil {
			return fmt.Errorf("monitor mode: subscribe %s: %w", market.EventsChannel, err)
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "market event observed",
					slog.Int("bytes", len(msg)),
				)
			}
		}
	})

	// HTTP server is always started in monitor mode.
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs everything: the HTTP API, the WebSocket hub, the deadline
// scheduler, and the archive loop when archiving is enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)

	g.Go(func() error {
		return svcs.scheduler.Run(ctx)
	})

	if a.cfg.Archive.Enabled {
		if deps.Archiver == nil {
			return fmt.Errorf("full mode: archive.enabled is set but blob storage is not wired")
		}
		arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		interval := a.cfg.Archive.Interval.Duration
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		g.Go(func() error {
			return arch.RunEvery(ctx, interval)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Predictions: handler.NewPredictionHandler(svcs.engine, a.logger),
		Bets:        handler.NewBetHandler(svcs.engine, a.logger),
		Transfers:   handler.NewTransferHandler(svcs.coordinator, deps.TransferStore, a.logger),
		Economies:   handler.NewEconomyHandler(deps.Registry, a.logger),
		Audit:       handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
