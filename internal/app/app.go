// Package app provides the top-level application lifecycle for the
// liquidation bot. It wires the chain adapter, search, execution and
// reporting, then runs the configured mode alongside the optional HTTP
// server and report archiver.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/liquidationbot/internal/config"
	"github.com/alanyoungcy/liquidationbot/internal/server"
	"github.com/alanyoungcy/liquidationbot/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and runs the configured mode until it finishes
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	minYield, err := a.cfg.Liquidation.MinYieldWei()
	if err != nil {
		return fmt.Errorf("app: min yield: %w", err)
	}
	liq := NewLiquidator(deps.Searcher, deps.Dispatcher, deps.Reporter, minYield, a.logger)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	if a.cfg.Server.Enabled {
		a.startServer(gctx, g, deps)
	}
	g.Go(func() error {
		if err := deps.Reporter.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			if err := deps.Archiver.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stop()
		switch strings.ToLower(a.cfg.Mode) {
		case "once":
			return a.OnceMode(gctx, liq)
		case "watch":
			if deps.Feed == nil {
				return errors.New("app: watch mode needs feed.ws_url")
			}
			w := NewWatcher(deps.Feed, liq, a.cfg.Feed.Cooldown.Duration,
				a.cfg.Liquidation.SkipInsufficientCollateral, deps.Metrics, a.logger)
			return w.Run(gctx)
		default:
			return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// The mode finished and cancelled the helpers.
		return nil
	}
	return err
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(handler.StatusInfo{
			Mode:         a.cfg.Mode,
			Liquidator:   deps.Signer.Address().Hex(),
			Receiver:     deps.Receiver.Hex(),
			RelayEnabled: deps.Relay != nil,
			Aggregator:   deps.Quotes != nil,
		}, a.logger),
		Hub: deps.Hub,
	}
	if deps.EventStore != nil {
		handlers.Events = handler.NewEventHandler(deps.EventStore, a.logger)
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, deps.Registry, a.logger)

	if deps.Hub != nil {
		g.Go(func() error {
			if err := deps.Hub.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
