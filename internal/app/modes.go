package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/executor"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
)

// OnceMode evaluates the configured position and returns.
func (a *App) OnceMode(ctx context.Context, liq *Liquidator) error {
	pos := domain.Position{
		Violator:   common.HexToAddress(a.cfg.Once.Violator),
		Underlying: common.HexToAddress(a.cfg.Once.Underlying),
		Collateral: common.HexToAddress(a.cfg.Once.Collateral),
	}
	a.logger.InfoContext(ctx, "evaluating position", slog.String("position", pos.String()))

	outcome, err := liq.Evaluate(ctx, pos)
	if err != nil {
		return fmt.Errorf("app: once: %w", err)
	}
	a.logger.InfoContext(ctx, "once finished", slog.Int("outcome", int(outcome)))
	return nil
}

// Watcher consumes the position feed and evaluates liquidatable accounts one
// position at a time.
type Watcher struct {
	feed                   domain.PositionFeed
	liq                    *Liquidator
	cooldown               *executor.Cooldown
	skipInsufficientCollat bool
	metrics                *metrics.Metrics
	logger                 *slog.Logger
}

// NewWatcher creates a Watcher. Accounts are skipped for cooldown after each
// evaluation.
func NewWatcher(feed domain.PositionFeed, liq *Liquidator, cooldown time.Duration, skipInsufficient bool, m *metrics.Metrics, logger *slog.Logger) *Watcher {
	return &Watcher{
		feed:                   feed,
		liq:                    liq,
		cooldown:               executor.NewCooldown(cooldown),
		skipInsufficientCollat: skipInsufficient,
		metrics:                m,
		logger:                 logger.With(slog.String("component", "watcher")),
	}
}

// Run blocks until ctx ends or the feed closes.
func (w *Watcher) Run(ctx context.Context) error {
	accounts, err := w.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("app: subscribe feed: %w", err)
	}

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			w.cooldown.Cleanup()
		case acct, ok := <-accounts:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("app: position feed closed")
			}
			w.metrics.FeedAccount()
			w.handle(ctx, acct)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, acct domain.Account) {
	if !w.eligible(acct) {
		return
	}
	key := acct.Address.Hex()
	if w.cooldown.Active(key) {
		return
	}
	w.cooldown.Mark(key)

	log := w.logger.With(slog.String("account", key), slog.Float64("health", acct.HealthScore))
	log.InfoContext(ctx, "liquidatable account")

	for _, pos := range acct.Positions() {
		if ctx.Err() != nil {
			return
		}
		outcome, err := w.liq.Evaluate(ctx, pos)
		if err != nil {
			log.WarnContext(ctx, "position evaluation failed",
				slog.String("position", pos.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if outcome == OutcomeExecuted {
			// Health changed; the feed will report the account again.
			return
		}
	}
}

func (w *Watcher) eligible(acct domain.Account) bool {
	if acct.HealthScore >= 1 {
		return false
	}
	if w.skipInsufficientCollat && acct.InsufficientCollateral() {
		w.logger.Debug("skipping account with insufficient collateral", slog.String("account", acct.Address.Hex()))
		return false
	}
	return true
}
