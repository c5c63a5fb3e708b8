package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/strategy"
)

type finder interface {
	FindBest(ctx context.Context, pos domain.Position) (domain.SearchResult, error)
}

type executer interface {
	Execute(ctx context.Context, res domain.SearchResult) (domain.ExecutionResult, error)
}

// Liquidator evaluates one position and executes its best candidate when it
// clears the minimum yield.
type Liquidator struct {
	finder   finder
	exec     executer
	reporter domain.Reporter
	minYield *big.Int
	logger   *slog.Logger
}

// NewLiquidator creates a Liquidator. A nil minYield executes any positive
// candidate.
func NewLiquidator(f finder, e executer, reporter domain.Reporter, minYield *big.Int, logger *slog.Logger) *Liquidator {
	if minYield == nil {
		minYield = new(big.Int)
	}
	return &Liquidator{
		finder:   f,
		exec:     e,
		reporter: reporter,
		minYield: minYield,
		logger:   logger.With(slog.String("component", "liquidator")),
	}
}

// Outcome is what Evaluate did with a position.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeBelowMinimum
	OutcomeExecuted
)

// Evaluate searches pos and executes the winner. A position that cannot be
// liquidated is not an error.
func (l *Liquidator) Evaluate(ctx context.Context, pos domain.Position) (Outcome, error) {
	account := pos.Violator.Hex()

	res, err := l.finder.FindBest(ctx, pos)
	if errors.Is(err, domain.ErrNoOpportunity) {
		l.logger.DebugContext(ctx, "position not liquidatable", slog.String("position", pos.String()))
		return OutcomeNone, nil
	}
	if err != nil {
		l.report(ctx, domain.EventError, account, fmt.Sprintf("Search failed: %v", err), "")
		return OutcomeNone, err
	}
	if !res.Found() {
		l.logger.InfoContext(ctx, strategy.Describe(res), slog.String("position", pos.String()))
		return OutcomeNone, nil
	}

	desc := strategy.Describe(res)
	l.report(ctx, domain.EventOpportunity, account, "", desc)

	if res.Best.Yield.Cmp(l.minYield) < 0 {
		l.logger.InfoContext(ctx, "yield below minimum, skipping",
			slog.String("position", pos.String()),
			slog.String("yield", res.Best.Yield.String()),
			slog.String("min_yield", l.minYield.String()),
		)
		return OutcomeBelowMinimum, nil
	}

	out, err := l.exec.Execute(ctx, res)
	if err != nil {
		l.report(ctx, domain.EventError, account, fmt.Sprintf("Execution failed: %v", err), desc)
		return OutcomeNone, err
	}

	path := "public"
	switch {
	case out.Private:
		path = "private"
	case out.FellBack:
		path = "public after relay failure"
	}
	l.report(ctx, domain.EventExecuted, account, "",
		fmt.Sprintf("%s, tx %s (%s)", strategy.Describe(domain.SearchResult{State: domain.SearchFound, Best: &out.Candidate}), out.TxHash.Hex(), path))
	return OutcomeExecuted, nil
}

func (l *Liquidator) report(ctx context.Context, typ domain.EventType, account, msg, desc string) {
	if l.reporter == nil {
		return
	}
	l.reporter.Report(ctx, domain.Event{Type: typ, Account: account, Error: msg, Strategy: desc})
}
