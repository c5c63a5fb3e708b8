package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
)

// FractionSchedule returns the repay percentages tried in order: start,
// then repeated floor halving down to 1.
func FractionSchedule(start int) []int {
	var out []int
	for f := start; f > 0; f /= 2 {
		out = append(out, f)
	}
	return out
}

// Negotiation is the input to one repay-fraction search.
type Negotiation struct {
	Plan               PlanContext
	Status             domain.LiquidationStatus
	UnderlyingDecimals uint8
	Routes             []domain.SwapRoute
}

// Negotiator walks the fraction schedule and keeps the first round that
// yields a profitable candidate.
type Negotiator struct {
	sim      *Simulator
	quotes   *QuoteResolver
	unwrap   *Unwrapper
	reporter domain.Reporter
	start    int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewNegotiator wires a Negotiator. reporter and m may be nil.
func NewNegotiator(sim *Simulator, quotes *QuoteResolver, unwrap *Unwrapper, reporter domain.Reporter, start int, m *metrics.Metrics, logger *slog.Logger) *Negotiator {
	if start <= 0 || start > 100 {
		start = DefaultRepayFractionStart
	}
	return &Negotiator{
		sim:      sim,
		quotes:   quotes,
		unwrap:   unwrap,
		reporter: reporter,
		start:    start,
		metrics:  m,
		logger:   logger,
	}
}

// Negotiate runs the search. It only fails when ctx ends; an unprofitable
// position is reported as SearchExhausted.
func (n *Negotiator) Negotiate(ctx context.Context, in Negotiation) (domain.SearchResult, error) {
	res := domain.SearchResult{State: domain.SearchExhausted, Collateral: in.Plan.Collateral}
	if len(in.Routes) == 0 || !in.Status.Liquidatable() {
		return res, nil
	}

	for _, fraction := range FractionSchedule(n.start) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rounds++
		n.metrics.Round()

		best, ok := n.round(ctx, in, fraction)
		if !ok {
			continue
		}
		res.State = domain.SearchFound
		res.Best = best
		res.Plan = BuildPlan(in.Plan, *best)
		return res, nil
	}
	return res, ctx.Err()
}

func (n *Negotiator) round(ctx context.Context, in Negotiation, fraction int) (*domain.LiquidationCandidate, bool) {
	repay := new(big.Int).Mul(in.Status.Repay, big.NewInt(int64(fraction)))
	repay.Quo(repay, big.NewInt(100))
	if repay.Sign() == 0 {
		return nil, false
	}

	log := n.logger.With(
		slog.String("violator", in.Plan.Violator.Hex()),
		slog.Int("fraction", fraction),
		slog.String("repay", repay.String()),
	)

	base := domain.LiquidationCandidate{
		Position: domain.Position{
			Violator:   in.Plan.Violator,
			Underlying: in.Plan.Underlying,
			Collateral: in.Plan.Collateral.Collateral,
		},
		Fraction: fraction,
		Repay:    repay,
	}

	if in.Plan.Collateral.Protected {
		amount, err := n.unwrap.UnwrapAmount(ctx, in.Plan, repay)
		if err != nil {
			log.Debug("unwrap sizing failed, skipping round", slog.String("error", err.Error()))
			return nil, false
		}
		base.UnwrapAmount = amount
	}

	if in.Plan.Underlying != in.Plan.Collateral.Final() {
		base.Quote = n.quote(ctx, in, repay, log)
	}

	results := make([]*big.Int, len(in.Routes))
	var g errgroup.Group
	for i, route := range in.Routes {
		g.Go(func() error {
			c := base
			c.Route = route
			y, err := n.sim.Yield(ctx, in.Plan, c)
			if err != nil {
				log.Debug("candidate rejected",
					slog.String("route", route.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = y
			return nil
		})
	}
	_ = g.Wait()

	bestIdx := -1
	for i, y := range results {
		if y == nil {
			continue
		}
		if bestIdx < 0 || y.Cmp(results[bestIdx]) > 0 {
			bestIdx = i
		}
	}
	if bestIdx < 0 || results[bestIdx].Sign() <= 0 {
		return nil, false
	}

	best := base
	best.Route = in.Routes[bestIdx]
	best = best.WithYield(results[bestIdx])
	log.Info("profitable candidate",
		slog.String("route", best.Route.String()),
		slog.String("yield", best.Yield.String()),
	)
	return &best, true
}

// quote prices the collateral-to-debt conversion through the aggregator.
// Failures degrade to the venue route and never abort the round.
func (n *Negotiator) quote(ctx context.Context, in Negotiation, repay *big.Int, log *slog.Logger) *domain.AggregatorQuote {
	target := new(big.Int).Set(repay)
	if in.UnderlyingDecimals < 18 {
		target.Quo(target, pow10(18-int(in.UnderlyingDecimals)))
	}
	q, err := n.quotes.Resolve(ctx, QuoteRequest{
		From:         in.Plan.Collateral.Final(),
		To:           in.Plan.Underlying,
		FromDecimals: in.Plan.Collateral.Decimals,
		ToDecimals:   in.UnderlyingDecimals,
		TargetOut:    target,
	})
	switch {
	case err == nil:
		return q
	case errors.Is(err, domain.ErrQuoteUnavailable):
		return nil
	}

	n.metrics.QuoteError()
	log.Warn("aggregator quote failed", slog.String("error", err.Error()))
	if n.reporter != nil {
		n.reporter.Report(ctx, domain.Event{
			Type:    domain.EventError,
			Account: in.Plan.Violator.Hex(),
			Error:   fmt.Sprintf("Failed fetching aggregator quote: %v", err),
			At:      time.Now().UTC(),
		})
	}
	return nil
}
