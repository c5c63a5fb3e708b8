package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
	"github.com/alanyoungcy/liquidationbot/internal/swappath"
)

// Searcher finds the best swap-and-repay liquidation for a position.
type Searcher struct {
	cfg        Config
	protocol   domain.Protocol
	unwrap     *Unwrapper
	negotiator *Negotiator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewSearcher wires the search components. source, tx, reporter and m may be
// nil: without a quote source every conversion goes through the venue, and
// without a transactor protected collateral cannot be approved.
func NewSearcher(cfg Config, protocol domain.Protocol, source domain.QuoteSource, tx domain.Transactor, reporter domain.Reporter, m *metrics.Metrics, logger *slog.Logger) *Searcher {
	cfg = cfg.withDefaults()
	unwrap := NewUnwrapper(protocol, tx, logger)
	sim := NewSimulator(protocol, m)
	quotes := NewQuoteResolver(source)
	return &Searcher{
		cfg:        cfg,
		protocol:   protocol,
		unwrap:     unwrap,
		negotiator: NewNegotiator(sim, quotes, unwrap, reporter, cfg.RepayFractionStart, m, logger),
		metrics:    m,
		logger:     logger,
	}
}

// Config returns the effective search configuration.
func (s *Searcher) Config() Config { return s.cfg }

// FindBest evaluates pos. It returns ErrNoOpportunity when the protocol
// allows no repay at all, and a SearchExhausted result when a repay is
// allowed but no candidate earns anything.
func (s *Searcher) FindBest(ctx context.Context, pos domain.Position) (domain.SearchResult, error) {
	log := s.logger.With(slog.String("position", pos.String()))

	info, err := s.unwrap.Detect(ctx, pos.Collateral)
	if err != nil {
		return domain.SearchResult{}, err
	}
	if err := s.unwrap.EnsureApproval(ctx, s.cfg.Liquidator, info); err != nil {
		return domain.SearchResult{}, err
	}

	uEToken, err := s.protocol.ETokenOf(ctx, pos.Underlying)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("strategy: eToken of underlying %s: %w", pos.Underlying.Hex(), err)
	}
	uDecimals, err := s.protocol.Decimals(ctx, pos.Underlying)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("strategy: decimals of %s: %w", pos.Underlying.Hex(), err)
	}

	status, err := s.protocol.CheckLiquidation(ctx, s.cfg.Liquidator, pos)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("strategy: check liquidation: %w", err)
	}
	if !status.Liquidatable() {
		s.metrics.Search(false)
		return domain.SearchResult{Collateral: info}, fmt.Errorf("strategy: %s: %w", pos, domain.ErrNoOpportunity)
	}

	routes, err := swappath.Candidates(pos.Underlying, info.Final(), s.cfg.ReferenceAsset, s.cfg.FeeTiers)
	if err != nil {
		return domain.SearchResult{}, err
	}

	log.Debug("searching",
		slog.String("max_repay", status.Repay.String()),
		slog.Bool("protected", info.Protected),
		slog.Int("routes", len(routes)),
	)

	res, err := s.negotiator.Negotiate(ctx, Negotiation{
		Plan: PlanContext{
			Liquidator:       s.cfg.Liquidator,
			Receiver:         s.cfg.Receiver,
			Violator:         pos.Violator,
			Underlying:       pos.Underlying,
			UnderlyingEToken: uEToken,
			Collateral:       info,
		},
		Status:             status,
		UnderlyingDecimals: uDecimals,
		Routes:             routes,
	})
	if err != nil {
		return res, err
	}

	s.metrics.Search(res.Found())
	if res.Found() {
		y, _ := YieldETH(res).Float64()
		s.metrics.BestYield(y)
	}
	return res, nil
}

// YieldETH returns the best candidate's yield as a decimal ETH amount, or
// zero when nothing was found.
func YieldETH(res domain.SearchResult) decimal.Decimal {
	if !res.Found() || res.Best.Yield == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(res.Best.Yield, -18)
}

// Describe renders a search result for logs and notifications.
func Describe(res domain.SearchResult) string {
	if !res.Found() {
		return "SwapAndRepay: No opportunity found"
	}
	b := res.Best
	return fmt.Sprintf("SwapAndRepay c: %s, u: %s, repay: %s yield: %s ETH, path %s",
		b.Position.Collateral.Hex(),
		b.Position.Underlying.Hex(),
		b.Repay.String(),
		YieldETH(res).String(),
		b.Route.Hex(),
	)
}
