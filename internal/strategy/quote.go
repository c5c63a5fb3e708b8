package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// QuoteRequest asks for the input needed to receive at least TargetOut of To.
type QuoteRequest struct {
	From         common.Address
	To           common.Address
	FromDecimals uint8
	ToDecimals   uint8
	TargetOut    *big.Int
}

// QuoteResolver turns the aggregator's exact-input quotes into an
// exact-output one by iterating on the input amount.
type QuoteResolver struct {
	source domain.QuoteSource
}

// NewQuoteResolver creates a resolver. A nil source makes every Resolve
// return ErrQuoteUnavailable.
func NewQuoteResolver(source domain.QuoteSource) *QuoteResolver {
	return &QuoteResolver{source: source}
}

// Resolve searches for an input amount whose quote covers req.TargetOut.
// It starts from the unit price and widens the input by 1/99 per miss, so
// the result overshoots the target by at most about one percent.
func (r *QuoteResolver) Resolve(ctx context.Context, req QuoteRequest) (*domain.AggregatorQuote, error) {
	if r == nil || r.source == nil {
		return nil, domain.ErrQuoteUnavailable
	}
	if req.TargetOut == nil || req.TargetOut.Sign() <= 0 {
		return nil, fmt.Errorf("strategy: quote target must be positive: %w", domain.ErrQuoteUnavailable)
	}

	unit, err := r.source.Quote(ctx, req.From, req.To, pow10(int(req.FromDecimals)))
	if err != nil {
		return nil, fmt.Errorf("strategy: unit quote: %w", err)
	}
	if unit.ToAmount == nil || unit.ToAmount.Sign() == 0 {
		return nil, domain.ErrQuoteUnavailable
	}

	guess := rescale(req.TargetOut, req.ToDecimals, req.FromDecimals)
	guess.Mul(guess, pow10(int(req.ToDecimals)))
	guess.Quo(guess, unit.ToAmount)
	if guess.Sign() == 0 {
		return nil, domain.ErrQuoteUnavailable
	}

	for range MaxQuoteIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := r.source.Quote(ctx, req.From, req.To, guess)
		if err != nil {
			return nil, fmt.Errorf("strategy: quote %s: %w", guess, err)
		}
		if q.ToAmount != nil && q.ToAmount.Cmp(req.TargetOut) >= 0 {
			in := q.FromAmount
			if in == nil {
				in = new(big.Int).Set(guess)
			}
			return &domain.AggregatorQuote{AmountIn: in, AmountOut: q.ToAmount, Payload: q.Payload}, nil
		}
		guess = new(big.Int).Mul(guess, big.NewInt(100))
		guess.Quo(guess, big.NewInt(99))
	}
	return nil, fmt.Errorf("strategy: %d iterations for %s out: %w", MaxQuoteIterations, req.TargetOut, domain.ErrQuoteConvergence)
}

// rescale converts amount between decimal bases, truncating.
func rescale(amount *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case to > from:
		out.Mul(out, pow10(int(to-from)))
	case from > to:
		out.Quo(out, pow10(int(from-to)))
	}
	return out
}
