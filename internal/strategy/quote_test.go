package strategy

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// funcSource quotes with a pricing function and counts calls.
type funcSource struct {
	mu    sync.Mutex
	calls []*big.Int
	price func(in *big.Int) *big.Int
	err   error
}

func (s *funcSource) Quote(_ context.Context, _, _ common.Address, amount *big.Int) (domain.SourceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, new(big.Int).Set(amount))
	if s.err != nil {
		return domain.SourceQuote{}, s.err
	}
	return domain.SourceQuote{
		FromAmount: new(big.Int).Set(amount),
		ToAmount:   s.price(amount),
		Payload:    []byte("swap"),
	}, nil
}

func ratio(num, den int64) func(*big.Int) *big.Int {
	return func(in *big.Int) *big.Int {
		out := new(big.Int).Mul(in, big.NewInt(num))
		return out.Quo(out, big.NewInt(den))
	}
}

func TestQuoteResolverConverges(t *testing.T) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// Unit trades 1:1, size slips half a percent.
	src := &funcSource{price: func(in *big.Int) *big.Int {
		if in.Cmp(unit) == 0 {
			return new(big.Int).Set(in)
		}
		return ratio(995, 1000)(in)
	}}

	q, err := NewQuoteResolver(src).Resolve(context.Background(), QuoteRequest{
		From: tokenDAI, To: tokenUSDC, FromDecimals: 18, ToDecimals: 18, TargetOut: units(100),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.AmountOut.Cmp(units(100)), 0)
	assert.Equal(t, []byte("swap"), q.Payload)
	assert.Len(t, src.calls, 3, "unit quote plus two searches")
	assert.Equal(t, units(100), src.calls[1])
}

func TestQuoteResolverRescalesDecimals(t *testing.T) {
	// 1e18 of an 18-decimal token buys 1e6 of a 6-decimal one.
	src := &funcSource{price: ratio(1, 1_000_000_000_000)}

	target := big.NewInt(250_000_000)
	q, err := NewQuoteResolver(src).Resolve(context.Background(), QuoteRequest{
		From: tokenDAI, To: tokenUSDC, FromDecimals: 18, ToDecimals: 6, TargetOut: target,
	})
	require.NoError(t, err)
	assert.Equal(t, units(250), q.AmountIn)
	assert.Equal(t, target, q.AmountOut)
}

func TestQuoteResolverBounded(t *testing.T) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// Any real size gets a tenth of the unit price: never reachable in 6 steps.
	src := &funcSource{price: func(in *big.Int) *big.Int {
		if in.Cmp(unit) == 0 {
			return new(big.Int).Set(in)
		}
		return ratio(1, 10)(in)
	}}

	_, err := NewQuoteResolver(src).Resolve(context.Background(), QuoteRequest{
		From: tokenDAI, To: tokenUSDC, FromDecimals: 18, ToDecimals: 18, TargetOut: units(10),
	})
	assert.ErrorIs(t, err, domain.ErrQuoteConvergence)
	assert.Len(t, src.calls, 1+MaxQuoteIterations)

	for i := 2; i < len(src.calls); i++ {
		assert.Equal(t, 1, src.calls[i].Cmp(src.calls[i-1]), "each retry asks for more input")
	}
}

func TestQuoteResolverUnavailable(t *testing.T) {
	req := QuoteRequest{From: tokenDAI, To: tokenUSDC, FromDecimals: 18, ToDecimals: 18, TargetOut: units(1)}

	_, err := NewQuoteResolver(nil).Resolve(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	zero := &funcSource{price: func(*big.Int) *big.Int { return new(big.Int) }}
	_, err = NewQuoteResolver(zero).Resolve(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	broken := &funcSource{err: errors.New("502 bad gateway")}
	_, err = NewQuoteResolver(broken).Resolve(context.Background(), req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrQuoteUnavailable)
}
