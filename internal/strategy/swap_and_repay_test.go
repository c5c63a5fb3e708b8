package strategy

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

func newTestSearcher(chain *fakeChain, receiver common.Address, src domain.QuoteSource, tx domain.Transactor) *Searcher {
	cfg := Config{
		Liquidator:     liquidator,
		Receiver:       receiver,
		ReferenceAsset: tokenWETH,
	}
	return NewSearcher(cfg, chain, src, tx, nil, nil, discardLogger())
}

func TestFindBestEndToEnd(t *testing.T) {
	chain := newFakeChain()
	s := newTestSearcher(chain, common.Address{}, nil, nil)
	pos := domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: tokenDAI}

	status, err := chain.CheckLiquidation(context.Background(), liquidator, pos)
	require.NoError(t, err)
	require.True(t, status.Liquidatable())
	assert.Positive(t, status.Yield.Sign())

	res, err := s.FindBest(context.Background(), pos)
	require.NoError(t, err)
	require.True(t, res.Found())

	best := res.Best
	assert.Equal(t, 98, best.Fraction)
	assert.Equal(t, []uint32{100, 100}, best.Route.Fees, "cheapest two-hop route wins")
	assert.Equal(t, []common.Address{tokenUSDC, tokenWETH, tokenDAI}, best.Route.Tokens)
	// seized 4.9*1.05 minus venue cost 4.9*1.0002
	assert.Equal(t, "244020000000000000", best.Yield.String())
	assert.Equal(t, []string{"liquidate", "swapAndRepayUni", "exitMarket"}, res.Plan.Names())

	require.NoError(t, chain.commit(liquidator, res.Plan.Ops))
	assert.InDelta(t, 1.25, chain.health, 0.01)
	assert.Positive(t, chain.st.get(chain.st.eBal, eDAI, liquidator).Sign())

	assert.True(t, strings.HasPrefix(Describe(res), "SwapAndRepay c: "+tokenDAI.Hex()))
	assert.Contains(t, Describe(res), "yield: 0.24402 ETH")
	assert.Contains(t, Describe(res), best.Route.Hex())
}

func TestFindBestNoOpportunity(t *testing.T) {
	chain := newFakeChain()
	chain.maxRepay = new(big.Int)
	s := newTestSearcher(chain, common.Address{}, nil, nil)

	res, err := s.FindBest(context.Background(), domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: tokenDAI})
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	assert.False(t, res.Found())
	assert.Equal(t, "SwapAndRepay: No opportunity found", Describe(res))
	assert.Zero(t, chain.simulations)
}

func TestFindBestProtectedToReceiver(t *testing.T) {
	chain := newFakeChain()
	receiver := common.HexToAddress("0x1000000000000000000000000000000000000003")
	tx := &fakeTransactor{}
	s := newTestSearcher(chain, receiver, nil, tx)
	pos := domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: pTokenDAI}

	res, err := s.FindBest(context.Background(), pos)
	require.NoError(t, err)
	require.True(t, res.Found())

	assert.Equal(t, []common.Address{tokenDAI}, tx.calls, "unwrapped asset approved once")
	assert.True(t, res.Collateral.Protected)
	assert.Equal(t, eDAI, res.Collateral.TargetEToken())
	assert.Equal(t, "5145000000000000000", res.Best.UnwrapAmount.String())
	assert.Equal(t,
		[]string{"liquidate", "withdraw", "pTokenUnWrap", "deposit", "swapAndRepayUni", "exitMarket", "transferFromMax"},
		res.Plan.Names())

	require.NoError(t, chain.commit(liquidator, res.Plan.Ops))
	assert.Positive(t, chain.st.get(chain.st.eBal, eDAI, receiver).Sign())
	assert.Zero(t, chain.st.get(chain.st.eBal, eDAI, liquidator).Sign())
}

func TestFindBestSkipsApprovalWhenAllowed(t *testing.T) {
	chain := newFakeChain()
	chain.allowance = domain.MaxUint256
	tx := &fakeTransactor{}
	s := newTestSearcher(chain, common.Address{}, nil, tx)

	_, err := s.FindBest(context.Background(), domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: pTokenDAI})
	require.NoError(t, err)
	assert.Empty(t, tx.calls)
}

func TestFindBestFailedApproval(t *testing.T) {
	chain := newFakeChain()
	s := newTestSearcher(chain, common.Address{}, nil, &fakeTransactor{fail: true})

	_, err := s.FindBest(context.Background(), domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: pTokenDAI})
	assert.ErrorIs(t, err, domain.ErrExecutionRevert)
}

func TestFindBestWithAggregatorQuote(t *testing.T) {
	chain := newFakeChain()
	src := &funcSource{price: ratio(999, 1000)}
	s := newTestSearcher(chain, common.Address{}, src, nil)

	res, err := s.FindBest(context.Background(), domain.Position{Violator: violator, Underlying: tokenUSDC, Collateral: tokenDAI})
	require.NoError(t, err)
	require.True(t, res.Found())
	require.NotNil(t, res.Best.Quote)
	assert.Equal(t, []string{"liquidate", "swap1Inch", "burn", "exitMarket"}, res.Plan.Names())
	assert.Positive(t, res.Best.Yield.Sign())

	require.NoError(t, chain.commit(liquidator, res.Plan.Ops))
}

func TestFindBestSameAsset(t *testing.T) {
	chain := newFakeChain()
	s := newTestSearcher(chain, common.Address{}, nil, nil)

	res, err := s.FindBest(context.Background(), domain.Position{Violator: violator, Underlying: tokenDAI, Collateral: tokenDAI})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, []string{"liquidate", "burn", "exitMarket"}, res.Plan.Names())
	// the 5% bonus is all that remains
	assert.Equal(t, "245000000000000000", res.Best.Yield.String())
}
