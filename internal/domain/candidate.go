package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LiquidationCandidate is one evaluated way to liquidate a position: a route,
// a repay amount and the per-round inputs derived for that amount.
type LiquidationCandidate struct {
	Position     Position
	Route        SwapRoute
	Fraction     int
	Repay        *big.Int
	UnwrapAmount *big.Int
	Quote        *AggregatorQuote
	// Yield is the simulated gain in the reference asset, 18 decimals.
	Yield *big.Int
}

// WithYield returns a copy of c carrying the given yield.
func (c LiquidationCandidate) WithYield(y *big.Int) LiquidationCandidate {
	c.Yield = new(big.Int).Set(y)
	return c
}

// SearchState is the terminal state of a repay-fraction search.
type SearchState int

const (
	SearchExhausted SearchState = iota
	SearchFound
)

func (s SearchState) String() string {
	if s == SearchFound {
		return "found"
	}
	return "exhausted"
}

// SearchResult is the outcome of one search over a position.
type SearchResult struct {
	State      SearchState
	Best       *LiquidationCandidate
	Plan       BatchPlan
	Collateral CollateralInfo
	Rounds     int
}

// Found reports whether the search produced an executable candidate.
func (r SearchResult) Found() bool {
	return r.State == SearchFound && r.Best != nil
}

// ExecutionResult is the terminal record of a submitted liquidation.
type ExecutionResult struct {
	TxHash    common.Hash
	Receipt   *types.Receipt
	Private   bool
	FellBack  bool
	Candidate LiquidationCandidate
}
