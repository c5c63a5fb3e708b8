// Package strategy searches for the most profitable way to liquidate a
// position: it sizes the repay amount, prices the conversion of seized
// collateral, and simulates every candidate batch before anything is sent.
package strategy

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/swappath"
)

const (
	// DefaultRepayFractionStart is the first repay fraction tried, in percent
	// of the protocol's maximum repay.
	DefaultRepayFractionStart = 98
	// MaxQuoteIterations bounds the aggregator price search.
	MaxQuoteIterations = 6
	// approveGasLimit is the gas limit of the one-off ERC20 approval.
	approveGasLimit = 300_000
)

// Config holds the parameters shared by every component of a search.
type Config struct {
	Liquidator         common.Address
	Receiver           common.Address
	ReferenceAsset     common.Address
	FeeTiers           []uint32
	RepayFractionStart int
}

func (c Config) withDefaults() Config {
	if c.Receiver == (common.Address{}) {
		c.Receiver = c.Liquidator
	}
	if len(c.FeeTiers) == 0 {
		c.FeeTiers = swappath.DefaultFeeTiers
	}
	if c.RepayFractionStart <= 0 || c.RepayFractionStart > 100 {
		c.RepayFractionStart = DefaultRepayFractionStart
	}
	return c
}
