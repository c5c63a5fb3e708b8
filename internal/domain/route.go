package domain

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SwapRoute is an ordered venue path from the debt asset to the seized
// collateral, in exact-output order. Path is the packed on-chain encoding.
type SwapRoute struct {
	Tokens []common.Address
	Fees   []uint32
	Path   []byte
}

// Hex returns the packed path as lowercase 0x-prefixed hex.
func (r SwapRoute) Hex() string {
	return "0x" + hex.EncodeToString(r.Path)
}

func (r SwapRoute) String() string {
	var b strings.Builder
	for i, t := range r.Tokens {
		if i > 0 {
			b.WriteString(" -")
			b.WriteString(big.NewInt(int64(r.Fees[i-1])).String())
			b.WriteString("-> ")
		}
		b.WriteString(t.Hex())
	}
	return b.String()
}

// AggregatorQuote is an off-chain quote that converts AmountIn of the seized
// collateral into at least AmountOut of the debt asset. Payload is the opaque
// calldata the swap module forwards to the aggregator.
type AggregatorQuote struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Payload   []byte
}
