// Package swappath encodes venue swap routes into the packed byte layout the
// swap module expects, and enumerates the candidate routes for a position.
package swappath

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
	hopSize  = feeSize + addrSize
	maxFee   = 1<<24 - 1
)

// DefaultFeeTiers are the venue fee levels tried for every hop.
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

// Encode packs tokens and fees as token0 ‖ fee0 ‖ token1 ‖ … ‖ tokenN, each
// fee as three big-endian bytes.
func Encode(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(tokens) != len(fees)+1 {
		return nil, fmt.Errorf("swappath: %d tokens, %d fees: %w", len(tokens), len(fees), domain.ErrMalformedRoute)
	}

	out := make([]byte, 0, addrSize+len(fees)*hopSize)
	out = append(out, tokens[0].Bytes()...)

	var feeBuf [4]byte
	for i, fee := range fees {
		if fee > maxFee {
			return nil, fmt.Errorf("swappath: fee %d does not fit in 3 bytes: %w", fee, domain.ErrMalformedRoute)
		}
		binary.BigEndian.PutUint32(feeBuf[:], fee)
		out = append(out, feeBuf[1:]...)
		out = append(out, tokens[i+1].Bytes()...)
	}
	return out, nil
}

// Decode is the inverse of Encode.
func Decode(path []byte) ([]common.Address, []uint32, error) {
	if len(path) < addrSize+hopSize || (len(path)-addrSize)%hopSize != 0 {
		return nil, nil, fmt.Errorf("swappath: path length %d: %w", len(path), domain.ErrMalformedRoute)
	}

	hops := (len(path) - addrSize) / hopSize
	tokens := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)

	tokens = append(tokens, common.BytesToAddress(path[:addrSize]))
	idx := addrSize
	var feeBuf [4]byte
	for i := 0; i < hops; i++ {
		copy(feeBuf[1:], path[idx:idx+feeSize])
		fees = append(fees, binary.BigEndian.Uint32(feeBuf[:]))
		idx += feeSize
		tokens = append(tokens, common.BytesToAddress(path[idx:idx+addrSize]))
		idx += addrSize
	}
	return tokens, fees, nil
}

// NewRoute builds a SwapRoute with its packed path.
func NewRoute(tokens []common.Address, fees []uint32) (domain.SwapRoute, error) {
	path, err := Encode(tokens, fees)
	if err != nil {
		return domain.SwapRoute{}, err
	}
	return domain.SwapRoute{
		Tokens: append([]common.Address(nil), tokens...),
		Fees:   append([]uint32(nil), fees...),
		Path:   path,
	}, nil
}

// Candidates enumerates the routes worth simulating from the debt asset to
// the (final) collateral. When either side is the reference asset a single
// hop per fee tier is enough; otherwise every fee pair through the reference
// asset is tried. Identical assets need no swap, so a single placeholder
// route is returned.
func Candidates(underlying, collateral, ref common.Address, feeTiers []uint32) ([]domain.SwapRoute, error) {
	if len(feeTiers) == 0 {
		feeTiers = DefaultFeeTiers
	}

	if underlying == collateral {
		r, err := NewRoute([]common.Address{underlying, collateral}, feeTiers[:1])
		if err != nil {
			return nil, err
		}
		return []domain.SwapRoute{r}, nil
	}

	if underlying == ref || collateral == ref {
		routes := make([]domain.SwapRoute, 0, len(feeTiers))
		for _, fee := range feeTiers {
			r, err := NewRoute([]common.Address{underlying, collateral}, []uint32{fee})
			if err != nil {
				return nil, err
			}
			routes = append(routes, r)
		}
		return routes, nil
	}

	routes := make([]domain.SwapRoute, 0, len(feeTiers)*len(feeTiers))
	for _, feeIn := range feeTiers {
		for _, feeOut := range feeTiers {
			r, err := NewRoute([]common.Address{underlying, ref, collateral}, []uint32{feeIn, feeOut})
			if err != nil {
				return nil, err
			}
			routes = append(routes, r)
		}
	}
	return routes, nil
}
