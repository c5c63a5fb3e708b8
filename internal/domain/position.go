package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position identifies one borrower's debt in one asset against one of its
// collaterals. It is read-only input to a search.
type Position struct {
	Violator   common.Address
	Underlying common.Address
	Collateral common.Address
}

func (p Position) String() string {
	return fmt.Sprintf("%s u:%s c:%s", p.Violator.Hex(), p.Underlying.Hex(), p.Collateral.Hex())
}

// LiquidationStatus is the protocol's own view of a position, as returned by
// checkLiquidation. Repay and Yield are 18-decimal normalised.
type LiquidationStatus struct {
	Repay          *big.Int
	Yield          *big.Int
	HealthScore    *big.Int
	BaseDiscount   *big.Int
	Discount       *big.Int
	ConversionRate *big.Int
}

// Liquidatable reports whether the protocol allows any repay at all.
func (s LiquidationStatus) Liquidatable() bool {
	return s.Repay != nil && s.Repay.Sign() > 0
}

// CollateralInfo describes the asset that will actually be converted after
// seizure. For protected collateral, Unwrapped differs from Collateral.
type CollateralInfo struct {
	Collateral       common.Address
	CollateralEToken common.Address
	Protected        bool
	Unwrapped        common.Address
	UnwrappedEToken  common.Address
	Decimals         uint8
}

// Final returns the asset seized collateral ends up as.
func (c CollateralInfo) Final() common.Address {
	if c.Protected {
		return c.Unwrapped
	}
	return c.Collateral
}

// TargetEToken returns the receipt token whose balance measures yield.
func (c CollateralInfo) TargetEToken() common.Address {
	if c.Protected {
		return c.UnwrappedEToken
	}
	return c.CollateralEToken
}

// Account is one borrower from the position feed, with the markets it borrows
// in and the markets it supplies as collateral.
type Account struct {
	Address         common.Address
	HealthScore     float64 // ratio; below 1 is liquidatable
	CollateralValue float64
	LiabilityValue  float64
	Liabilities     []common.Address
	Collaterals     []common.Address
}

// InsufficientCollateral reports an account whose unadjusted collateral value no
// longer covers its debt at all.
func (a Account) InsufficientCollateral() bool {
	return a.CollateralValue < a.LiabilityValue
}

// Positions expands the account into one Position per liability and
// collateral pair.
func (a Account) Positions() []Position {
	out := make([]Position, 0, len(a.Liabilities)*len(a.Collaterals))
	for _, u := range a.Liabilities {
		for _, c := range a.Collaterals {
			out = append(out, Position{Violator: a.Address, Underlying: u, Collateral: c})
		}
	}
	return out
}
