package strategy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// PlanContext is the per-search data a plan is built from. It is fixed for
// the whole search; only the candidate varies between plans.
type PlanContext struct {
	Liquidator       common.Address
	Receiver         common.Address
	Violator         common.Address
	Underlying       common.Address
	UnderlyingEToken common.Address
	Collateral       domain.CollateralInfo
}

// BuildPlan assembles the batch for one candidate. The order is fixed:
// seize, unwrap if protected, convert, exit the debt market, and finally
// hand the collateral to the receiver when it is not the liquidator.
func BuildPlan(pc PlanContext, c domain.LiquidationCandidate) domain.BatchPlan {
	ops := make([]domain.Operation, 0, 8)

	ops = append(ops, domain.Liquidate{
		Violator:   pc.Violator,
		Underlying: pc.Underlying,
		Collateral: pc.Collateral.Collateral,
		Repay:      c.Repay,
		MinYield:   new(big.Int),
	})

	if pc.Collateral.Protected {
		ops = append(ops,
			domain.Withdraw{EToken: pc.Collateral.CollateralEToken, Amount: domain.MaxUint256},
			domain.PTokenUnwrap{Underlying: pc.Collateral.Unwrapped, Amount: c.UnwrapAmount},
			domain.Deposit{EToken: pc.Collateral.UnwrappedEToken, Amount: domain.MaxUint256},
		)
	}

	switch {
	case pc.Underlying == pc.Collateral.Final():
		ops = append(ops, domain.Burn{EToken: pc.Collateral.TargetEToken(), Amount: domain.MaxUint256})
	case c.Quote != nil:
		ops = append(ops,
			domain.Swap1Inch{
				UnderlyingIn:     pc.Collateral.Final(),
				UnderlyingOut:    pc.Underlying,
				Amount:           c.Quote.AmountIn,
				AmountOutMinimum: new(big.Int),
				Payload:          c.Quote.Payload,
			},
			domain.Burn{EToken: pc.UnderlyingEToken, Amount: domain.MaxUint256},
		)
	default:
		ops = append(ops, domain.SwapAndRepayUni{
			Path:            c.Route.Path,
			AmountOut:       new(big.Int),
			AmountInMaximum: domain.MaxUint256,
			Deadline:        new(big.Int),
			TargetDebt:      new(big.Int),
		})
	}

	ops = append(ops, domain.ExitMarket{Underlying: pc.Underlying})

	if pc.Receiver != pc.Liquidator {
		ops = append(ops, domain.TransferFromMax{
			EToken: pc.Collateral.TargetEToken(),
			From:   pc.Liquidator,
			To:     pc.Receiver,
		})
	}

	return domain.BatchPlan{Ops: ops}
}
