package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// Unwrapper handles collateral held as a protected token: it resolves the
// wrapped asset, keeps the protocol approved to pull it, and sizes the
// unwrap for a given repay amount.
type Unwrapper struct {
	protocol domain.Protocol
	tx       domain.Transactor
	logger   *slog.Logger
}

// NewUnwrapper creates an Unwrapper. tx may be nil when approvals are never
// needed, e.g. in simulation-only runs.
func NewUnwrapper(protocol domain.Protocol, tx domain.Transactor, logger *slog.Logger) *Unwrapper {
	return &Unwrapper{protocol: protocol, tx: tx, logger: logger}
}

// Detect fills in the collateral description for a seized asset.
func (u *Unwrapper) Detect(ctx context.Context, collateral common.Address) (domain.CollateralInfo, error) {
	info := domain.CollateralInfo{Collateral: collateral}

	eToken, err := u.protocol.ETokenOf(ctx, collateral)
	if err != nil {
		return info, fmt.Errorf("strategy: eToken of collateral %s: %w", collateral.Hex(), err)
	}
	info.CollateralEToken = eToken

	wrapped, err := u.protocol.PTokenUnderlying(ctx, collateral)
	if err != nil {
		return info, fmt.Errorf("strategy: pToken underlying of %s: %w", collateral.Hex(), err)
	}
	if wrapped != (common.Address{}) {
		// Only a pToken the markets module itself maps back counts.
		pToken, err := u.protocol.PTokenOf(ctx, wrapped)
		if err != nil {
			return info, fmt.Errorf("strategy: pToken of %s: %w", wrapped.Hex(), err)
		}
		if pToken == collateral {
			info.Protected = true
			info.Unwrapped = wrapped
			if info.UnwrappedEToken, err = u.protocol.ETokenOf(ctx, wrapped); err != nil {
				return info, fmt.Errorf("strategy: eToken of unwrapped %s: %w", wrapped.Hex(), err)
			}
		}
	}

	if info.Decimals, err = u.protocol.Decimals(ctx, info.Final()); err != nil {
		return info, fmt.Errorf("strategy: decimals of %s: %w", info.Final().Hex(), err)
	}
	return info, nil
}

// EnsureApproval grants the protocol unlimited allowance over the unwrapped
// asset when the liquidator has none. It is a no-op for unprotected
// collateral or when an allowance already exists.
func (u *Unwrapper) EnsureApproval(ctx context.Context, liquidator common.Address, info domain.CollateralInfo) error {
	if !info.Protected {
		return nil
	}
	spender := u.protocol.EulerAddress()
	allowance, err := u.protocol.Allowance(ctx, info.Unwrapped, liquidator, spender)
	if err != nil {
		return fmt.Errorf("strategy: allowance of %s: %w", info.Unwrapped.Hex(), err)
	}
	if allowance.Sign() > 0 {
		return nil
	}
	if u.tx == nil {
		return fmt.Errorf("strategy: approval of %s needed but no transactor configured", info.Unwrapped.Hex())
	}

	data, err := u.protocol.ApproveCall(spender, domain.MaxUint256)
	if err != nil {
		return fmt.Errorf("strategy: encode approve: %w", err)
	}
	u.logger.InfoContext(ctx, "approving protocol for unwrapped collateral",
		slog.String("token", info.Unwrapped.Hex()),
		slog.String("spender", spender.Hex()),
	)
	receipt, err := u.tx.Transact(ctx, info.Unwrapped, data, approveGasLimit)
	if err != nil {
		return fmt.Errorf("strategy: approve %s: %w", info.Unwrapped.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &domain.ExecutionRevertError{TxHash: receipt.TxHash}
	}
	return nil
}

// UnwrapAmount returns how many protected tokens liquidating repay would
// seize, measured as the change in the liquidator's collateral balance over
// a simulated liquidation.
func (u *Unwrapper) UnwrapAmount(ctx context.Context, pc PlanContext, repay *big.Int) (*big.Int, error) {
	probe := domain.BalanceOfUnderlying{EToken: pc.Collateral.CollateralEToken, Account: pc.Liquidator}
	ops := []domain.Operation{
		probe,
		domain.Liquidate{
			Violator:   pc.Violator,
			Underlying: pc.Underlying,
			Collateral: pc.Collateral.Collateral,
			Repay:      repay,
			MinYield:   new(big.Int),
		},
		probe,
	}
	steps, err := simulate(ctx, u.protocol, pc.Liquidator, ops)
	if err != nil {
		return nil, fmt.Errorf("strategy: size unwrap: %w", err)
	}
	if steps[0].Amount == nil || steps[2].Amount == nil {
		return nil, fmt.Errorf("strategy: size unwrap: balance probes returned no value")
	}
	return new(big.Int).Sub(steps[2].Amount, steps[0].Amount), nil
}
