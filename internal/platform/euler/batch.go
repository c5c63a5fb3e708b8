package euler

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// primary sub-account; every operation the bot builds acts on it.
var subAccount0 = new(big.Int)

// encodeOp maps one operation to the module proxy it targets and its
// calldata.
func (c *Client) encodeOp(op domain.Operation) (common.Address, []byte, error) {
	switch o := op.(type) {
	case domain.Liquidate:
		data, err := pack(liquidationABI, "liquidate", o.Violator, o.Underlying, o.Collateral, o.Repay, orZero(o.MinYield))
		return c.addrs.Liquidation, data, err
	case domain.Withdraw:
		data, err := pack(eTokenABI, "withdraw", subAccount0, o.Amount)
		return o.EToken, data, err
	case domain.PTokenUnwrap:
		data, err := pack(execABI, "pTokenUnWrap", o.Underlying, o.Amount)
		return c.addrs.Exec, data, err
	case domain.Deposit:
		data, err := pack(eTokenABI, "deposit", subAccount0, o.Amount)
		return o.EToken, data, err
	case domain.Burn:
		data, err := pack(eTokenABI, "burn", subAccount0, o.Amount)
		return o.EToken, data, err
	case domain.Swap1Inch:
		data, err := pack(swapABI, "swap1Inch", swap1InchParams{
			SubAccountIdIn:   subAccount0,
			SubAccountIdOut:  subAccount0,
			UnderlyingIn:     o.UnderlyingIn,
			UnderlyingOut:    o.UnderlyingOut,
			Amount:           o.Amount,
			AmountOutMinimum: orZero(o.AmountOutMinimum),
			Payload:          o.Payload,
		})
		return c.addrs.Swap, data, err
	case domain.SwapAndRepayUni:
		data, err := pack(swapABI, "swapAndRepayUni", swapUniExactOutputParams{
			SubAccountIdIn:  subAccount0,
			SubAccountIdOut: subAccount0,
			AmountOut:       orZero(o.AmountOut),
			AmountInMaximum: o.AmountInMaximum,
			Deadline:        orZero(o.Deadline),
			Path:            o.Path,
		}, orZero(o.TargetDebt))
		return c.addrs.Swap, data, err
	case domain.ExitMarket:
		data, err := pack(marketsABI, "exitMarket", subAccount0, o.Underlying)
		return c.addrs.Markets, data, err
	case domain.TransferFromMax:
		data, err := pack(eTokenABI, "transferFromMax", o.From, o.To)
		return o.EToken, data, err
	case domain.BalanceOfUnderlying:
		data, err := pack(eTokenABI, "balanceOfUnderlying", o.Account)
		return o.EToken, data, err
	case domain.GetPriceFull:
		data, err := pack(execABI, "getPriceFull", o.Underlying)
		return c.addrs.Exec, data, err
	default:
		return common.Address{}, nil, fmt.Errorf("euler: unsupported operation %T", op)
	}
}

// buildItems encodes ops as batch items. allowError lets a simulation run
// past a failing step so the failing index can be reported.
func (c *Client) buildItems(ops []domain.Operation, allowError bool) ([]batchItem, error) {
	items := make([]batchItem, 0, len(ops))
	for i, op := range ops {
		proxy, data, err := c.encodeOp(op)
		if err != nil {
			return nil, fmt.Errorf("euler: encoding step %d (%s): %w", i, op.OpName(), err)
		}
		items = append(items, batchItem{AllowError: allowError, ProxyAddr: proxy, Data: data})
	}
	return items, nil
}

// decodeStep fills in Amount for read probes and Reason for failures.
func decodeStep(op domain.Operation, res simulationResult) (domain.StepResult, error) {
	step := domain.StepResult{Success: res.Success, Data: res.Result}
	if !res.Success {
		if reason, err := abi.UnpackRevert(res.Result); err == nil {
			step.Reason = reason
		}
		return step, nil
	}

	switch op.(type) {
	case domain.BalanceOfUnderlying:
		out, err := eTokenABI.Unpack("balanceOfUnderlying", res.Result)
		if err != nil {
			return step, fmt.Errorf("euler: decoding balanceOfUnderlying: %w", err)
		}
		step.Amount = out[0].(*big.Int)
	case domain.GetPriceFull:
		out, err := execABI.Unpack("getPriceFull", res.Result)
		if err != nil {
			return step, fmt.Errorf("euler: decoding getPriceFull: %w", err)
		}
		step.Amount = out[2].(*big.Int)
	}
	return step, nil
}

func pack(a abi.ABI, method string, args ...any) ([]byte, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	return data, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
