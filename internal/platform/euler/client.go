// Package euler adapts the Euler lending protocol's on-chain modules to the
// domain.Protocol interface: liquidation checks, token lookups, and batch
// simulation and encoding.
package euler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// Addresses are the protocol's main contract and module proxies.
type Addresses struct {
	Euler       common.Address
	Markets     common.Address
	Liquidation common.Address
	Exec        common.Address
	Swap        common.Address
}

// Client reads protocol state through eth_call. It holds no state of its own
// beyond the addresses, so every answer reflects the latest block.
type Client struct {
	caller ethereum.ContractCaller
	addrs  Addresses
	logger *slog.Logger
}

var _ domain.Protocol = (*Client)(nil)

// New creates a Client. *ethclient.Client satisfies caller.
func New(caller ethereum.ContractCaller, addrs Addresses, logger *slog.Logger) *Client {
	return &Client{
		caller: caller,
		addrs:  addrs,
		logger: logger.With(slog.String("component", "euler")),
	}
}

// EulerAddress is the spender protocol deposits pull tokens through.
func (c *Client) EulerAddress() common.Address {
	return c.addrs.Euler
}

// CheckLiquidation asks the liquidation module how much of pos the
// liquidator may repay and what it would receive.
func (c *Client) CheckLiquidation(ctx context.Context, liquidator common.Address, pos domain.Position) (domain.LiquidationStatus, error) {
	out, err := c.call(ctx, liquidator, c.addrs.Liquidation, liquidationABI, "checkLiquidation",
		liquidator, pos.Violator, pos.Underlying, pos.Collateral)
	if err != nil {
		return domain.LiquidationStatus{}, err
	}

	var opp liquidationOpportunity
	if err := convert(out[0], &opp); err != nil {
		return domain.LiquidationStatus{}, fmt.Errorf("euler: decoding checkLiquidation: %w", err)
	}
	return domain.LiquidationStatus{
		Repay:          opp.Repay,
		Yield:          opp.Yield,
		HealthScore:    opp.HealthScore,
		BaseDiscount:   opp.BaseDiscount,
		Discount:       opp.Discount,
		ConversionRate: opp.ConversionRate,
	}, nil
}

// ETokenOf returns the eToken proxy for underlying.
func (c *Client) ETokenOf(ctx context.Context, underlying common.Address) (common.Address, error) {
	return c.callAddress(ctx, c.addrs.Markets, marketsABI, "underlyingToEToken", underlying)
}

// PTokenOf returns the protected-token wrapper for underlying.
func (c *Client) PTokenOf(ctx context.Context, underlying common.Address) (common.Address, error) {
	return c.callAddress(ctx, c.addrs.Markets, marketsABI, "underlyingToPToken", underlying)
}

// PTokenUnderlying calls underlying() on token. Ordinary ERC20s revert or
// return nothing; both mean "not protected" and yield the zero address.
func (c *Client) PTokenUnderlying(ctx context.Context, token common.Address) (common.Address, error) {
	data, err := pTokenABI.Pack("underlying")
	if err != nil {
		return common.Address{}, err
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return common.Address{}, nil
		}
		return common.Address{}, fmt.Errorf("euler: underlying() on %s: %w", token.Hex(), err)
	}
	if len(raw) < 32 {
		return common.Address{}, nil
	}
	out, err := pTokenABI.Unpack("underlying", raw)
	if err != nil {
		return common.Address{}, nil
	}
	return out[0].(common.Address), nil
}

// Decimals returns the ERC20 decimals of token.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, common.Address{}, token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

// Allowance returns the ERC20 allowance owner has granted spender.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, common.Address{}, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ApproveCall encodes approve(spender, amount).
func (c *Client) ApproveCall(spender common.Address, amount *big.Int) ([]byte, error) {
	return pack(erc20ABI, "approve", spender, amount)
}

// BatchCall encodes ops as exec.batchDispatch with liquidity checks deferred
// for from. Every item must succeed.
func (c *Client) BatchCall(from common.Address, ops []domain.Operation) (common.Address, []byte, error) {
	items, err := c.buildItems(ops, false)
	if err != nil {
		return common.Address{}, nil, err
	}
	data, err := pack(execABI, "batchDispatch", items, []common.Address{from})
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("euler: %w", err)
	}
	return c.addrs.Exec, data, nil
}

// SimulateBatch runs ops through exec.batchDispatchSimulate. The call always
// reverts; the per-step results travel in the BatchDispatchSimulation error.
func (c *Client) SimulateBatch(ctx context.Context, from common.Address, ops []domain.Operation) ([]domain.StepResult, error) {
	items, err := c.buildItems(ops, true)
	if err != nil {
		return nil, err
	}
	data, err := pack(execABI, "batchDispatchSimulate", items, []common.Address{from})
	if err != nil {
		return nil, fmt.Errorf("euler: %w", err)
	}

	_, callErr := c.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &c.addrs.Exec, Data: data}, nil)
	if callErr == nil {
		return nil, errors.New("euler: batchDispatchSimulate returned without a simulation result")
	}
	payload, ok := revertData(callErr)
	if !ok {
		return nil, fmt.Errorf("euler: simulating batch: %w", callErr)
	}

	results, err := unpackSimulation(payload)
	if err != nil {
		return nil, err
	}
	if len(results) != len(ops) {
		return nil, fmt.Errorf("euler: simulation returned %d results for %d steps", len(results), len(ops))
	}

	steps := make([]domain.StepResult, len(ops))
	for i, op := range ops {
		if steps[i], err = decodeStep(op, results[i]); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

func unpackSimulation(payload []byte) ([]simulationResult, error) {
	simErr := execABI.Errors["BatchDispatchSimulation"]
	if len(payload) < 4 || !bytes.Equal(payload[:4], simErr.ID[:4]) {
		reason, _ := abi.UnpackRevert(payload)
		return nil, &domain.SimulationRevertError{Index: -1, Op: "batchDispatchSimulate", Reason: reason, Data: payload}
	}
	out, err := simErr.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, fmt.Errorf("euler: decoding simulation: %w", err)
	}
	var results []simulationResult
	if err := convert(out[0], &results); err != nil {
		return nil, fmt.Errorf("euler: decoding simulation: %w", err)
	}
	return results, nil
}

func (c *Client) call(ctx context.Context, from, to common.Address, a abi.ABI, method string, args ...any) ([]any, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("euler: packing %s: %w", method, err)
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("euler: calling %s on %s: %w", method, to.Hex(), err)
	}
	out, err := a.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("euler: decoding %s: %w", method, err)
	}
	return out, nil
}

func (c *Client) callAddress(ctx context.Context, to common.Address, a abi.ABI, method string, args ...any) (common.Address, error) {
	out, err := c.call(ctx, common.Address{}, to, a, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// convert copies an ABI-decoded anonymous struct into a named one.
func convert(in any, dst any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("type mismatch: %v", r)
		}
	}()
	abi.ConvertType(in, dst)
	return nil
}

// revertData extracts the raw revert payload from a JSON-RPC call error.
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	s, ok := de.ErrorData().(string)
	if !ok {
		return nil, false
	}
	b, decErr := hexutil.Decode(s)
	return b, decErr == nil
}

func isRevert(err error) bool {
	if _, ok := revertData(err); ok {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
