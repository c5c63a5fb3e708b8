package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// MaxUint256 is the protocol's "all of it" amount.
var MaxUint256 = new(big.Int).Set(math.MaxBig256)

// Operation is one step of a batch. The set of variants is closed; adapters
// switch on the concrete type.
type Operation interface {
	OpName() string
	isOperation()
}

// Liquidate seizes collateral from Violator in exchange for taking on Repay
// of its Underlying debt.
type Liquidate struct {
	Violator   common.Address
	Underlying common.Address
	Collateral common.Address
	Repay      *big.Int
	MinYield   *big.Int
}

// Withdraw redeems Amount of underlying from an eToken, sub-account 0.
type Withdraw struct {
	EToken common.Address
	Amount *big.Int
}

// PTokenUnwrap converts protected tokens back into Underlying.
type PTokenUnwrap struct {
	Underlying common.Address
	Amount     *big.Int
}

// Deposit supplies Amount of underlying into an eToken, sub-account 0.
type Deposit struct {
	EToken common.Address
	Amount *big.Int
}

// Burn repays the matching debt with eToken balance, sub-account 0.
type Burn struct {
	EToken common.Address
	Amount *big.Int
}

// Swap1Inch trades through the aggregator using a pre-fetched payload.
type Swap1Inch struct {
	UnderlyingIn     common.Address
	UnderlyingOut    common.Address
	Amount           *big.Int
	AmountOutMinimum *big.Int
	Payload          []byte
}

// SwapAndRepayUni buys the debt asset on the venue along Path and repays it.
type SwapAndRepayUni struct {
	Path            []byte
	AmountOut       *big.Int
	AmountInMaximum *big.Int
	Deadline        *big.Int
	TargetDebt      *big.Int
}

// ExitMarket removes Underlying from the liquidator's entered markets.
type ExitMarket struct {
	Underlying common.Address
}

// TransferFromMax moves the whole eToken balance of From to To.
type TransferFromMax struct {
	EToken common.Address
	From   common.Address
	To     common.Address
}

// BalanceOfUnderlying reads Account's underlying balance on EToken. Only used
// to bracket simulations.
type BalanceOfUnderlying struct {
	EToken  common.Address
	Account common.Address
}

// GetPriceFull reads the protocol's price for Underlying. Only used inside
// simulations.
type GetPriceFull struct {
	Underlying common.Address
}

func (Liquidate) OpName() string           { return "liquidate" }
func (Withdraw) OpName() string            { return "withdraw" }
func (PTokenUnwrap) OpName() string        { return "pTokenUnWrap" }
func (Deposit) OpName() string             { return "deposit" }
func (Burn) OpName() string                { return "burn" }
func (Swap1Inch) OpName() string           { return "swap1Inch" }
func (SwapAndRepayUni) OpName() string     { return "swapAndRepayUni" }
func (ExitMarket) OpName() string          { return "exitMarket" }
func (TransferFromMax) OpName() string     { return "transferFromMax" }
func (BalanceOfUnderlying) OpName() string { return "balanceOfUnderlying" }
func (GetPriceFull) OpName() string        { return "getPriceFull" }

func (Liquidate) isOperation()           {}
func (Withdraw) isOperation()            {}
func (PTokenUnwrap) isOperation()        {}
func (Deposit) isOperation()             {}
func (Burn) isOperation()                {}
func (Swap1Inch) isOperation()           {}
func (SwapAndRepayUni) isOperation()     {}
func (ExitMarket) isOperation()          {}
func (TransferFromMax) isOperation()     {}
func (BalanceOfUnderlying) isOperation() {}
func (GetPriceFull) isOperation()        {}

// BatchPlan is the ordered, all-or-nothing sequence of operations for one
// liquidation attempt.
type BatchPlan struct {
	Ops []Operation
}

// First returns the first operation, or nil for an empty plan.
func (p BatchPlan) First() Operation {
	if len(p.Ops) == 0 {
		return nil
	}
	return p.Ops[0]
}

// Last returns the last operation, or nil for an empty plan.
func (p BatchPlan) Last() Operation {
	if len(p.Ops) == 0 {
		return nil
	}
	return p.Ops[len(p.Ops)-1]
}

// Names lists the operation names in order.
func (p BatchPlan) Names() []string {
	out := make([]string, len(p.Ops))
	for i, op := range p.Ops {
		out[i] = op.OpName()
	}
	return out
}

// StepResult is the outcome of one operation inside a simulated batch.
// Amount is decoded for read probes: the balance for BalanceOfUnderlying and
// the current price for GetPriceFull.
type StepResult struct {
	Success bool
	Data    []byte
	Reason  string
	Amount  *big.Int
}
