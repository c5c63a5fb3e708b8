package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Protocol is the lending protocol as seen by the search. Every read is live;
// nothing is cached between calls.
type Protocol interface {
	// EulerAddress is the spender the protocol pulls tokens through.
	EulerAddress() common.Address
	CheckLiquidation(ctx context.Context, liquidator common.Address, pos Position) (LiquidationStatus, error)
	ETokenOf(ctx context.Context, underlying common.Address) (common.Address, error)
	PTokenOf(ctx context.Context, underlying common.Address) (common.Address, error)
	// PTokenUnderlying returns the wrapped asset of token, or the zero
	// address when token is not a protected token.
	PTokenUnderlying(ctx context.Context, token common.Address) (common.Address, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// SimulateBatch runs ops atomically without committing and returns one
	// result per op.
	SimulateBatch(ctx context.Context, from common.Address, ops []Operation) ([]StepResult, error)
	// BatchCall encodes ops as a batch dispatch with deferred liquidity
	// checks for from, returning the call target and calldata.
	BatchCall(from common.Address, ops []Operation) (common.Address, []byte, error)
	// ApproveCall encodes an ERC20 approval.
	ApproveCall(spender common.Address, amount *big.Int) ([]byte, error)
}

// Node is the subset of an execution client the submitters need.
// *ethclient.Client satisfies it.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// QuoteSource prices a swap by input amount.
type QuoteSource interface {
	Quote(ctx context.Context, from, to common.Address, amount *big.Int) (SourceQuote, error)
}

// SourceQuote is a raw aggregator response.
type SourceQuote struct {
	FromAmount *big.Int
	ToAmount   *big.Int
	Payload    []byte
}

// Transactor signs and submits a single call, waiting for its receipt.
type Transactor interface {
	Transact(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error)
}

// PositionFeed streams liquidatable accounts.
type PositionFeed interface {
	Subscribe(ctx context.Context) (<-chan Account, error)
}
