package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// DefaultGasLimit is used for batches when no override is configured.
const DefaultGasLimit uint64 = 1_200_000

// TxSigner signs transactions for one account.
type TxSigner interface {
	Address() common.Address
	ChainID() *big.Int
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// TxOptions overrides what the network would pick. A zero FeeMultiplier or
// GasLimit and a negative Nonce leave the network's value in place.
type TxOptions struct {
	FeeMultiplier float64
	Nonce         int64
	GasLimit      uint64
	PollInterval  time.Duration
}

// TxSender builds, signs and submits dynamic-fee transactions and waits for
// their receipts. It implements domain.Transactor.
type TxSender struct {
	node   domain.Node
	signer TxSigner
	opts   TxOptions
	logger *slog.Logger
}

// NewTxSender creates a TxSender.
func NewTxSender(node domain.Node, signer TxSigner, opts TxOptions, logger *slog.Logger) *TxSender {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &TxSender{
		node:   node,
		signer: signer,
		opts:   opts,
		logger: logger.With(slog.String("component", "tx_sender")),
	}
}

// From returns the sending account.
func (s *TxSender) From() common.Address { return s.signer.Address() }

// Build signs a call to `to`. gasLimit 0 means the configured override or
// DefaultGasLimit. The nonce is read from the pending state on every call
// unless overridden.
func (s *TxSender) Build(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	nonce, err := s.nonce(ctx)
	if err != nil {
		return nil, err
	}
	tip, maxFee, err := s.fees(ctx)
	if err != nil {
		return nil, err
	}
	if gasLimit == 0 {
		gasLimit = s.opts.GasLimit
	}
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := s.signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	return signed, nil
}

// Send broadcasts a signed transaction to the public mempool.
func (s *TxSender) Send(ctx context.Context, tx *types.Transaction) error {
	if err := s.node.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("executor: send %s: %w", tx.Hash().Hex(), err)
	}
	s.logger.InfoContext(ctx, "transaction sent",
		slog.String("hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
		slog.Uint64("gas", tx.Gas()),
		slog.String("max_fee", tx.GasFeeCap().String()),
	)
	return nil
}

// WaitMined polls for the receipt of hash until it exists or ctx ends.
func (s *TxSender) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.node.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("executor: receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Transact builds, sends and waits for one transaction.
func (s *TxSender) Transact(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	tx, err := s.Build(ctx, to, data, gasLimit)
	if err != nil {
		return nil, err
	}
	if err := s.Send(ctx, tx); err != nil {
		return nil, err
	}
	return s.WaitMined(ctx, tx.Hash())
}

func (s *TxSender) nonce(ctx context.Context) (uint64, error) {
	if s.opts.Nonce >= 0 {
		return uint64(s.opts.Nonce), nil
	}
	n, err := s.node.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		return 0, fmt.Errorf("executor: pending nonce: %w", err)
	}
	return n, nil
}

// fees returns the priority fee and fee cap. The cap leaves room for the
// base fee to double before the transaction is priced out.
func (s *TxSender) fees(ctx context.Context) (tip, maxFee *big.Int, err error) {
	tip, err = s.node.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("executor: suggest tip: %w", err)
	}
	head, err := s.node.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("executor: latest header: %w", err)
	}
	base := head.BaseFee
	if base == nil {
		base = new(big.Int)
	}
	maxFee = new(big.Int).Mul(base, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	if m := s.opts.FeeMultiplier; m > 0 && m != 1 {
		mul := decimal.NewFromFloat(m)
		tip = decimal.NewFromBigInt(tip, 0).Mul(mul).BigInt()
		maxFee = decimal.NewFromBigInt(maxFee, 0).Mul(mul).BigInt()
	}
	return tip, maxFee, nil
}

var _ domain.Transactor = (*TxSender)(nil)
