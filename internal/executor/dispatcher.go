package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
)

const (
	// defaultInclusionBlocks bounds the wait for a private transaction when
	// the relay was given no max block.
	defaultInclusionBlocks = 25
	defaultLockTTL         = 5 * time.Minute
)

// Relay is a private transaction relay.
type Relay interface {
	// CallBundle simulates signed transactions on top of blockNumber and
	// fails if any of them reverts.
	CallBundle(ctx context.Context, rawTxs [][]byte, blockNumber uint64) error
	// SendPrivateTransaction submits a signed transaction. maxBlock 0 leaves
	// the relay's default in place.
	SendPrivateTransaction(ctx context.Context, rawTx []byte, maxBlock uint64) (common.Hash, error)
}

// Searcher re-runs a search, used before falling back to a public send.
type Searcher interface {
	FindBest(ctx context.Context, pos domain.Position) (domain.SearchResult, error)
}

// DispatcherConfig controls the submission paths.
type DispatcherConfig struct {
	MaxBlocks       uint64
	DisableFallback bool
	LockTTL         time.Duration
}

// Dispatcher submits a winning plan, privately when a relay is configured,
// and publicly otherwise or as a fallback.
type Dispatcher struct {
	cfg      DispatcherConfig
	protocol domain.Protocol
	node     domain.Node
	sender   *TxSender
	relay    Relay
	searcher Searcher
	locks    domain.LockManager
	reporter domain.Reporter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. relay, reporter and m may be nil.
func NewDispatcher(
	cfg DispatcherConfig,
	protocol domain.Protocol,
	node domain.Node,
	sender *TxSender,
	relay Relay,
	searcher Searcher,
	locks domain.LockManager,
	reporter domain.Reporter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Dispatcher{
		cfg:      cfg,
		protocol: protocol,
		node:     node,
		sender:   sender,
		relay:    relay,
		searcher: searcher,
		locks:    locks,
		reporter: reporter,
		metrics:  m,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Execute submits res.Plan. The signer lock is held for the whole call, so
// two liquidations from one account never race for a nonce.
func (d *Dispatcher) Execute(ctx context.Context, res domain.SearchResult) (domain.ExecutionResult, error) {
	if !res.Found() {
		return domain.ExecutionResult{}, domain.ErrNoOpportunity
	}

	unlock, err := d.locks.Acquire(ctx, "signer:"+d.sender.From().Hex(), d.cfg.LockTTL)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("executor: signer lock: %w", err)
	}
	defer unlock()

	if d.relay == nil {
		return d.executePublic(ctx, res)
	}

	out, err := d.executePrivate(ctx, res)
	if err == nil || !errors.Is(err, domain.ErrRelayFailure) {
		return out, err
	}

	d.logger.WarnContext(ctx, "relay failed", slog.String("error", err.Error()), slog.Bool("fallback", !d.cfg.DisableFallback))
	if d.cfg.DisableFallback {
		d.report(ctx, res.Best.Position, fmt.Sprintf("Relay error, fallback disabled: %v", err))
		return out, err
	}
	d.metrics.RelayFallback()
	d.report(ctx, res.Best.Position, fmt.Sprintf("Relay error, falling back to regular tx: %v", err))

	fresh, err := d.searcher.FindBest(ctx, res.Best.Position)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if !fresh.Found() {
		return domain.ExecutionResult{}, domain.ErrNoOpportunity
	}
	out, err = d.executePublic(ctx, fresh)
	out.FellBack = true
	return out, err
}

func (d *Dispatcher) executePublic(ctx context.Context, res domain.SearchResult) (domain.ExecutionResult, error) {
	out := domain.ExecutionResult{Candidate: *res.Best}
	to, data, err := d.protocol.BatchCall(d.sender.From(), res.Plan.Ops)
	if err != nil {
		return out, fmt.Errorf("executor: encode batch: %w", err)
	}

	receipt, err := d.sender.Transact(ctx, to, data, 0)
	if err != nil {
		d.metrics.Submission("public", false)
		return out, err
	}
	out.TxHash, out.Receipt = receipt.TxHash, receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		d.metrics.Submission("public", false)
		return out, &domain.ExecutionRevertError{TxHash: receipt.TxHash}
	}
	d.metrics.Submission("public", true)
	return out, nil
}

func (d *Dispatcher) executePrivate(ctx context.Context, res domain.SearchResult) (domain.ExecutionResult, error) {
	out := domain.ExecutionResult{Candidate: *res.Best, Private: true}
	fail := func(stage string, err error) (domain.ExecutionResult, error) {
		d.metrics.Submission("private", false)
		return out, &domain.RelayError{Stage: stage, Err: err}
	}

	to, data, err := d.protocol.BatchCall(d.sender.From(), res.Plan.Ops)
	if err != nil {
		return out, fmt.Errorf("executor: encode batch: %w", err)
	}
	block, err := d.node.BlockNumber(ctx)
	if err != nil {
		return fail("sign", err)
	}
	tx, err := d.sender.Build(ctx, to, data, 0)
	if err != nil {
		return fail("sign", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fail("sign", err)
	}
	out.TxHash = tx.Hash()

	if err := d.relay.CallBundle(ctx, [][]byte{raw}, block+1); err != nil {
		return fail("simulate", err)
	}

	var maxBlock uint64
	if d.cfg.MaxBlocks > 0 {
		maxBlock = block + d.cfg.MaxBlocks
	}
	if _, err := d.relay.SendPrivateTransaction(ctx, raw, maxBlock); err != nil {
		return fail("submit", err)
	}
	d.logger.InfoContext(ctx, "private transaction submitted",
		slog.String("hash", out.TxHash.Hex()),
		slog.Uint64("block", block),
		slog.Uint64("max_block", maxBlock),
	)

	deadline := maxBlock
	if deadline == 0 {
		deadline = block + defaultInclusionBlocks
	}
	receipt, err := d.waitIncluded(ctx, out.TxHash, deadline)
	if err != nil {
		return fail("wait", err)
	}
	out.Receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		d.metrics.Submission("private", false)
		return out, &domain.ExecutionRevertError{TxHash: receipt.TxHash}
	}
	d.metrics.Submission("private", true)
	return out, nil
}

// waitIncluded polls for a receipt until one appears or the chain passes
// deadline, after which the relay is considered to have dropped the tx.
func (d *Dispatcher) waitIncluded(ctx context.Context, hash common.Hash, deadline uint64) (*types.Receipt, error) {
	ticker := time.NewTicker(d.sender.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.node.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		head, err := d.node.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		if head > deadline {
			return nil, fmt.Errorf("not included by block %d", deadline)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) report(ctx context.Context, pos domain.Position, msg string) {
	if d.reporter == nil {
		return
	}
	d.reporter.Report(ctx, domain.Event{
		Type:    domain.EventError,
		Account: pos.Violator.Hex(),
		Error:   msg,
		At:      time.Now().UTC(),
	})
}
