package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/crypto"
	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var (
	gwei      = big.NewInt(1_000_000_000)
	eulerAddr = common.HexToAddress("0x27182842E098f60e3D576794A5bFFb0777E025d3")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testKey, 1)
	require.NoError(t, err)
	return s
}

// fakeNode mines public transactions immediately with a configurable status.
// The head advances by one on every BlockNumber call.
type fakeNode struct {
	mu       sync.Mutex
	block    uint64
	nonce    uint64
	status   uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	misses   int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		block:    100,
		nonce:    5,
		status:   types.ReceiptStatusSuccessful,
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (n *fakeNode) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (n *fakeNode) BlockNumber(context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b := n.block
	n.block++
	return b, nil
}

func (n *fakeNode) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: new(big.Int).Mul(big.NewInt(10), gwei)}, nil
}

func (n *fakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonce, nil
}

func (n *fakeNode) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Mul(big.NewInt(2), gwei), nil
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tx)
	n.mine(tx)
	return nil
}

func (n *fakeNode) mine(tx *types.Transaction) {
	n.receipts[tx.Hash()] = &types.Receipt{TxHash: tx.Hash(), Status: n.status, BlockNumber: new(big.Int).SetUint64(n.block)}
	n.nonce++
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.misses > 0 {
		n.misses--
		return nil, ethereum.NotFound
	}
	r, ok := n.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (n *fakeNode) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// fakeRelay records calls; when include is set a private transaction is
// mined on node.
type fakeRelay struct {
	node      *fakeNode
	bundleErr error
	sendErr   error
	include   bool

	bundleBlocks []uint64
	maxBlocks    []uint64
}

func (r *fakeRelay) CallBundle(_ context.Context, rawTxs [][]byte, block uint64) error {
	r.bundleBlocks = append(r.bundleBlocks, block)
	if len(rawTxs) != 1 {
		return errors.New("expected one tx")
	}
	return r.bundleErr
}

func (r *fakeRelay) SendPrivateTransaction(_ context.Context, raw []byte, maxBlock uint64) (common.Hash, error) {
	r.maxBlocks = append(r.maxBlocks, maxBlock)
	if r.sendErr != nil {
		return common.Hash{}, r.sendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	if r.include {
		r.node.mu.Lock()
		r.node.mine(tx)
		r.node.mu.Unlock()
	}
	return tx.Hash(), nil
}

// batchProtocol only encodes batches; every other call panics.
type batchProtocol struct {
	domain.Protocol
}

func (batchProtocol) BatchCall(_ common.Address, ops []domain.Operation) (common.Address, []byte, error) {
	return eulerAddr, []byte{byte(len(ops))}, nil
}

type fakeSearcher struct {
	calls int
	res   domain.SearchResult
	err   error
}

func (s *fakeSearcher) FindBest(context.Context, domain.Position) (domain.SearchResult, error) {
	s.calls++
	return s.res, s.err
}

type recordingReporter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingReporter) Report(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func foundResult() domain.SearchResult {
	best := domain.LiquidationCandidate{
		Position: domain.Position{
			Violator:   common.HexToAddress("0x2000000000000000000000000000000000000002"),
			Underlying: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			Collateral: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		},
		Fraction: 98,
		Repay:    big.NewInt(1000),
		Yield:    big.NewInt(10),
	}
	return domain.SearchResult{
		State: domain.SearchFound,
		Best:  &best,
		Plan: domain.BatchPlan{Ops: []domain.Operation{
			domain.Liquidate{Repay: best.Repay, MinYield: new(big.Int)},
			domain.ExitMarket{Underlying: best.Position.Underlying},
		}},
	}
}
