package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/swappath"
)

var (
	eulerAddr  = common.HexToAddress("0x27182842E098f60e3D576794A5bFFb0777E025d3")
	liquidator = common.HexToAddress("0x1000000000000000000000000000000000000001")
	violator   = common.HexToAddress("0x2000000000000000000000000000000000000002")

	tokenUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	tokenDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	tokenWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pTokenDAI = common.HexToAddress("0x3000000000000000000000000000000000000003")

	eUSDC  = common.HexToAddress("0xe000000000000000000000000000000000000001")
	eDAI   = common.HexToAddress("0xe000000000000000000000000000000000000002")
	eWETH  = common.HexToAddress("0xe000000000000000000000000000000000000003")
	ePDAI  = common.HexToAddress("0xe000000000000000000000000000000000000004")
	ether1 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), ether1)
}

// fakeChain is a tiny lending market. Every asset trades 1:1 and is worth
// 1 ETH; the liquidation bonus is 5%; venue swaps charge their fee tiers.
type fakeChain struct {
	mu sync.Mutex

	eTokens   map[common.Address]common.Address
	pTokens   map[common.Address]common.Address
	decimals  map[common.Address]uint8
	allowance *big.Int

	maxRepay    *big.Int
	health      float64
	repaid      *big.Int
	simulations int

	st *ledger

	// simulate overrides the market model when set.
	simulate func(ops []domain.Operation) ([]domain.StepResult, error)
}

type ledger struct {
	eBal   map[common.Address]map[common.Address]*big.Int
	wallet map[common.Address]map[common.Address]*big.Int
	debt   map[common.Address]map[common.Address]*big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		eTokens: map[common.Address]common.Address{
			tokenUSDC: eUSDC, tokenDAI: eDAI, tokenWETH: eWETH, pTokenDAI: ePDAI,
		},
		pTokens:   map[common.Address]common.Address{tokenDAI: pTokenDAI},
		decimals:  map[common.Address]uint8{tokenUSDC: 18, tokenDAI: 18, tokenWETH: 18, pTokenDAI: 18},
		allowance: new(big.Int),
		maxRepay:  units(5),
		health:    0.96,
		repaid:    new(big.Int),
		st: &ledger{
			eBal:   map[common.Address]map[common.Address]*big.Int{},
			wallet: map[common.Address]map[common.Address]*big.Int{},
			debt:   map[common.Address]map[common.Address]*big.Int{},
		},
	}
}

func (f *fakeChain) EulerAddress() common.Address { return eulerAddr }

func (f *fakeChain) CheckLiquidation(_ context.Context, _ common.Address, _ domain.Position) (domain.LiquidationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.LiquidationStatus{
		Repay:        new(big.Int).Set(f.maxRepay),
		Yield:        new(big.Int).Div(f.maxRepay, big.NewInt(20)),
		HealthScore:  big.NewInt(int64(f.health * 1e6)),
		BaseDiscount: big.NewInt(5),
		Discount:     big.NewInt(5),
	}, nil
}

func (f *fakeChain) ETokenOf(_ context.Context, u common.Address) (common.Address, error) {
	return f.eTokens[u], nil
}

func (f *fakeChain) PTokenOf(_ context.Context, u common.Address) (common.Address, error) {
	return f.pTokens[u], nil
}

func (f *fakeChain) PTokenUnderlying(_ context.Context, token common.Address) (common.Address, error) {
	for u, p := range f.pTokens {
		if p == token {
			return u, nil
		}
	}
	return common.Address{}, nil
}

func (f *fakeChain) Decimals(_ context.Context, token common.Address) (uint8, error) {
	d, ok := f.decimals[token]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return d, nil
}

func (f *fakeChain) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) BatchCall(_ common.Address, _ []domain.Operation) (common.Address, []byte, error) {
	return eulerAddr, []byte{0x01}, nil
}

func (f *fakeChain) ApproveCall(_ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{0x09, 0x5e, 0xa7, 0xb3}, nil
}

func (f *fakeChain) SimulateBatch(_ context.Context, from common.Address, ops []domain.Operation) ([]domain.StepResult, error) {
	f.mu.Lock()
	f.simulations++
	override := f.simulate
	st := f.st.clone()
	health, repaid := f.health, new(big.Int).Set(f.repaid)
	f.mu.Unlock()

	if override != nil {
		return override(ops)
	}
	out, _, _ := f.run(st, from, ops, health, repaid)
	return out, nil
}

// commit executes ops for real, as a mined batch would.
func (f *fakeChain) commit(from common.Address, ops []domain.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.st.clone()
	steps, health, repaid := f.run(st, from, ops, f.health, f.repaid)
	for _, s := range steps {
		if !s.Success {
			return errors.New(s.Reason)
		}
	}
	f.st, f.health, f.repaid = st, health, repaid
	return nil
}

func (f *fakeChain) run(st *ledger, from common.Address, ops []domain.Operation, health float64, repaid *big.Int) ([]domain.StepResult, float64, *big.Int) {
	underlyingOf := func(e common.Address) common.Address {
		for u, et := range f.eTokens {
			if et == e {
				return u
			}
		}
		return common.Address{}
	}

	out := make([]domain.StepResult, len(ops))
	for i, op := range ops {
		res := domain.StepResult{Success: true}
		fail := func(reason string) { res = domain.StepResult{Reason: reason} }

		switch o := op.(type) {
		case domain.BalanceOfUnderlying:
			res.Amount = new(big.Int).Set(st.get(st.eBal, o.EToken, o.Account))
		case domain.GetPriceFull:
			res.Amount = new(big.Int).Set(ether1)
		case domain.Liquidate:
			if o.Repay.Sign() == 0 || new(big.Int).Add(repaid, o.Repay).Cmp(f.maxRepay) > 0 {
				fail("e/liq/excessive-repay-amount")
				break
			}
			seized := new(big.Int).Mul(o.Repay, big.NewInt(105))
			seized.Quo(seized, big.NewInt(100))
			st.add(st.eBal, f.eTokens[o.Collateral], from, seized)
			st.add(st.debt, o.Underlying, from, o.Repay)
			repaid = new(big.Int).Add(repaid, o.Repay)
			r, _ := new(big.Float).Quo(new(big.Float).SetInt(repaid), new(big.Float).SetInt(f.maxRepay)).Float64()
			health = 0.96 + (1.25-0.96)*r
		case domain.Withdraw:
			amt := st.take(st.eBal, o.EToken, from, o.Amount)
			st.add(st.wallet, underlyingOf(o.EToken), from, amt)
		case domain.PTokenUnwrap:
			p := f.pTokens[o.Underlying]
			if st.get(st.wallet, p, from).Cmp(o.Amount) < 0 {
				fail("e/insufficient-balance")
				break
			}
			st.take(st.wallet, p, from, o.Amount)
			st.add(st.wallet, o.Underlying, from, o.Amount)
		case domain.Deposit:
			amt := st.take(st.wallet, underlyingOf(o.EToken), from, o.Amount)
			st.add(st.eBal, o.EToken, from, amt)
		case domain.Burn:
			u := underlyingOf(o.EToken)
			amt := st.get(st.eBal, o.EToken, from)
			if d := st.get(st.debt, u, from); d.Cmp(amt) < 0 {
				amt = d
			}
			st.take(st.eBal, o.EToken, from, amt)
			st.take(st.debt, u, from, amt)
		case domain.SwapAndRepayUni:
			tokens, fees, err := swappath.Decode(o.Path)
			if err != nil {
				fail("malformed path")
				break
			}
			var fee int64
			for _, tier := range fees {
				fee += int64(tier)
			}
			tokOut, tokIn := tokens[0], tokens[len(tokens)-1]
			need := st.get(st.debt, tokOut, from)
			cost := new(big.Int).Mul(need, big.NewInt(1_000_000+fee))
			cost.Quo(cost, big.NewInt(1_000_000))
			if st.get(st.eBal, f.eTokens[tokIn], from).Cmp(cost) < 0 {
				fail("STF")
				break
			}
			st.take(st.eBal, f.eTokens[tokIn], from, cost)
			st.take(st.debt, tokOut, from, need)
		case domain.Swap1Inch:
			if st.get(st.eBal, f.eTokens[o.UnderlyingIn], from).Cmp(o.Amount) < 0 {
				fail("e/insufficient-balance")
				break
			}
			st.take(st.eBal, f.eTokens[o.UnderlyingIn], from, o.Amount)
			got := new(big.Int).Mul(o.Amount, big.NewInt(999))
			got.Quo(got, big.NewInt(1000))
			st.add(st.eBal, f.eTokens[o.UnderlyingOut], from, got)
		case domain.ExitMarket:
			if st.get(st.debt, o.Underlying, from).Sign() > 0 {
				fail("e/outstanding-borrow")
			}
		case domain.TransferFromMax:
			amt := st.take(st.eBal, o.EToken, o.From, domain.MaxUint256)
			st.add(st.eBal, o.EToken, o.To, amt)
		default:
			fail("unsupported")
		}
		out[i] = res
	}
	return out, health, repaid
}

func (l *ledger) clone() *ledger {
	cp := func(m map[common.Address]map[common.Address]*big.Int) map[common.Address]map[common.Address]*big.Int {
		out := make(map[common.Address]map[common.Address]*big.Int, len(m))
		for k, inner := range m {
			o := make(map[common.Address]*big.Int, len(inner))
			for a, v := range inner {
				o[a] = new(big.Int).Set(v)
			}
			out[k] = o
		}
		return out
	}
	return &ledger{eBal: cp(l.eBal), wallet: cp(l.wallet), debt: cp(l.debt)}
}

func (l *ledger) get(m map[common.Address]map[common.Address]*big.Int, k, a common.Address) *big.Int {
	if v, ok := m[k][a]; ok {
		return v
	}
	return new(big.Int)
}

func (l *ledger) add(m map[common.Address]map[common.Address]*big.Int, k, a common.Address, v *big.Int) {
	if m[k] == nil {
		m[k] = map[common.Address]*big.Int{}
	}
	m[k][a] = new(big.Int).Add(l.get(m, k, a), v)
}

// take removes up to v (everything for MaxUint256) and returns the amount.
func (l *ledger) take(m map[common.Address]map[common.Address]*big.Int, k, a common.Address, v *big.Int) *big.Int {
	cur := l.get(m, k, a)
	amt := new(big.Int).Set(v)
	if amt.Cmp(cur) > 0 {
		amt.Set(cur)
	}
	if m[k] == nil {
		m[k] = map[common.Address]*big.Int{}
	}
	m[k][a] = new(big.Int).Sub(cur, amt)
	return amt
}

type fakeTransactor struct {
	mu    sync.Mutex
	calls []common.Address
	fail  bool
}

func (t *fakeTransactor) Transact(_ context.Context, to common.Address, _ []byte, _ uint64) (*types.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, to)
	status := types.ReceiptStatusSuccessful
	if t.fail {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: common.HexToHash("0xabc")}, nil
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
