package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
)

var wad = big.NewInt(1e18)

// Simulator measures what a plan would earn by running it, bracketed by two
// balance reads and a price read, in one atomic simulation.
type Simulator struct {
	protocol domain.Protocol
	metrics  *metrics.Metrics
}

// NewSimulator creates a Simulator. m may be nil.
func NewSimulator(protocol domain.Protocol, m *metrics.Metrics) *Simulator {
	return &Simulator{protocol: protocol, metrics: m}
}

// Yield returns the candidate's gain in the reference asset, 18 decimals.
// The price used is the one read inside the same simulation, after the plan
// has run.
func (s *Simulator) Yield(ctx context.Context, pc PlanContext, c domain.LiquidationCandidate) (*big.Int, error) {
	done := s.metrics.TimeSimulation()
	defer done()

	target := pc.Collateral.TargetEToken()
	probe := domain.BalanceOfUnderlying{EToken: target, Account: pc.Receiver}

	plan := BuildPlan(pc, c)
	ops := make([]domain.Operation, 0, len(plan.Ops)+3)
	ops = append(ops, probe)
	ops = append(ops, plan.Ops...)
	ops = append(ops, domain.GetPriceFull{Underlying: pc.Collateral.Collateral}, probe)

	steps, err := simulate(ctx, s.protocol, pc.Liquidator, ops)
	if err != nil {
		s.metrics.SimulationFailed()
		return nil, err
	}

	n := len(steps)
	before, price, after := steps[0].Amount, steps[n-2].Amount, steps[n-1].Amount
	if before == nil || price == nil || after == nil {
		s.metrics.SimulationFailed()
		return nil, fmt.Errorf("strategy: simulation probes returned no value")
	}

	delta := new(big.Int).Sub(after, before)
	if delta.Sign() <= 0 {
		s.metrics.SimulationFailed()
		return nil, fmt.Errorf("strategy: repay %s via %s: %w", c.Repay, c.Route.Hex(), domain.ErrNoYield)
	}

	return toReference(delta, pc.Collateral.Decimals, price), nil
}

// toReference converts amount of a token with the given decimals into the
// reference asset at price (18-decimal reference units per whole token).
func toReference(amount *big.Int, decimals uint8, price *big.Int) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case decimals < 18:
		out.Mul(out, pow10(18-int(decimals)))
	case decimals > 18:
		out.Quo(out, pow10(int(decimals)-18))
	}
	out.Mul(out, price)
	return out.Quo(out, wad)
}

// simulate runs ops and rejects the whole result if any step failed.
func simulate(ctx context.Context, protocol domain.Protocol, from common.Address, ops []domain.Operation) ([]domain.StepResult, error) {
	steps, err := protocol.SimulateBatch(ctx, from, ops)
	if err != nil {
		return nil, err
	}
	if len(steps) != len(ops) {
		return nil, fmt.Errorf("strategy: %d simulation results for %d steps", len(steps), len(ops))
	}
	for i, st := range steps {
		if !st.Success {
			return nil, &domain.SimulationRevertError{Index: i, Op: ops[i].OpName(), Reason: st.Reason, Data: st.Data}
		}
	}
	return steps, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
