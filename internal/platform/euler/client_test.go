package euler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

var (
	addrs = Addresses{
		Euler:       common.HexToAddress("0x27182842E098f60e3D576794A5bFFb0777E025d3"),
		Markets:     common.HexToAddress("0x3520d5a913427E6F0D6A83E07ccD4A4da316e4d3"),
		Liquidation: common.HexToAddress("0xf43ce1d09050BAfd6980dD43Cde2aB9F18C85b34"),
		Exec:        common.HexToAddress("0x59828FdF7ee634AaaD3f58B19fDBa3b03E2D9d80"),
		Swap:        common.HexToAddress("0x7123C8cBBD76c5C7fCC9f7150f23179bec0bA341"),
	}
	liquidator = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	eTST       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tst        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// rpcError is a JSON-RPC error carrying revert data, as returned by a node.
type rpcError struct {
	msg  string
	data string
}

func (e *rpcError) Error() string          { return e.msg }
func (e *rpcError) ErrorData() interface{} { return e.data }

type fakeCaller struct {
	fn func(msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return f.fn(msg)
}

func newTestClient(fn func(msg ethereum.CallMsg) ([]byte, error)) *Client {
	return New(&fakeCaller{fn: fn}, addrs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func simulationRevert(t *testing.T, results []simulationResult) error {
	t.Helper()
	simErr := execABI.Errors["BatchDispatchSimulation"]
	enc, err := simErr.Inputs.Pack(results)
	require.NoError(t, err)
	payload := append(append([]byte{}, simErr.ID[:4]...), enc...)
	return &rpcError{msg: "execution reverted", data: hexutil.Encode(payload)}
}

func TestSimulateBatchDecodesProbes(t *testing.T) {
	balBefore, err := eTokenABI.Methods["balanceOfUnderlying"].Outputs.Pack(big.NewInt(100))
	require.NoError(t, err)
	price, err := execABI.Methods["getPriceFull"].Outputs.Pack(big.NewInt(1), big.NewInt(1800), big.NewInt(2e17))
	require.NoError(t, err)
	balAfter, err := eTokenABI.Methods["balanceOfUnderlying"].Outputs.Pack(big.NewInt(250))
	require.NoError(t, err)

	c := newTestClient(func(msg ethereum.CallMsg) ([]byte, error) {
		assert.Equal(t, addrs.Exec, *msg.To)
		assert.Equal(t, liquidator, msg.From)
		assert.True(t, bytes.HasPrefix(msg.Data, execABI.Methods["batchDispatchSimulate"].ID))
		return nil, simulationRevert(t, []simulationResult{
			{Success: true, Result: balBefore},
			{Success: true, Result: nil},
			{Success: true, Result: price},
			{Success: true, Result: balAfter},
		})
	})

	ops := []domain.Operation{
		domain.BalanceOfUnderlying{EToken: eTST, Account: liquidator},
		domain.ExitMarket{Underlying: tst},
		domain.GetPriceFull{Underlying: tst},
		domain.BalanceOfUnderlying{EToken: eTST, Account: liquidator},
	}
	steps, err := c.SimulateBatch(context.Background(), liquidator, ops)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, int64(100), steps[0].Amount.Int64())
	assert.Nil(t, steps[1].Amount)
	assert.Equal(t, int64(2e17), steps[2].Amount.Int64())
	assert.Equal(t, int64(250), steps[3].Amount.Int64())
}

func TestSimulateBatchReportsFailedStep(t *testing.T) {
	reason, err := abiErrorString("e/collateral-violation")
	require.NoError(t, err)

	c := newTestClient(func(ethereum.CallMsg) ([]byte, error) {
		return nil, simulationRevert(t, []simulationResult{
			{Success: true},
			{Success: false, Result: reason},
		})
	})

	steps, err := c.SimulateBatch(context.Background(), liquidator, []domain.Operation{
		domain.ExitMarket{Underlying: tst},
		domain.Burn{EToken: eTST, Amount: domain.MaxUint256},
	})
	require.NoError(t, err)
	assert.False(t, steps[1].Success)
	assert.Equal(t, "e/collateral-violation", steps[1].Reason)
}

func TestSimulateBatchUnexpectedRevert(t *testing.T) {
	reason, err := abiErrorString("e/batch/unauthorized")
	require.NoError(t, err)

	c := newTestClient(func(ethereum.CallMsg) ([]byte, error) {
		return nil, &rpcError{msg: "execution reverted", data: hexutil.Encode(reason)}
	})
	_, err = c.SimulateBatch(context.Background(), liquidator, []domain.Operation{domain.ExitMarket{Underlying: tst}})
	assert.ErrorIs(t, err, domain.ErrSimulationRevert)

	c = newTestClient(func(ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("connection refused")
	})
	_, err = c.SimulateBatch(context.Background(), liquidator, []domain.Operation{domain.ExitMarket{Underlying: tst}})
	assert.ErrorContains(t, err, "connection refused")
}

func TestBatchCallEncodesItems(t *testing.T) {
	c := newTestClient(nil)
	ops := []domain.Operation{
		domain.Liquidate{Violator: liquidator, Underlying: tst, Collateral: tst, Repay: big.NewInt(5)},
		domain.Burn{EToken: eTST, Amount: domain.MaxUint256},
		domain.ExitMarket{Underlying: tst},
	}

	to, data, err := c.BatchCall(liquidator, ops)
	require.NoError(t, err)
	assert.Equal(t, addrs.Exec, to)

	method := execABI.Methods["batchDispatch"]
	require.True(t, bytes.HasPrefix(data, method.ID))
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)

	var items []batchItem
	require.NoError(t, convert(args[0], &items))
	require.Len(t, items, 3)
	assert.Equal(t, addrs.Liquidation, items[0].ProxyAddr)
	assert.Equal(t, eTST, items[1].ProxyAddr)
	assert.Equal(t, addrs.Markets, items[2].ProxyAddr)
	for _, it := range items {
		assert.False(t, it.AllowError)
	}
	assert.True(t, bytes.HasPrefix(items[0].Data, liquidationABI.Methods["liquidate"].ID))
	assert.Equal(t, []common.Address{liquidator}, args[1])
}

func TestPTokenUnderlying(t *testing.T) {
	wrapped := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	enc, err := pTokenABI.Methods["underlying"].Outputs.Pack(wrapped)
	require.NoError(t, err)

	c := newTestClient(func(ethereum.CallMsg) ([]byte, error) { return enc, nil })
	got, err := c.PTokenUnderlying(context.Background(), tst)
	require.NoError(t, err)
	assert.Equal(t, wrapped, got)

	c = newTestClient(func(ethereum.CallMsg) ([]byte, error) {
		return nil, &rpcError{msg: "execution reverted", data: "0x"}
	})
	got, err = c.PTokenUnderlying(context.Background(), tst)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, got)

	c = newTestClient(func(ethereum.CallMsg) ([]byte, error) { return nil, nil })
	got, err = c.PTokenUnderlying(context.Background(), tst)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, got)
}

func TestCheckLiquidation(t *testing.T) {
	enc, err := liquidationABI.Methods["checkLiquidation"].Outputs.Pack(liquidationOpportunity{
		Repay:          big.NewInt(4e18),
		Yield:          big.NewInt(3e18),
		HealthScore:    big.NewInt(96e16),
		BaseDiscount:   big.NewInt(2e16),
		Discount:       big.NewInt(3e16),
		ConversionRate: big.NewInt(1e18),
	})
	require.NoError(t, err)

	c := newTestClient(func(msg ethereum.CallMsg) ([]byte, error) {
		assert.Equal(t, addrs.Liquidation, *msg.To)
		return enc, nil
	})
	st, err := c.CheckLiquidation(context.Background(), liquidator, domain.Position{Violator: eTST, Underlying: tst, Collateral: tst})
	require.NoError(t, err)
	assert.True(t, st.Liquidatable())
	assert.Equal(t, big.NewInt(4e18), st.Repay)
	assert.Equal(t, big.NewInt(96e16), st.HealthScore)
}

// abiErrorString encodes Error(string) revert data.
func abiErrorString(msg string) ([]byte, error) {
	def := mustParse(`[{"type":"error","name":"Error","inputs":[{"name":"","type":"string"}]}]`)
	enc, err := def.Errors["Error"].Inputs.Pack(msg)
	if err != nil {
		return nil, err
	}
	id := def.Errors["Error"].ID
	return append(append([]byte{}, id[:4]...), enc...), nil
}
