package euler

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const liquidationABIJSON = `[
  {"type":"function","name":"checkLiquidation","stateMutability":"nonpayable",
   "inputs":[{"name":"liquidator","type":"address"},{"name":"violator","type":"address"},{"name":"underlying","type":"address"},{"name":"collateral","type":"address"}],
   "outputs":[{"name":"liqOpp","type":"tuple","components":[
     {"name":"repay","type":"uint256"},{"name":"yield","type":"uint256"},{"name":"healthScore","type":"uint256"},
     {"name":"baseDiscount","type":"uint256"},{"name":"discount","type":"uint256"},{"name":"conversionRate","type":"uint256"}]}]},
  {"type":"function","name":"liquidate","stateMutability":"nonpayable",
   "inputs":[{"name":"violator","type":"address"},{"name":"underlying","type":"address"},{"name":"collateral","type":"address"},{"name":"repay","type":"uint256"},{"name":"minYield","type":"uint256"}],
   "outputs":[]}
]`

const marketsABIJSON = `[
  {"type":"function","name":"underlyingToEToken","stateMutability":"view","inputs":[{"name":"underlying","type":"address"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"underlyingToDToken","stateMutability":"view","inputs":[{"name":"underlying","type":"address"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"underlyingToPToken","stateMutability":"view","inputs":[{"name":"underlying","type":"address"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"exitMarket","stateMutability":"nonpayable","inputs":[{"name":"subAccountId","type":"uint256"},{"name":"oldMarket","type":"address"}],"outputs":[]}
]`

const eTokenABIJSON = `[
  {"type":"function","name":"balanceOfUnderlying","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"subAccountId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"subAccountId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"subAccountId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"transferFromMax","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

const pTokenABIJSON = `[
  {"type":"function","name":"underlying","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const execABIJSON = `[
  {"type":"function","name":"batchDispatch","stateMutability":"nonpayable",
   "inputs":[{"name":"items","type":"tuple[]","components":[{"name":"allowError","type":"bool"},{"name":"proxyAddr","type":"address"},{"name":"data","type":"bytes"}]},
             {"name":"deferLiquidityChecks","type":"address[]"}],
   "outputs":[]},
  {"type":"function","name":"batchDispatchSimulate","stateMutability":"nonpayable",
   "inputs":[{"name":"items","type":"tuple[]","components":[{"name":"allowError","type":"bool"},{"name":"proxyAddr","type":"address"},{"name":"data","type":"bytes"}]},
             {"name":"deferLiquidityChecks","type":"address[]"}],
   "outputs":[]},
  {"type":"error","name":"BatchDispatchSimulation",
   "inputs":[{"name":"simulation","type":"tuple[]","components":[{"name":"success","type":"bool"},{"name":"result","type":"bytes"}]}]},
  {"type":"function","name":"pTokenUnWrap","stateMutability":"nonpayable","inputs":[{"name":"underlying","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getPriceFull","stateMutability":"view","inputs":[{"name":"underlying","type":"address"}],
   "outputs":[{"name":"twap","type":"uint256"},{"name":"twapPeriod","type":"uint256"},{"name":"currPrice","type":"uint256"}]}
]`

const swapABIJSON = `[
  {"type":"function","name":"swap1Inch","stateMutability":"nonpayable",
   "inputs":[{"name":"params","type":"tuple","components":[
     {"name":"subAccountIdIn","type":"uint256"},{"name":"subAccountIdOut","type":"uint256"},
     {"name":"underlyingIn","type":"address"},{"name":"underlyingOut","type":"address"},
     {"name":"amount","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"payload","type":"bytes"}]}],
   "outputs":[]},
  {"type":"function","name":"swapAndRepayUni","stateMutability":"nonpayable",
   "inputs":[{"name":"params","type":"tuple","components":[
     {"name":"subAccountIdIn","type":"uint256"},{"name":"subAccountIdOut","type":"uint256"},
     {"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"},
     {"name":"deadline","type":"uint256"},{"name":"path","type":"bytes"}]},
     {"name":"targetDebt","type":"uint256"}],
   "outputs":[]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	liquidationABI = mustParse(liquidationABIJSON)
	marketsABI     = mustParse(marketsABIJSON)
	eTokenABI      = mustParse(eTokenABIJSON)
	pTokenABI      = mustParse(pTokenABIJSON)
	execABI        = mustParse(execABIJSON)
	swapABI        = mustParse(swapABIJSON)
	erc20ABI       = mustParse(erc20ABIJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("euler: bad ABI definition: " + err.Error())
	}
	return parsed
}

// batchItem mirrors the protocol's EulerBatchItem.
type batchItem struct {
	AllowError bool
	ProxyAddr  common.Address
	Data       []byte
}

// simulationResult mirrors one entry of the BatchDispatchSimulation error.
type simulationResult struct {
	Success bool
	Result  []byte
}

type liquidationOpportunity struct {
	Repay          *big.Int
	Yield          *big.Int
	HealthScore    *big.Int
	BaseDiscount   *big.Int
	Discount       *big.Int
	ConversionRate *big.Int
}

type swap1InchParams struct {
	SubAccountIdIn   *big.Int
	SubAccountIdOut  *big.Int
	UnderlyingIn     common.Address
	UnderlyingOut    common.Address
	Amount           *big.Int
	AmountOutMinimum *big.Int
	Payload          []byte
}

type swapUniExactOutputParams struct {
	SubAccountIdIn  *big.Int
	SubAccountIdOut *big.Int
	AmountOut       *big.Int
	AmountInMaximum *big.Int
	Deadline        *big.Int
	Path            []byte
}
