package strategy

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Assets groups the token identities the strategy operates on. The pair
// component tokens are resolved once, at construction, from the respective
// pair contracts and never change afterwards.
type Assets struct {
	// Want is the staked LP asset the strategy grows on behalf of the vault.
	Want ethcommon.Address
	// LPToken0 and LPToken1 are the two components underlying Want.
	LPToken0 ethcommon.Address
	LPToken1 ethcommon.Address
	// Output is the reward token paid by the farm.
	Output ethcommon.Address
	// Native is the chain's base asset used as the fee settlement currency.
	Native ethcommon.Address
	// SecondaryPair is the second AMM pair the strategy also farms, with its
	// two component tokens.
	SecondaryPair   ethcommon.Address
	SecondaryToken0 ethcommon.Address
	SecondaryToken1 ethcommon.Address
}

// Route is an ordered sequence of asset identifiers describing a multi-hop
// conversion through the router.
type Route []ethcommon.Address

// Clone returns a defensive copy of the route.
func (r Route) Clone() Route {
	if r == nil {
		return nil
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// FeeSchedule is the fee configuration owned by the external access-control
// collaborator. The three fee values are fractions of FeeDenominator and
// subdivide the harvested slice routed through native-asset settlement.
type FeeSchedule struct {
	CallFee       uint64
	StrategistFee uint64
	ProtocolFee   uint64
	Strategist    ethcommon.Address
	Treasury      ethcommon.Address
}

// FeeConfig exposes the fee schedule consumed read-only at harvest time.
type FeeConfig interface {
	Schedule(ctx context.Context) (FeeSchedule, error)
}

// TokenLedger provides balance reads and token movements from the strategy's
// perspective. Implementations are expected to fail the whole call on any
// transfer that cannot complete.
type TokenLedger interface {
	BalanceOf(ctx context.Context, token, holder ethcommon.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, to ethcommon.Address, amount *big.Int) error
	Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) error
}

// Farm is the external staking contract tracking per-pool principal and
// accruing reward. Reward settlement occurs as a side effect of any deposit
// call, including zero-amount deposits.
type Farm interface {
	Address() ethcommon.Address
	Deposit(ctx context.Context, pool uint64, amount *big.Int) error
	Withdraw(ctx context.Context, pool uint64, amount *big.Int) error
	EmergencyWithdraw(ctx context.Context, pool uint64) error
	StakedBalance(ctx context.Context, pool uint64, who ethcommon.Address) (*big.Int, error)
	PendingReward(ctx context.Context, pool uint64, who ethcommon.Address) (*big.Int, error)
}

// Router is the external AMM contract performing token swaps and
// liquidity-pool minting along a multi-hop path.
type Router interface {
	Address() ethcommon.Address
	SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []ethcommon.Address, to ethcommon.Address, deadline *big.Int) ([]*big.Int, error)
	AddLiquidity(ctx context.Context, tokenA, tokenB ethcommon.Address, amountADesired, amountBDesired, amountAMin, amountBMin *big.Int, to ethcommon.Address, deadline *big.Int) (amountA, amountB, liquidity *big.Int, err error)
	// GetAmountsOut quotes a swap without executing it. The quote may fail;
	// callers on the estimate path must degrade rather than propagate.
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []ethcommon.Address) ([]*big.Int, error)
}

// Pair exposes the component tokens of an AMM pair, read once at construction.
type Pair interface {
	Token0(ctx context.Context) (ethcommon.Address, error)
	Token1(ctx context.Context) (ethcommon.Address, error)
}

// Quote distinguishes a successful router price quote from an unavailable
// one. An unavailable quote carries a zero value.
type Quote struct {
	Value     *big.Int
	Available bool
}

// rewardMethodConfigurer is implemented by farm adapters whose pending-reward
// view name varies by deployment and can be rebound at runtime.
type rewardMethodConfigurer interface {
	SetPendingRewardMethod(name string) error
}
