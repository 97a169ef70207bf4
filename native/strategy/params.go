package strategy

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	// FeeDenominator is the fixed denominator for the call, strategist, and
	// protocol fee fractions.
	FeeDenominator = 1000
	// harvestFeeNumerator is the protocol-level slice of each harvested
	// reward balance that is converted to native and distributed as fees:
	// 45/1000 = 4.5%.
	harvestFeeNumerator = 45
	// WithdrawalFeeDefault is the default withdrawal fee applied to external
	// withdrawals, in units of WithdrawalFeeMax.
	WithdrawalFeeDefault = 10
	// WithdrawalFeeMax is the denominator for withdrawal fee fractions.
	WithdrawalFeeMax = 10_000
)

var (
	// minSwapOut is the nominal non-zero minimum-received guard passed to
	// every swap and liquidity call. It accepts any non-destructive price
	// rather than bounding slippage.
	minSwapOut = big.NewInt(1)
	// noDeadline is the sentinel deadline passed to router calls; the router
	// treats it as always valid.
	noDeadline = new(big.Int).SetUint64(^uint64(0))
	// maxApproval is the unbounded allowance granted to the farm and router
	// while the strategy is active.
	maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// validate checks that a route starts at from, terminates at to, and has at
// least two hops.
func (r Route) validate(from, to ethcommon.Address) error {
	if len(r) < 2 {
		return errRouteTooShort
	}
	if r[0] != from {
		return fmt.Errorf("%w: starts at %s, want %s", errRouteEndpoints, r[0].Hex(), from.Hex())
	}
	if r[len(r)-1] != to {
		return fmt.Errorf("%w: ends at %s, want %s", errRouteEndpoints, r[len(r)-1].Hex(), to.Hex())
	}
	return nil
}

// mulDiv computes amount * num / den with truncation toward zero. Dust from
// the truncation stays in local custody and is swept into future cycles.
func mulDiv(amount *big.Int, num, den uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || num == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(num))
	return out.Quo(out, new(big.Int).SetUint64(den))
}

// halve returns amount / 2, truncated.
func halve(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Rsh(amount, 1)
}
