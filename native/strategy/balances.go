package strategy

import (
	"context"
	"math/big"
)

// TotalManagedAssets returns the want balance under management: local custody
// plus the principal staked in the farm's primary pool. Safe to call anytime,
// including while paused.
func (e *Engine) TotalManagedAssets(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalManagedAssets(ctx)
}

// LocalWantBalance returns the want balance held directly by the strategy.
func (e *Engine) LocalWantBalance(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
}

// StakedWantBalance returns the principal portion of the strategy's position
// in the farm's primary pool, ignoring pending uncredited reward.
func (e *Engine) StakedWantBalance(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.farm.StakedBalance(ctx, e.primaryPool, e.self)
}

// RewardAvailable returns the unharvested reward-token quantity the farm
// reports for the strategy.
func (e *Engine) RewardAvailable(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.farm.PendingReward(ctx, e.primaryPool, e.self)
}

// CallReward estimates the native-asset reward a caller would earn by
// triggering a harvest now. A failing router quote degrades to a zero
// estimate rather than propagating; this read path never fails on quote
// errors.
func (e *Engine) CallReward(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, err := e.farm.PendingReward(ctx, e.primaryPool, e.self)
	if err != nil {
		return nil, err
	}
	schedule, err := e.fees.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	quote := e.quoteNative(ctx, pending)
	feeSlice := mulDiv(quote.Value, harvestFeeNumerator, FeeDenominator)
	return mulDiv(feeSlice, schedule.CallFee, FeeDenominator), nil
}

// quoteNative asks the router what the given reward amount is worth in the
// native asset. An unavailable quote yields a zero-valued result.
func (e *Engine) quoteNative(ctx context.Context, amount *big.Int) Quote {
	if amount == nil || amount.Sign() <= 0 {
		return Quote{Value: big.NewInt(0)}
	}
	amounts, err := e.router.GetAmountsOut(ctx, amount, e.outputToNativeRoute)
	if err != nil || len(amounts) == 0 || amounts[len(amounts)-1] == nil {
		return Quote{Value: big.NewInt(0)}
	}
	return Quote{Value: new(big.Int).Set(amounts[len(amounts)-1]), Available: true}
}

func (e *Engine) totalManagedAssets(ctx context.Context) (*big.Int, error) {
	local, err := e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
	if err != nil {
		return nil, err
	}
	staked, err := e.farm.StakedBalance(ctx, e.primaryPool, e.self)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(local, staked), nil
}
