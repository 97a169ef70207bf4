package strategy

import (
	"context"
	"fmt"

	"compounder/core/events"
)

// addSecondaryLiquidity consumes the native balance left after fee
// distribution to mint a secondary-pair position and stake it into the farm's
// secondary pool.
//
// The swap skip deliberately compares each destination against the reward
// token rather than the native asset being spent, mirroring the primary
// liquidity step's condition. See the route wiring in NewEngine.
func (e *Engine) addSecondaryLiquidity(ctx context.Context) error {
	nativeBal, err := e.ledger.BalanceOf(ctx, e.assets.Native, e.self)
	if err != nil {
		return err
	}
	half := halve(nativeBal)
	if half.Sign() == 0 {
		return nil
	}

	if e.assets.SecondaryToken0 != e.assets.Output {
		if _, err := e.router.SwapExactTokensForTokens(ctx, half, minSwapOut, e.nativeToSecondary0Route, e.self, noDeadline); err != nil {
			return fmt.Errorf("swap native to secondary0: %w", err)
		}
	}
	if e.assets.SecondaryToken1 != e.assets.Output {
		if _, err := e.router.SwapExactTokensForTokens(ctx, half, minSwapOut, e.nativeToSecondary1Route, e.self, noDeadline); err != nil {
			return fmt.Errorf("swap native to secondary1: %w", err)
		}
	}

	bal0, err := e.ledger.BalanceOf(ctx, e.assets.SecondaryToken0, e.self)
	if err != nil {
		return err
	}
	bal1, err := e.ledger.BalanceOf(ctx, e.assets.SecondaryToken1, e.self)
	if err != nil {
		return err
	}
	usedA, usedB, liquidity, err := e.router.AddLiquidity(ctx, e.assets.SecondaryToken0, e.assets.SecondaryToken1, bal0, bal1, minSwapOut, minSwapOut, e.self, noDeadline)
	if err != nil {
		return fmt.Errorf("add secondary liquidity: %w", err)
	}
	e.emitter.Emit(events.SecondaryLiquidity{AmountA: usedA, AmountB: usedB, Liquidity: liquidity})

	pairBal, err := e.ledger.BalanceOf(ctx, e.assets.SecondaryPair, e.self)
	if err != nil {
		return err
	}
	if pairBal.Sign() == 0 {
		return nil
	}
	if err := e.farm.Deposit(ctx, e.secondaryPool, pairBal); err != nil {
		return fmt.Errorf("stake secondary liquidity: %w", err)
	}
	e.emitter.Emit(events.SecondaryStaked{Amount: pairBal})
	return nil
}
