package strategy

import (
	"context"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"compounder/core/events"
)

// Harvest runs a full harvest/compound cycle with the caller as the call-fee
// recipient. Operable only while active.
func (e *Engine) Harvest(ctx context.Context, caller ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.operable(); err != nil {
		return err
	}
	return e.harvest(ctx, caller)
}

// ManagerHarvest runs a harvest cycle with an explicit call-fee recipient.
func (e *Engine) ManagerHarvest(ctx context.Context, caller, callFeeRecipient ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if err := e.operable(); err != nil {
		return err
	}
	return e.harvest(ctx, callFeeRecipient)
}

// harvest is the shared cycle behind every entry point:
//
//  1. A zero-amount farm deposit forces the farm to settle pending reward
//     into local custody.
//  2. A zero settled reward balance is a silent no-op.
//  3. Fees are extracted: 4.5% of the reward balance is converted to native
//     and split between the call-fee recipient, the strategist, the
//     treasury, and the secondary liquidity position.
//  4. The remaining reward balance is compounded into want liquidity.
//  5. The newly formed want is restaked and the harvest event is emitted
//     with the want created before restaking.
func (e *Engine) harvest(ctx context.Context, callFeeRecipient ethcommon.Address) error {
	if err := e.farm.Deposit(ctx, e.primaryPool, big.NewInt(0)); err != nil {
		return fmt.Errorf("settle pending reward: %w", err)
	}
	rewardBal, err := e.ledger.BalanceOf(ctx, e.assets.Output, e.self)
	if err != nil {
		return err
	}
	if rewardBal.Sign() == 0 {
		// Reward settlement latency or an already-harvested position;
		// expected, not an error.
		return nil
	}

	if err := e.chargeFees(ctx, callFeeRecipient); err != nil {
		return err
	}
	if err := e.addLiquidity(ctx); err != nil {
		return err
	}

	created, err := e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
	if err != nil {
		return err
	}
	if err := e.depositLocal(ctx); err != nil {
		return err
	}

	e.lastHarvest = e.now()
	total, err := e.totalManagedAssets(ctx)
	if err != nil {
		return err
	}
	e.emitter.Emit(events.Harvested{
		Caller:      [20]byte(callFeeRecipient),
		WantCreated: created,
		Total:       total,
		At:          e.lastHarvest,
	})
	return nil
}

// chargeFees converts the fee-eligible slice of the reward balance to native
// and distributes it. Whatever native remains after the call, strategist, and
// treasury transfers funds the secondary liquidity position.
func (e *Engine) chargeFees(ctx context.Context, callFeeRecipient ethcommon.Address) error {
	schedule, err := e.fees.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("read fee schedule: %w", err)
	}

	rewardBal, err := e.ledger.BalanceOf(ctx, e.assets.Output, e.self)
	if err != nil {
		return err
	}
	toNative := mulDiv(rewardBal, harvestFeeNumerator, FeeDenominator)
	if toNative.Sign() > 0 {
		if _, err := e.router.SwapExactTokensForTokens(ctx, toNative, minSwapOut, e.outputToNativeRoute, e.self, noDeadline); err != nil {
			return fmt.Errorf("swap reward to native: %w", err)
		}
	}

	nativeBal, err := e.ledger.BalanceOf(ctx, e.assets.Native, e.self)
	if err != nil {
		return err
	}

	callAmount := mulDiv(nativeBal, schedule.CallFee, FeeDenominator)
	if callAmount.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, e.assets.Native, callFeeRecipient, callAmount); err != nil {
			return fmt.Errorf("pay call fee: %w", err)
		}
	}

	strategistAmount := mulDiv(nativeBal, schedule.StrategistFee, FeeDenominator)
	if strategistAmount.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, e.assets.Native, schedule.Strategist, strategistAmount); err != nil {
			return fmt.Errorf("pay strategist fee: %w", err)
		}
	}

	// Half of the protocol fee goes to the treasury; the retained half plus
	// any unallocated native funds the secondary position.
	protocolAmount := mulDiv(nativeBal, schedule.ProtocolFee, FeeDenominator)
	treasuryAmount := halve(protocolAmount)
	if treasuryAmount.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, e.assets.Native, schedule.Treasury, treasuryAmount); err != nil {
			return fmt.Errorf("pay treasury fee: %w", err)
		}
		e.emitter.Emit(events.TreasuryTransfer{Amount: treasuryAmount})
	}

	return e.addSecondaryLiquidity(ctx)
}

// addLiquidity compounds the post-fee reward balance into want liquidity:
// half is swapped into each component token, then the full resulting
// balances are supplied. Conversions whose destination equals the reward
// token are skipped. Dust left by the router stays in local custody.
func (e *Engine) addLiquidity(ctx context.Context) error {
	rewardBal, err := e.ledger.BalanceOf(ctx, e.assets.Output, e.self)
	if err != nil {
		return err
	}
	half := halve(rewardBal)
	if half.Sign() == 0 {
		return nil
	}

	if e.assets.LPToken0 != e.assets.Output {
		if _, err := e.router.SwapExactTokensForTokens(ctx, half, minSwapOut, e.outputToLP0Route, e.self, noDeadline); err != nil {
			return fmt.Errorf("swap reward to lp0: %w", err)
		}
	}
	if e.assets.LPToken1 != e.assets.Output {
		if _, err := e.router.SwapExactTokensForTokens(ctx, half, minSwapOut, e.outputToLP1Route, e.self, noDeadline); err != nil {
			return fmt.Errorf("swap reward to lp1: %w", err)
		}
	}

	lp0Bal, err := e.ledger.BalanceOf(ctx, e.assets.LPToken0, e.self)
	if err != nil {
		return err
	}
	lp1Bal, err := e.ledger.BalanceOf(ctx, e.assets.LPToken1, e.self)
	if err != nil {
		return err
	}
	if _, _, _, err := e.router.AddLiquidity(ctx, e.assets.LPToken0, e.assets.LPToken1, lp0Bal, lp1Bal, minSwapOut, minSwapOut, e.self, noDeadline); err != nil {
		return fmt.Errorf("add want liquidity: %w", err)
	}
	return nil
}
