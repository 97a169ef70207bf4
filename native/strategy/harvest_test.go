package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"compounder/core/events"
)

func TestHarvestZeroRewardIsNoop(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)

	caller := makeAddr(0x30)
	if err := f.engine.Harvest(context.Background(), caller); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got := f.emitter.byType(events.TypeHarvested); len(got) != 0 {
		t.Fatalf("expected no harvest event, got %d", len(got))
	}
	if staked := f.farm.stakedIn(primaryPool); staked.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected stake unchanged, got %s", staked)
	}
	if !f.engine.LastHarvest().IsZero() {
		t.Fatalf("expected last harvest untouched")
	}
}

func TestHarvestEndToEnd(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)
	f.farm.setPending(primaryPool, 100)

	now := time.Unix(1_700_000_000, 0)
	f.engine.SetClock(func() time.Time { return now })

	caller := makeAddr(0x30)
	if err := f.engine.Harvest(context.Background(), caller); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	// 4.5% of 100 reward truncates to 4 converted to native; the remaining
	// 96 compound 1:1 into 96 want via the two component swaps.
	harvested := f.emitter.byType(events.TypeHarvested)
	if len(harvested) != 1 {
		t.Fatalf("expected one harvest event, got %d", len(harvested))
	}
	evt := harvested[0].(events.Harvested)
	if evt.WantCreated.Cmp(big.NewInt(96)) != 0 {
		t.Fatalf("unexpected want created: %s", evt.WantCreated)
	}
	if evt.Caller != [20]byte(caller) {
		t.Fatalf("unexpected caller in harvest event: %x", evt.Caller)
	}
	if staked := f.farm.stakedIn(primaryPool); staked.Cmp(big.NewInt(1_096)) != 0 {
		t.Fatalf("unexpected primary stake: %s", staked)
	}
	if evt.Total.Cmp(big.NewInt(1_096)) != 0 {
		t.Fatalf("unexpected total in harvest event: %s", evt.Total)
	}
	if !f.engine.LastHarvest().Equal(now) {
		t.Fatalf("unexpected last harvest: %v", f.engine.LastHarvest())
	}
	if reward := f.ledger.balance(f.reward, f.strategyAddr); reward.Sign() != 0 {
		t.Fatalf("expected reward fully consumed, got %s", reward)
	}
}

func TestHarvestFeeSplitConservation(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000_000)
	f.farm.setPending(primaryPool, 1_000_000)

	caller := makeAddr(0x30)
	if err := f.engine.Harvest(context.Background(), caller); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	// 45,000 native out of the 4.5% slice at the mock's 1:1 rate.
	nativeTotal := big.NewInt(45_000)
	callAmount := f.ledger.balance(f.native, caller)
	strategistAmount := f.ledger.balance(f.native, f.strategist)
	treasuryAmount := f.ledger.balance(f.native, f.treasury)
	if callAmount.Cmp(big.NewInt(4_995)) != 0 {
		t.Fatalf("unexpected call fee: %s", callAmount)
	}
	if strategistAmount.Cmp(big.NewInt(5_040)) != 0 {
		t.Fatalf("unexpected strategist fee: %s", strategistAmount)
	}
	// Half of the 777/1000 protocol fee.
	if treasuryAmount.Cmp(big.NewInt(17_482)) != 0 {
		t.Fatalf("unexpected treasury fee: %s", treasuryAmount)
	}

	// Whatever was not paid out funded the secondary position, minus the
	// truncation dust that stays in custody.
	adds := f.emitter.byType(events.TypeSecondaryLiquidity)
	if len(adds) != 1 {
		t.Fatalf("expected one secondary liquidity event, got %d", len(adds))
	}
	secondary := adds[0].(events.SecondaryLiquidity)
	consumed := new(big.Int).Add(secondary.AmountA, secondary.AmountB)
	dust := f.ledger.balance(f.native, f.strategyAddr)

	sum := new(big.Int).Add(callAmount, strategistAmount)
	sum.Add(sum, treasuryAmount)
	sum.Add(sum, consumed)
	sum.Add(sum, dust)
	if sum.Cmp(nativeTotal) != 0 {
		t.Fatalf("fee split not conserved: %s != %s", sum, nativeTotal)
	}

	if got := f.emitter.byType(events.TypeTreasuryTransfer); len(got) != 1 {
		t.Fatalf("expected one treasury event, got %d", len(got))
	}
	if staked := f.farm.stakedIn(secondaryPool); staked.Cmp(secondary.Liquidity) != 0 {
		t.Fatalf("expected minted secondary liquidity staked, got %s want %s", staked, secondary.Liquidity)
	}
	if got := f.emitter.byType(events.TypeSecondaryStaked); len(got) != 1 {
		t.Fatalf("expected one secondary stake event, got %d", len(got))
	}
}

func TestHarvestSkipsSelfSwapForPrimaryComponent(t *testing.T) {
	f := newFixture(t, fixtureOptions{lp0IsReward: true})
	f.deposit(t, 1_000)
	f.farm.setPending(primaryPool, 1_000)

	if err := f.engine.Harvest(context.Background(), makeAddr(0x30)); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	for _, call := range f.router.swaps {
		if call.path[len(call.path)-1] == f.reward {
			t.Fatalf("unexpected swap into reward token: %v", call.path)
		}
	}
	// The untouched reward half pairs directly with the swapped component.
	adds := f.emitter.byType(events.TypeHarvested)
	if len(adds) != 1 {
		t.Fatalf("expected one harvest event, got %d", len(adds))
	}
}

func TestSecondarySkipComparesRewardToken(t *testing.T) {
	// The secondary-module skip deliberately compares against the reward
	// token, so a secondary component equal to the reward token is consumed
	// as-is while a component equal to native is still swapped.
	f := newFixture(t, fixtureOptions{secondary0IsReward: true})
	f.deposit(t, 1_000)
	f.farm.setPending(primaryPool, 100_000)

	if err := f.engine.Harvest(context.Background(), makeAddr(0x30)); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	for _, call := range f.router.swaps {
		if len(call.path) == 2 && call.path[0] == f.native && call.path[1] == f.reward {
			t.Fatalf("expected no native to reward swap, got %v", call.path)
		}
	}
	adds := f.emitter.byType(events.TypeSecondaryLiquidity)
	if len(adds) != 1 {
		t.Fatalf("expected one secondary liquidity event, got %d", len(adds))
	}
}

func TestHarvestBlockedWhilePaused(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)
	if err := f.engine.Pause(context.Background(), f.manager); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.engine.Harvest(context.Background(), makeAddr(0x30)); !errors.Is(err, errPaused) {
		t.Fatalf("expected errPaused, got %v", err)
	}
}

func TestManagerHarvestRequiresManager(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	err := f.engine.ManagerHarvest(context.Background(), makeAddr(0x30), makeAddr(0x30))
	if !errors.Is(err, errNotManager) {
		t.Fatalf("expected errNotManager, got %v", err)
	}
}

func TestManagerHarvestPaysConfiguredRecipient(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)
	f.farm.setPending(primaryPool, 1_000_000)

	recipient := makeAddr(0x31)
	if err := f.engine.ManagerHarvest(context.Background(), f.manager, recipient); err != nil {
		t.Fatalf("manager harvest: %v", err)
	}
	if got := f.ledger.balance(f.native, recipient); got.Sign() == 0 {
		t.Fatalf("expected call fee routed to recipient")
	}
}

func TestBeforeDepositHarvestsWhenEnabled(t *testing.T) {
	f := newFixture(t, fixtureOptions{harvestOnDeposit: true})
	f.deposit(t, 1_000)
	f.farm.setPending(primaryPool, 1_000_000)

	origin := makeAddr(0x32)
	if err := f.engine.BeforeDeposit(context.Background(), f.vault, origin); err != nil {
		t.Fatalf("before deposit: %v", err)
	}
	if got := f.emitter.byType(events.TypeHarvested); len(got) != 1 {
		t.Fatalf("expected one harvest event, got %d", len(got))
	}
	if got := f.ledger.balance(f.native, origin); got.Sign() == 0 {
		t.Fatalf("expected call fee routed to transaction origin")
	}
}

func TestBeforeDepositRequiresVaultWhenEnabled(t *testing.T) {
	f := newFixture(t, fixtureOptions{harvestOnDeposit: true})
	err := f.engine.BeforeDeposit(context.Background(), makeAddr(0x30), makeAddr(0x30))
	if !errors.Is(err, errNotVault) {
		t.Fatalf("expected errNotVault, got %v", err)
	}
}

func TestBeforeDepositNoopWhenDisabled(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	if err := f.engine.BeforeDeposit(context.Background(), makeAddr(0x30), makeAddr(0x30)); err != nil {
		t.Fatalf("before deposit: %v", err)
	}
}

func TestHarvestAbortsWhenSettlementFails(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)
	f.farm.depositErr = errors.New("farm offline")

	if err := f.engine.Harvest(context.Background(), makeAddr(0x30)); err == nil {
		t.Fatalf("expected error from failed settlement")
	}
	if got := f.emitter.byType(events.TypeHarvested); len(got) != 0 {
		t.Fatalf("expected no harvest event, got %d", len(got))
	}
}
