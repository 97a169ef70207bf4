package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestTotalManagedAssetsSumsLocalAndStaked(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.deposit(t, 1_000)
	f.ledger.credit(f.want, f.strategyAddr, big.NewInt(250))

	total, err := f.engine.TotalManagedAssets(context.Background())
	if err != nil {
		t.Fatalf("total managed assets: %v", err)
	}
	if total.Cmp(big.NewInt(1_250)) != 0 {
		t.Fatalf("unexpected total: %s", total)
	}

	local, err := f.engine.LocalWantBalance(context.Background())
	if err != nil {
		t.Fatalf("local balance: %v", err)
	}
	if local.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected local balance: %s", local)
	}

	staked, err := f.engine.StakedWantBalance(context.Background())
	if err != nil {
		t.Fatalf("staked balance: %v", err)
	}
	if staked.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected staked balance: %s", staked)
	}
}

func TestRewardAvailableReportsFarmPending(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.farm.setPending(primaryPool, 4_200)

	pending, err := f.engine.RewardAvailable(context.Background())
	if err != nil {
		t.Fatalf("reward available: %v", err)
	}
	if pending.Cmp(big.NewInt(4_200)) != 0 {
		t.Fatalf("unexpected pending reward: %s", pending)
	}
}

func TestCallRewardEstimate(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.farm.setPending(primaryPool, 100_000)

	// 1:1 quote: 4.5% slice of 100,000 = 4,500; call fee 111/1000 = 499.
	reward, err := f.engine.CallReward(context.Background())
	if err != nil {
		t.Fatalf("call reward: %v", err)
	}
	if reward.Cmp(big.NewInt(499)) != 0 {
		t.Fatalf("unexpected call reward: %s", reward)
	}
}

func TestCallRewardDegradesOnQuoteFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.farm.setPending(primaryPool, 100_000)
	f.router.quoteErr = errors.New("pair has no liquidity")

	reward, err := f.engine.CallReward(context.Background())
	if err != nil {
		t.Fatalf("call reward should not fail on quote errors: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("expected zero estimate, got %s", reward)
	}
}

func TestCallRewardZeroPending(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	reward, err := f.engine.CallReward(context.Background())
	if err != nil {
		t.Fatalf("call reward: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("expected zero estimate, got %s", reward)
	}
}
