package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestRouteSettersRejectShortPaths(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	err := f.engine.SetOutputToNativeRoute(f.manager, Route{f.reward})
	if !errors.Is(err, errRouteTooShort) {
		t.Fatalf("expected errRouteTooShort, got %v", err)
	}
	err = f.engine.SetOutputToLP0Route(f.manager, Route{})
	if !errors.Is(err, errRouteTooShort) {
		t.Fatalf("expected errRouteTooShort, got %v", err)
	}
}

func TestRouteSettersValidateEndpoints(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	err := f.engine.SetOutputToNativeRoute(f.manager, Route{f.native, f.reward})
	if !errors.Is(err, errRouteEndpoints) {
		t.Fatalf("expected errRouteEndpoints, got %v", err)
	}
	err = f.engine.SetOutputToLP1Route(f.manager, Route{f.reward, f.t0})
	if !errors.Is(err, errRouteEndpoints) {
		t.Fatalf("expected errRouteEndpoints, got %v", err)
	}
}

func TestRouteSettersRequireManager(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	err := f.engine.SetOutputToNativeRoute(makeAddr(0x30), Route{f.reward, f.native})
	if !errors.Is(err, errNotManager) {
		t.Fatalf("expected errNotManager, got %v", err)
	}
}

func TestRouteSetterAcceptsRerouting(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	hop := makeAddr(0x40)
	if err := f.engine.SetOutputToNativeRoute(f.manager, Route{f.reward, hop, f.native}); err != nil {
		t.Fatalf("set route: %v", err)
	}
	outputToNative, _, _, _, _ := f.engine.Routes()
	if len(outputToNative) != 3 || outputToNative[1] != hop {
		t.Fatalf("unexpected route: %v", outputToNative)
	}
}

func TestSetHarvestOnDepositCouplesWithdrawalFee(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if err := f.engine.SetHarvestOnDeposit(f.manager, true); err != nil {
		t.Fatalf("enable harvest on deposit: %v", err)
	}
	if !f.engine.HarvestOnDeposit() || f.engine.WithdrawalFee() != 0 {
		t.Fatalf("expected zero withdrawal fee while enabled")
	}

	if err := f.engine.SetHarvestOnDeposit(f.manager, false); err != nil {
		t.Fatalf("disable harvest on deposit: %v", err)
	}
	if f.engine.WithdrawalFee() != WithdrawalFeeDefault {
		t.Fatalf("expected default withdrawal fee restored, got %d", f.engine.WithdrawalFee())
	}
}

func TestConstructionRejectsMismatchedRoutes(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	cfg := Config{
		Strategy:                f.strategyAddr,
		Vault:                   f.vault,
		Owner:                   f.owner,
		Manager:                 f.manager,
		Want:                    f.want,
		Output:                  f.reward,
		Native:                  f.native,
		SecondaryPair:           f.secPair,
		PrimaryPool:             primaryPool,
		SecondaryPool:           secondaryPool,
		OutputToNativeRoute:     Route{f.native, f.reward}, // reversed
		OutputToLP0Route:        Route{f.reward, f.t0},
		OutputToLP1Route:        Route{f.reward, f.t1},
		NativeToSecondary0Route: Route{f.native, f.s0},
		NativeToSecondary1Route: Route{f.native, f.s1},
	}
	_, err := NewEngine(context.Background(), cfg,
		mockPair{token0: f.t0, token1: f.t1},
		mockPair{token0: f.s0, token1: f.s1},
		f.ledger, f.farm, f.router, stubFees{})
	if !errors.Is(err, errRouteEndpoints) {
		t.Fatalf("expected errRouteEndpoints, got %v", err)
	}
}

func TestConstructionRejectsZeroAddresses(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	cfg := Config{
		Strategy:            f.strategyAddr,
		Vault:               f.vault,
		Owner:               f.owner,
		Manager:             f.manager,
		Want:                f.want,
		Output:              f.reward,
		Native:              f.native,
		// SecondaryPair left unset.
		OutputToNativeRoute: Route{f.reward, f.native},
	}
	_, err := NewEngine(context.Background(), cfg,
		mockPair{token0: f.t0, token1: f.t1},
		mockPair{token0: f.s0, token1: f.s1},
		f.ledger, f.farm, f.router, stubFees{})
	if !errors.Is(err, errZeroAddress) {
		t.Fatalf("expected errZeroAddress, got %v", err)
	}
}

func TestConstructionGrantsAllowances(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	if got := f.ledger.allowance(f.want, f.farm.Address()); got.Cmp(maxApproval) != 0 {
		t.Fatalf("expected max want allowance for farm, got %s", got)
	}
	if got := f.ledger.allowance(f.secPair, f.farm.Address()); got.Cmp(maxApproval) != 0 {
		t.Fatalf("expected max secondary pair allowance for farm, got %s", got)
	}
	if got := f.ledger.allowance(f.reward, f.router.Address()); got.Cmp(maxApproval) != 0 {
		t.Fatalf("expected max reward allowance for router, got %s", got)
	}
	if got := f.ledger.allowance(f.native, f.router.Address()); got.Cmp(maxApproval) != 0 {
		t.Fatalf("expected max native allowance for router, got %s", got)
	}
}

func TestMulDivTruncatesTowardZero(t *testing.T) {
	got := mulDiv(big.NewInt(100), 45, 1000)
	if got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected 4, got %s", got)
	}
	if got := mulDiv(nil, 45, 1000); got.Sign() != 0 {
		t.Fatalf("expected zero for nil amount, got %s", got)
	}
	if got := mulDiv(big.NewInt(-5), 45, 1000); got.Sign() != 0 {
		t.Fatalf("expected zero for negative amount, got %s", got)
	}
}
