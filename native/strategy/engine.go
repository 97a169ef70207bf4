package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"compounder/core/events"
)

var (
	errNilCollaborator   = errors.New("strategy: collaborator not configured")
	errZeroAddress       = errors.New("strategy: required address unset")
	errRouteTooShort     = errors.New("strategy: route must contain at least two hops")
	errRouteEndpoints    = errors.New("strategy: route endpoints mismatch")
	errNotVault          = errors.New("strategy: caller is not the vault")
	errNotManager        = errors.New("strategy: caller is not the manager")
	errPaused            = errors.New("strategy: paused")
	errRetired           = errors.New("strategy: retired")
	errInvalidAmount     = errors.New("strategy: amount must be positive")
	errRenameUnsupported = errors.New("strategy: farm does not support pending-reward renaming")
)

// Config captures the construction-time identity and wiring of a strategy
// instance. Pair component tokens are resolved from the pair contracts, not
// configured here.
type Config struct {
	// Strategy is the on-chain identity holding token custody.
	Strategy ethcommon.Address
	Vault    ethcommon.Address
	Owner    ethcommon.Address
	Manager  ethcommon.Address

	Want          ethcommon.Address
	Output        ethcommon.Address
	Native        ethcommon.Address
	SecondaryPair ethcommon.Address

	PrimaryPool   uint64
	SecondaryPool uint64

	OutputToNativeRoute     Route
	OutputToLP0Route        Route
	OutputToLP1Route        Route
	NativeToSecondary0Route Route
	NativeToSecondary1Route Route

	HarvestOnDeposit bool
}

// Engine is the auto-compounding strategy: it keeps the want asset staked in
// the farm, harvests reward tokens, converts and reinvests them, and routes
// fee slices to the caller, strategist, treasury, and a secondary liquidity
// position.
//
// Entry points are serialised by an internal mutex: no two operations ever
// observe a torn intermediate state of each other. The engine keeps no local
// balance bookkeeping; every balance lives in the external protocols, so a
// failed operation surfaces its error with nothing to roll back locally.
type Engine struct {
	mu sync.Mutex

	self    ethcommon.Address
	vault   ethcommon.Address
	owner   ethcommon.Address
	manager ethcommon.Address

	assets Assets

	primaryPool   uint64
	secondaryPool uint64

	outputToNativeRoute     Route
	outputToLP0Route        Route
	outputToLP1Route        Route
	nativeToSecondary0Route Route
	nativeToSecondary1Route Route

	ledger TokenLedger
	farm   Farm
	router Router
	fees   FeeConfig

	withdrawalFee    uint64
	harvestOnDeposit bool
	paused           bool
	retired          bool
	lastHarvest      time.Time

	emitter events.Emitter
	now     func() time.Time
}

// NewEngine constructs a strategy engine, resolving the pair component tokens
// and validating every configured route. Construction grants the farm and
// router their working allowances; a configuration error aborts construction
// entirely.
func NewEngine(ctx context.Context, cfg Config, wantPair, secondaryPair Pair, ledger TokenLedger, farm Farm, router Router, fees FeeConfig) (*Engine, error) {
	if ledger == nil || farm == nil || router == nil || fees == nil || wantPair == nil || secondaryPair == nil {
		return nil, errNilCollaborator
	}
	for _, addr := range []ethcommon.Address{cfg.Strategy, cfg.Vault, cfg.Owner, cfg.Manager, cfg.Want, cfg.Output, cfg.Native, cfg.SecondaryPair} {
		if addr == (ethcommon.Address{}) {
			return nil, errZeroAddress
		}
	}

	e := &Engine{
		self:    cfg.Strategy,
		vault:   cfg.Vault,
		owner:   cfg.Owner,
		manager: cfg.Manager,
		assets: Assets{
			Want:          cfg.Want,
			Output:        cfg.Output,
			Native:        cfg.Native,
			SecondaryPair: cfg.SecondaryPair,
		},
		primaryPool:   cfg.PrimaryPool,
		secondaryPool: cfg.SecondaryPool,
		ledger:        ledger,
		farm:          farm,
		router:        router,
		fees:          fees,
		withdrawalFee: WithdrawalFeeDefault,
		emitter:       events.NoopEmitter{},
		now:           time.Now,
	}

	var err error
	if e.assets.LPToken0, err = wantPair.Token0(ctx); err != nil {
		return nil, fmt.Errorf("resolve want pair token0: %w", err)
	}
	if e.assets.LPToken1, err = wantPair.Token1(ctx); err != nil {
		return nil, fmt.Errorf("resolve want pair token1: %w", err)
	}
	if e.assets.SecondaryToken0, err = secondaryPair.Token0(ctx); err != nil {
		return nil, fmt.Errorf("resolve secondary pair token0: %w", err)
	}
	if e.assets.SecondaryToken1, err = secondaryPair.Token1(ctx); err != nil {
		return nil, fmt.Errorf("resolve secondary pair token1: %w", err)
	}

	if err := cfg.OutputToNativeRoute.validate(e.assets.Output, e.assets.Native); err != nil {
		return nil, fmt.Errorf("output to native: %w", err)
	}
	e.outputToNativeRoute = cfg.OutputToNativeRoute.Clone()

	if e.assets.LPToken0 != e.assets.Output {
		if err := cfg.OutputToLP0Route.validate(e.assets.Output, e.assets.LPToken0); err != nil {
			return nil, fmt.Errorf("output to lp0: %w", err)
		}
		e.outputToLP0Route = cfg.OutputToLP0Route.Clone()
	}
	if e.assets.LPToken1 != e.assets.Output {
		if err := cfg.OutputToLP1Route.validate(e.assets.Output, e.assets.LPToken1); err != nil {
			return nil, fmt.Errorf("output to lp1: %w", err)
		}
		e.outputToLP1Route = cfg.OutputToLP1Route.Clone()
	}
	if e.assets.SecondaryToken0 != e.assets.Output {
		if err := cfg.NativeToSecondary0Route.validate(e.assets.Native, e.assets.SecondaryToken0); err != nil {
			return nil, fmt.Errorf("native to secondary0: %w", err)
		}
		e.nativeToSecondary0Route = cfg.NativeToSecondary0Route.Clone()
	}
	if e.assets.SecondaryToken1 != e.assets.Output {
		if err := cfg.NativeToSecondary1Route.validate(e.assets.Native, e.assets.SecondaryToken1); err != nil {
			return nil, fmt.Errorf("native to secondary1: %w", err)
		}
		e.nativeToSecondary1Route = cfg.NativeToSecondary1Route.Clone()
	}

	if cfg.HarvestOnDeposit {
		e.harvestOnDeposit = true
		e.withdrawalFee = 0
	}

	if err := e.giveAllowances(ctx); err != nil {
		return nil, fmt.Errorf("grant allowances: %w", err)
	}
	return e, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Assets returns the resolved asset identities.
func (e *Engine) Assets() Assets {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assets
}

// Paused reports whether the strategy is in the Paused state.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Retired reports whether the strategy has reached its terminal state.
func (e *Engine) Retired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retired
}

// HarvestOnDeposit reports whether deposits trigger a harvest first.
func (e *Engine) HarvestOnDeposit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.harvestOnDeposit
}

// WithdrawalFee returns the current withdrawal fee in units of
// WithdrawalFeeMax.
func (e *Engine) WithdrawalFee() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.withdrawalFee
}

// LastHarvest returns the time of the last successful harvest.
func (e *Engine) LastHarvest() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastHarvest
}

// Routes returns copies of every configured routing path. Routes that are
// skipped because their destination equals the reward token are nil.
func (e *Engine) Routes() (outputToNative, outputToLP0, outputToLP1, nativeToSecondary0, nativeToSecondary1 Route) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputToNativeRoute.Clone(), e.outputToLP0Route.Clone(), e.outputToLP1Route.Clone(),
		e.nativeToSecondary0Route.Clone(), e.nativeToSecondary1Route.Clone()
}

// Deposit stakes the strategy's entire local want balance into the farm's
// primary pool. A zero local balance is a silent no-op. Operable only while
// active.
func (e *Engine) Deposit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.operable(); err != nil {
		return err
	}
	return e.depositLocal(ctx)
}

// BeforeDeposit is the harvest-on-deposit pre-hook. When the flag is set the
// vault must be the caller and the transaction originator becomes the
// call-fee recipient of the triggered harvest.
func (e *Engine) BeforeDeposit(ctx context.Context, caller, origin ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.harvestOnDeposit {
		return nil
	}
	if caller != e.vault {
		return errNotVault
	}
	if err := e.operable(); err != nil {
		return err
	}
	return e.harvest(ctx, origin)
}

// Withdraw releases up to amount of want back to the vault, pulling any
// shortfall from the farm first. Withdrawals initiated by anyone other than
// the owner while the strategy is active pay the withdrawal fee; the fee
// stays in local custody and is swept back into the managed pool on the next
// cycle.
func (e *Engine) Withdraw(ctx context.Context, caller, origin ethcommon.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return errRetired
	}
	if caller != e.vault {
		return errNotVault
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	local, err := e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
	if err != nil {
		return err
	}
	if local.Cmp(amount) < 0 {
		shortfall := new(big.Int).Sub(amount, local)
		if err := e.farm.Withdraw(ctx, e.primaryPool, shortfall); err != nil {
			return fmt.Errorf("withdraw from farm: %w", err)
		}
		if local, err = e.ledger.BalanceOf(ctx, e.assets.Want, e.self); err != nil {
			return err
		}
	}
	if local.Cmp(amount) > 0 {
		local = new(big.Int).Set(amount)
	}

	if origin != e.owner && !e.paused && e.withdrawalFee > 0 {
		fee := mulDiv(local, e.withdrawalFee, WithdrawalFeeMax)
		local = new(big.Int).Sub(local, fee)
	}

	if err := e.ledger.Transfer(ctx, e.assets.Want, e.vault, local); err != nil {
		return fmt.Errorf("transfer to vault: %w", err)
	}

	total, err := e.totalManagedAssets(ctx)
	if err != nil {
		return err
	}
	e.emitter.Emit(events.Withdrawn{Total: total})
	return nil
}

// SetOutputToNativeRoute replaces the reward-to-native conversion path.
func (e *Engine) SetOutputToNativeRoute(caller ethcommon.Address, route Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if err := route.validate(e.assets.Output, e.assets.Native); err != nil {
		return err
	}
	e.outputToNativeRoute = route.Clone()
	return nil
}

// SetOutputToLP0Route replaces the reward-to-lpToken0 conversion path.
func (e *Engine) SetOutputToLP0Route(caller ethcommon.Address, route Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if err := route.validate(e.assets.Output, e.assets.LPToken0); err != nil {
		return err
	}
	e.outputToLP0Route = route.Clone()
	return nil
}

// SetOutputToLP1Route replaces the reward-to-lpToken1 conversion path.
func (e *Engine) SetOutputToLP1Route(caller ethcommon.Address, route Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if err := route.validate(e.assets.Output, e.assets.LPToken1); err != nil {
		return err
	}
	e.outputToLP1Route = route.Clone()
	return nil
}

// SetHarvestOnDeposit toggles the harvest-on-deposit behavior. Enabling it
// zeroes the withdrawal fee; disabling it restores the default.
func (e *Engine) SetHarvestOnDeposit(caller ethcommon.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	e.harvestOnDeposit = enabled
	if enabled {
		e.withdrawalFee = 0
	} else {
		e.withdrawalFee = WithdrawalFeeDefault
	}
	return nil
}

// SetPendingRewardMethod rebinds the farm's pending-reward view name when the
// underlying adapter supports renaming.
func (e *Engine) SetPendingRewardMethod(caller ethcommon.Address, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	configurer, ok := e.farm.(rewardMethodConfigurer)
	if !ok {
		return errRenameUnsupported
	}
	return configurer.SetPendingRewardMethod(name)
}

// depositLocal stakes the entire local want balance, emitting a deposit event
// with the resulting managed total. Zero local balance is a no-op.
func (e *Engine) depositLocal(ctx context.Context) error {
	bal, err := e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
	if err != nil {
		return err
	}
	if bal.Sign() == 0 {
		return nil
	}
	if err := e.farm.Deposit(ctx, e.primaryPool, bal); err != nil {
		return fmt.Errorf("stake into farm: %w", err)
	}
	total, err := e.totalManagedAssets(ctx)
	if err != nil {
		return err
	}
	e.emitter.Emit(events.Deposited{Total: total})
	return nil
}

// giveAllowances grants the farm and router unbounded working allowances for
// every asset they move on the strategy's behalf.
func (e *Engine) giveAllowances(ctx context.Context) error {
	return e.setAllowances(ctx, maxApproval)
}

// removeAllowances revokes every working allowance.
func (e *Engine) removeAllowances(ctx context.Context) error {
	return e.setAllowances(ctx, big.NewInt(0))
}

func (e *Engine) setAllowances(ctx context.Context, amount *big.Int) error {
	farmAddr := e.farm.Address()
	routerAddr := e.router.Address()
	grants := []struct {
		token   ethcommon.Address
		spender ethcommon.Address
	}{
		{e.assets.Want, farmAddr},
		{e.assets.SecondaryPair, farmAddr},
		{e.assets.Output, routerAddr},
		{e.assets.Native, routerAddr},
		{e.assets.LPToken0, routerAddr},
		{e.assets.LPToken1, routerAddr},
		{e.assets.SecondaryToken0, routerAddr},
		{e.assets.SecondaryToken1, routerAddr},
	}
	seen := make(map[ethcommon.Address]map[ethcommon.Address]bool)
	for _, g := range grants {
		if seen[g.token][g.spender] {
			continue
		}
		if seen[g.token] == nil {
			seen[g.token] = make(map[ethcommon.Address]bool)
		}
		seen[g.token][g.spender] = true
		if err := e.ledger.Approve(ctx, g.token, g.spender, amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) operable() error {
	if e.retired {
		return errRetired
	}
	if e.paused {
		return errPaused
	}
	return nil
}

func (e *Engine) requireManager(caller ethcommon.Address) error {
	if caller != e.manager && caller != e.owner {
		return errNotManager
	}
	return nil
}
