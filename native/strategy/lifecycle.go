package strategy

import (
	"context"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Pause halts deposits and harvests and revokes every working allowance.
// Withdrawals remain operable and bypass the withdrawal fee while paused.
func (e *Engine) Pause(ctx context.Context, caller ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if e.retired {
		return errRetired
	}
	return e.pause(ctx)
}

// Unpause re-grants allowances, reactivates the strategy, and immediately
// restakes any idle want balance.
func (e *Engine) Unpause(ctx context.Context, caller ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if e.retired {
		return errRetired
	}
	if err := e.giveAllowances(ctx); err != nil {
		return fmt.Errorf("grant allowances: %w", err)
	}
	e.paused = false
	return e.depositLocal(ctx)
}

// Panic force-pauses the strategy and performs an emergency withdrawal of the
// entire primary-pool position, abandoning any pending unharvested reward.
func (e *Engine) Panic(ctx context.Context, caller ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireManager(caller); err != nil {
		return err
	}
	if e.retired {
		return errRetired
	}
	if err := e.pause(ctx); err != nil {
		return err
	}
	if err := e.farm.EmergencyWithdraw(ctx, e.primaryPool); err != nil {
		return fmt.Errorf("emergency withdraw: %w", err)
	}
	return nil
}

// Retire is the terminal transition, triggered by the vault when swapping
// strategies: the primary position is emergency-withdrawn and all locally
// held want is transferred to the vault. The secondary liquidity position is
// left untouched.
func (e *Engine) Retire(ctx context.Context, caller ethcommon.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return errRetired
	}
	if caller != e.vault {
		return errNotVault
	}
	if err := e.farm.EmergencyWithdraw(ctx, e.primaryPool); err != nil {
		return fmt.Errorf("emergency withdraw: %w", err)
	}
	bal, err := e.ledger.BalanceOf(ctx, e.assets.Want, e.self)
	if err != nil {
		return err
	}
	if bal.Sign() > 0 {
		if err := e.ledger.Transfer(ctx, e.assets.Want, e.vault, bal); err != nil {
			return fmt.Errorf("transfer to vault: %w", err)
		}
	}
	e.retired = true
	return nil
}

func (e *Engine) pause(ctx context.Context) error {
	e.paused = true
	if err := e.removeAllowances(ctx); err != nil {
		return fmt.Errorf("revoke allowances: %w", err)
	}
	return nil
}
