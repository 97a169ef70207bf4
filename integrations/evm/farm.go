package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const farmABIJSON = `[
  {"constant":false,"inputs":[{"name":"_pid","type":"uint256"},{"name":"_amount","type":"uint256"}],"name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"constant":false,"inputs":[{"name":"_pid","type":"uint256"},{"name":"_amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"constant":false,"inputs":[{"name":"_pid","type":"uint256"}],"name":"emergencyWithdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"constant":true,"inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"name":"userInfo","outputs":[{"name":"amount","type":"uint256"},{"name":"rewardDebt","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// pendingViewTemplate is the fixed signature of the farm's pending-reward
// view; only its name varies by deployment.
const pendingViewTemplate = `[{"constant":true,"inputs":[{"name":"_pid","type":"uint256"},{"name":"_user","type":"address"}],"name":"%s","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// DefaultPendingRewardMethod is the view name used when the deployment does
// not override it.
const DefaultPendingRewardMethod = "pendingReward"

var errEmptyMethodName = errors.New("evm: pending reward method name required")

// Farm adapts a masterchef-style staking contract. The pending-reward view
// name is bound at setup and can be rebound at runtime because different farm
// deployments expose differently named views.
type Farm struct {
	tx   *Transactor
	addr ethcommon.Address
	abi  abi.ABI

	mu            sync.RWMutex
	pendingMethod string
	pendingABI    abi.ABI
}

// NewFarm constructs a farm adapter. An empty pendingMethod selects the
// default view name.
func NewFarm(tx *Transactor, addr ethcommon.Address, pendingMethod string) (*Farm, error) {
	parsed, err := abi.JSON(strings.NewReader(farmABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse farm abi: %w", err)
	}
	f := &Farm{tx: tx, addr: addr, abi: parsed}
	if strings.TrimSpace(pendingMethod) == "" {
		pendingMethod = DefaultPendingRewardMethod
	}
	if err := f.SetPendingRewardMethod(pendingMethod); err != nil {
		return nil, err
	}
	return f, nil
}

// Address returns the farm contract address.
func (f *Farm) Address() ethcommon.Address { return f.addr }

// SetPendingRewardMethod rebinds the pending-reward view name.
func (f *Farm) SetPendingRewardMethod(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errEmptyMethodName
	}
	parsed, err := abi.JSON(strings.NewReader(fmt.Sprintf(pendingViewTemplate, trimmed)))
	if err != nil {
		return fmt.Errorf("bind pending view %q: %w", trimmed, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingMethod = trimmed
	f.pendingABI = parsed
	return nil
}

// PendingRewardMethod returns the currently bound view name.
func (f *Farm) PendingRewardMethod() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pendingMethod
}

// Deposit stakes into the given pool. A zero amount settles pending reward
// without changing principal.
func (f *Farm) Deposit(ctx context.Context, pool uint64, amount *big.Int) error {
	data, err := f.abi.Pack("deposit", new(big.Int).SetUint64(pool), amount)
	if err != nil {
		return fmt.Errorf("pack deposit: %w", err)
	}
	return f.tx.Send(ctx, f.addr, data)
}

// Withdraw unstakes from the given pool.
func (f *Farm) Withdraw(ctx context.Context, pool uint64, amount *big.Int) error {
	data, err := f.abi.Pack("withdraw", new(big.Int).SetUint64(pool), amount)
	if err != nil {
		return fmt.Errorf("pack withdraw: %w", err)
	}
	return f.tx.Send(ctx, f.addr, data)
}

// EmergencyWithdraw exits the pool position, abandoning pending reward.
func (f *Farm) EmergencyWithdraw(ctx context.Context, pool uint64) error {
	data, err := f.abi.Pack("emergencyWithdraw", new(big.Int).SetUint64(pool))
	if err != nil {
		return fmt.Errorf("pack emergencyWithdraw: %w", err)
	}
	return f.tx.Send(ctx, f.addr, data)
}

// StakedBalance reads the principal portion of the position via userInfo.
func (f *Farm) StakedBalance(ctx context.Context, pool uint64, who ethcommon.Address) (*big.Int, error) {
	data, err := f.abi.Pack("userInfo", new(big.Int).SetUint64(pool), who)
	if err != nil {
		return nil, fmt.Errorf("pack userInfo: %w", err)
	}
	raw, err := f.tx.Call(ctx, f.addr, data)
	if err != nil {
		return nil, fmt.Errorf("call userInfo: %w", err)
	}
	out, err := f.abi.Unpack("userInfo", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack userInfo: %w", err)
	}
	return out[0].(*big.Int), nil
}

// PendingReward queries the bound pending-reward view.
func (f *Farm) PendingReward(ctx context.Context, pool uint64, who ethcommon.Address) (*big.Int, error) {
	f.mu.RLock()
	method := f.pendingMethod
	view := f.pendingABI
	f.mu.RUnlock()

	data, err := view.Pack(method, new(big.Int).SetUint64(pool), who)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := f.tx.Call(ctx, f.addr, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := view.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out[0].(*big.Int), nil
}
