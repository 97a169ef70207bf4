package strategy

import (
	"context"
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var errFeeOverflow = errors.New("strategy: fee fractions exceed denominator")

// StaticFeeConfig serves a fixed fee schedule, with manager-driven updates
// applied atomically. It backs deployments whose fee governance lives in
// configuration rather than in an external contract.
type StaticFeeConfig struct {
	mu       sync.RWMutex
	schedule FeeSchedule
}

// NewStaticFeeConfig validates and pins the initial schedule.
func NewStaticFeeConfig(schedule FeeSchedule) (*StaticFeeConfig, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}
	return &StaticFeeConfig{schedule: schedule}, nil
}

// Schedule returns the current fee schedule.
func (c *StaticFeeConfig) Schedule(context.Context) (FeeSchedule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schedule, nil
}

// Update replaces the schedule after validation.
func (c *StaticFeeConfig) Update(schedule FeeSchedule) error {
	if err := validateSchedule(schedule); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = schedule
	return nil
}

func validateSchedule(s FeeSchedule) error {
	if s.CallFee > FeeDenominator || s.StrategistFee > FeeDenominator || s.ProtocolFee > FeeDenominator {
		return errFeeOverflow
	}
	if s.CallFee+s.StrategistFee+s.ProtocolFee > FeeDenominator {
		return errFeeOverflow
	}
	if s.Strategist == (ethcommon.Address{}) || s.Treasury == (ethcommon.Address{}) {
		return errZeroAddress
	}
	return nil
}
