// Package harvester drives the compounding schedule: it triggers a harvest at
// a fixed cadence and exposes a manual trigger for the admin API.
package harvester

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"compounder/observability"
)

// Engine is the strategy surface the scheduler drives.
type Engine interface {
	ManagerHarvest(ctx context.Context, caller, callFeeRecipient ethcommon.Address) error
	TotalManagedAssets(ctx context.Context) (*big.Int, error)
	Paused() bool
	Retired() bool
}

// Config captures the scheduler dependencies.
type Config struct {
	Engine   Engine
	Manager  ethcommon.Address
	Receiver ethcommon.Address
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Scheduler runs harvest cycles on a ticker. A failed cycle is logged and
// retried on the next tick; the scheduler never gives up while the context is
// alive.
type Scheduler struct {
	engine   Engine
	manager  ethcommon.Address
	receiver ethcommon.Address
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// New validates the configuration and constructs a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("harvester: engine required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("harvester: positive interval required")
	}
	receiver := cfg.Receiver
	if receiver == (ethcommon.Address{}) {
		receiver = cfg.Manager
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   cfg.Engine,
		manager:  cfg.Manager,
		receiver: receiver,
		interval: cfg.Interval,
		timeout:  timeout,
		logger:   logger.With("component", "harvester"),
	}, nil
}

// Run blocks until ctx is cancelled, harvesting once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("harvest scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("harvest scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// HarvestNow triggers an immediate harvest cycle paying the given recipient.
func (s *Scheduler) HarvestNow(ctx context.Context, recipient ethcommon.Address) error {
	if recipient == (ethcommon.Address{}) {
		recipient = s.receiver
	}
	return s.harvest(ctx, "rpc", recipient)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.engine.Retired() {
		s.logger.Info("strategy retired, skipping harvest")
		return
	}
	if s.engine.Paused() {
		s.logger.Info("strategy paused, skipping harvest")
		return
	}
	if err := s.harvest(ctx, "scheduler", s.receiver); err != nil {
		s.logger.Error("harvest cycle failed, retrying next tick", "error", err)
	}
}

func (s *Scheduler) harvest(ctx context.Context, trigger string, recipient ethcommon.Address) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.engine.ManagerHarvest(ctx, s.manager, recipient)
	duration := time.Since(start)
	observability.Strategy().ObserveHarvest(trigger, err, duration)
	if err != nil {
		return err
	}

	if total, totalErr := s.engine.TotalManagedAssets(ctx); totalErr == nil {
		observability.Strategy().SetTotalManaged(total)
		s.logger.Info("harvest cycle complete",
			"trigger", trigger,
			"duration", duration.String(),
			"total_managed_wei", total.String())
	} else {
		s.logger.Info("harvest cycle complete", "trigger", trigger, "duration", duration.String())
	}
	return nil
}
