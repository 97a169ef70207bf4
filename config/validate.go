package config

import (
	"fmt"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Validate checks the configuration for the errors that would otherwise
// surface as opaque failures deep in chain wiring.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.RPCEndpoint) == "" {
		return fmt.Errorf("Chain.RPCEndpoint is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("Chain.ChainID is required")
	}
	if c.Harvest.Interval.Duration < time.Minute {
		return fmt.Errorf("Harvest.Interval must be at least one minute")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RateLimit values must be positive")
	}

	addresses := map[string]string{
		"Contracts.Vault":         c.Contracts.Vault,
		"Contracts.Owner":         c.Contracts.Owner,
		"Contracts.Manager":       c.Contracts.Manager,
		"Contracts.Strategist":    c.Contracts.Strategist,
		"Contracts.Treasury":      c.Contracts.Treasury,
		"Contracts.Want":          c.Contracts.Want,
		"Contracts.Output":        c.Contracts.Output,
		"Contracts.Native":        c.Contracts.Native,
		"Contracts.Farm":          c.Contracts.Farm,
		"Contracts.Router":        c.Contracts.Router,
		"Contracts.SecondaryPair": c.Contracts.SecondaryPair,
	}
	for field, raw := range addresses {
		if _, err := ParseAddress(raw); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	if _, err := ParseRoute(c.Routes.OutputToNative); err != nil {
		return fmt.Errorf("Routes.OutputToNative: %w", err)
	}
	// Component routes may be empty when the component is the reward token.
	for field, hops := range map[string][]string{
		"Routes.OutputToLP0":        c.Routes.OutputToLP0,
		"Routes.OutputToLP1":        c.Routes.OutputToLP1,
		"Routes.NativeToSecondary0": c.Routes.NativeToSecondary0,
		"Routes.NativeToSecondary1": c.Routes.NativeToSecondary1,
	} {
		if len(hops) == 0 {
			continue
		}
		if _, err := ParseRoute(hops); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	return nil
}

// ParseAddress decodes a checksummed or lowercase hex address.
func ParseAddress(raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

// ParseRoute decodes a swap path of at least two hex addresses.
func ParseRoute(hops []string) ([]ethcommon.Address, error) {
	if len(hops) < 2 {
		return nil, fmt.Errorf("route needs at least two hops, got %d", len(hops))
	}
	route := make([]ethcommon.Address, 0, len(hops))
	for _, hop := range hops {
		addr, err := ParseAddress(hop)
		if err != nil {
			return nil, err
		}
		route = append(route, addr)
	}
	return route, nil
}
