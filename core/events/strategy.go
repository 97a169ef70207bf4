package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

const (
	// TypeDeposited marks want liquidity staked into the farm's primary pool.
	TypeDeposited = "strategy.deposited"
	// TypeWithdrawn marks want released back to the vault.
	TypeWithdrawn = "strategy.withdrawn"
	// TypeHarvested marks a completed harvest/compound cycle.
	TypeHarvested = "strategy.harvested"
	// TypeTreasuryTransfer marks the protocol fee slice forwarded to the treasury.
	TypeTreasuryTransfer = "strategy.fees.treasury"
	// TypeSecondaryLiquidity marks a secondary-pair liquidity position being minted.
	TypeSecondaryLiquidity = "strategy.liquidity.secondary"
	// TypeSecondaryStaked marks secondary-pair liquidity staked into the farm.
	TypeSecondaryStaked = "strategy.staked.secondary"
)

// Deposited records a stake of idle want into the primary pool.
type Deposited struct {
	Total *big.Int
}

// EventType satisfies the events.Event interface.
func (Deposited) EventType() string { return TypeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e Deposited) Event() *Payload {
	attrs := map[string]string{}
	putBig(attrs, "totalManagedWei", e.Total)
	return &Payload{Type: TypeDeposited, Attributes: attrs}
}

// Withdrawn records want transferred back to the vault.
type Withdrawn struct {
	Total *big.Int
}

// EventType satisfies the events.Event interface.
func (Withdrawn) EventType() string { return TypeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e Withdrawn) Event() *Payload {
	attrs := map[string]string{}
	putBig(attrs, "totalManagedWei", e.Total)
	return &Payload{Type: TypeWithdrawn, Attributes: attrs}
}

// Harvested summarises a harvest cycle: who triggered it, how much new want
// the cycle created, and the resulting managed total.
type Harvested struct {
	Caller      [20]byte
	WantCreated *big.Int
	Total       *big.Int
	At          time.Time
}

// EventType satisfies the events.Event interface.
func (Harvested) EventType() string { return TypeHarvested }

// Event converts the structured payload into a broadcastable event.
func (e Harvested) Event() *Payload {
	attrs := map[string]string{
		"caller": "0x" + hex.EncodeToString(e.Caller[:]),
	}
	putBig(attrs, "wantCreatedWei", e.WantCreated)
	putBig(attrs, "totalManagedWei", e.Total)
	if !e.At.IsZero() {
		attrs["harvestedAtUnix"] = strconv.FormatInt(e.At.UTC().Unix(), 10)
	}
	return &Payload{Type: TypeHarvested, Attributes: attrs}
}

// TreasuryTransfer records the treasury share of the protocol fee.
type TreasuryTransfer struct {
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (TreasuryTransfer) EventType() string { return TypeTreasuryTransfer }

// Event converts the structured payload into a broadcastable event.
func (e TreasuryTransfer) Event() *Payload {
	attrs := map[string]string{}
	putBig(attrs, "amountWei", e.Amount)
	return &Payload{Type: TypeTreasuryTransfer, Attributes: attrs}
}

// SecondaryLiquidity records the amounts consumed and liquidity minted when
// forming the secondary-pair position.
type SecondaryLiquidity struct {
	AmountA   *big.Int
	AmountB   *big.Int
	Liquidity *big.Int
}

// EventType satisfies the events.Event interface.
func (SecondaryLiquidity) EventType() string { return TypeSecondaryLiquidity }

// Event converts the structured payload into a broadcastable event.
func (e SecondaryLiquidity) Event() *Payload {
	attrs := map[string]string{}
	putBig(attrs, "amountAWei", e.AmountA)
	putBig(attrs, "amountBWei", e.AmountB)
	putBig(attrs, "liquidityWei", e.Liquidity)
	return &Payload{Type: TypeSecondaryLiquidity, Attributes: attrs}
}

// SecondaryStaked records secondary-pair liquidity deposited into the farm.
type SecondaryStaked struct {
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (SecondaryStaked) EventType() string { return TypeSecondaryStaked }

// Event converts the structured payload into a broadcastable event.
func (e SecondaryStaked) Event() *Payload {
	attrs := map[string]string{}
	putBig(attrs, "amountWei", e.Amount)
	return &Payload{Type: TypeSecondaryStaked, Attributes: attrs}
}

func putBig(attrs map[string]string, key string, value *big.Int) {
	if value == nil {
		return
	}
	attrs[key] = value.String()
}
