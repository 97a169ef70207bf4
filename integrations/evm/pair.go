package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const pairABIJSON = `[
  {"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"}
]`

// Pair adapts a UniswapV2-style pair contract for the component-token reads
// performed once at strategy construction.
type Pair struct {
	tx   *Transactor
	addr ethcommon.Address
	abi  abi.ABI
}

// NewPair constructs a pair adapter.
func NewPair(tx *Transactor, addr ethcommon.Address) (*Pair, error) {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	return &Pair{tx: tx, addr: addr, abi: parsed}, nil
}

// Address returns the pair contract address.
func (p *Pair) Address() ethcommon.Address { return p.addr }

// Token0 returns the pair's first component token.
func (p *Pair) Token0(ctx context.Context) (ethcommon.Address, error) {
	return p.component(ctx, "token0")
}

// Token1 returns the pair's second component token.
func (p *Pair) Token1(ctx context.Context) (ethcommon.Address, error) {
	return p.component(ctx, "token1")
}

func (p *Pair) component(ctx context.Context, method string) (ethcommon.Address, error) {
	data, err := p.abi.Pack(method)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := p.tx.Call(ctx, p.addr, data)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := p.abi.Unpack(method, raw)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out[0].(ethcommon.Address), nil
}

// Reserves returns the current pool reserves in token0, token1 order.
func (p *Pair) Reserves(ctx context.Context) (reserve0, reserve1 *big.Int, err error) {
	data, err := p.abi.Pack("getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("pack getReserves: %w", err)
	}
	raw, err := p.tx.Call(ctx, p.addr, data)
	if err != nil {
		return nil, nil, fmt.Errorf("call getReserves: %w", err)
	}
	out, err := p.abi.Unpack("getReserves", raw)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack getReserves: %w", err)
	}
	return out[0].(*big.Int), out[1].(*big.Int), nil
}
