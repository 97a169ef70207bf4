package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const routerABIJSON = `[
  {"constant":false,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
  {"constant":false,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"amountADesired","type":"uint256"},{"name":"amountBDesired","type":"uint256"},{"name":"amountAMin","type":"uint256"},{"name":"amountBMin","type":"uint256"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"addLiquidity","outputs":[{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},{"name":"liquidity","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
  {"constant":true,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

// Router adapts a UniswapV2-style router. Write calls that return values are
// first simulated as an eth_call with identical calldata so the caller gets
// the amounts the mined transaction will produce, then sent for real.
type Router struct {
	tx   *Transactor
	addr ethcommon.Address
	abi  abi.ABI
}

// NewRouter constructs a router adapter.
func NewRouter(tx *Transactor, addr ethcommon.Address) (*Router, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &Router{tx: tx, addr: addr, abi: parsed}, nil
}

// Address returns the router contract address.
func (r *Router) Address() ethcommon.Address { return r.addr }

// SwapExactTokensForTokens swaps along path and returns the per-hop amounts,
// terminal token last.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []ethcommon.Address, to ethcommon.Address, deadline *big.Int) ([]*big.Int, error) {
	data, err := r.abi.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
	if err != nil {
		return nil, fmt.Errorf("pack swap: %w", err)
	}
	raw, err := r.tx.Call(ctx, r.addr, data)
	if err != nil {
		return nil, fmt.Errorf("simulate swap: %w", err)
	}
	out, err := r.abi.Unpack("swapExactTokensForTokens", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack swap: %w", err)
	}
	amounts := out[0].([]*big.Int)
	if len(amounts) == 0 {
		return nil, fmt.Errorf("swap returned no amounts")
	}
	if err := r.tx.Send(ctx, r.addr, data); err != nil {
		return nil, err
	}
	return amounts, nil
}

// AddLiquidity supplies both tokens to the pair and returns the consumed
// amounts plus the liquidity minted.
func (r *Router) AddLiquidity(ctx context.Context, tokenA, tokenB ethcommon.Address, amountADesired, amountBDesired, amountAMin, amountBMin *big.Int, to ethcommon.Address, deadline *big.Int) (amountA, amountB, liquidity *big.Int, err error) {
	data, err := r.abi.Pack("addLiquidity", tokenA, tokenB, amountADesired, amountBDesired, amountAMin, amountBMin, to, deadline)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pack addLiquidity: %w", err)
	}
	raw, err := r.tx.Call(ctx, r.addr, data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("simulate addLiquidity: %w", err)
	}
	out, err := r.abi.Unpack("addLiquidity", raw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unpack addLiquidity: %w", err)
	}
	if err := r.tx.Send(ctx, r.addr, data); err != nil {
		return nil, nil, nil, err
	}
	return out[0].(*big.Int), out[1].(*big.Int), out[2].(*big.Int), nil
}

// GetAmountsOut quotes amountIn along path without executing the swap.
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []ethcommon.Address) ([]*big.Int, error) {
	data, err := r.abi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := r.tx.Call(ctx, r.addr, data)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsOut: %w", err)
	}
	out, err := r.abi.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	return out[0].([]*big.Int), nil
}
