package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Ledger moves and reads ERC-20 balances from the operator's perspective,
// satisfying the strategy's TokenLedger interface.
type Ledger struct {
	tx  *Transactor
	abi abi.ABI
}

// NewLedger constructs an ERC-20 ledger bound to the transactor.
func NewLedger(tx *Transactor) (*Ledger, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Ledger{tx: tx, abi: parsed}, nil
}

// BalanceOf reads the holder's balance of the given token.
func (l *Ledger) BalanceOf(ctx context.Context, token, holder ethcommon.Address) (*big.Int, error) {
	data, err := l.abi.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	raw, err := l.tx.Call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	out, err := l.abi.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return out[0].(*big.Int), nil
}

// Transfer moves tokens from the operator to the recipient.
func (l *Ledger) Transfer(ctx context.Context, token, to ethcommon.Address, amount *big.Int) error {
	data, err := l.abi.Pack("transfer", to, amount)
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	return l.tx.Send(ctx, token, data)
}

// Approve grants the spender an allowance over the operator's tokens.
func (l *Ledger) Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) error {
	data, err := l.abi.Pack("approve", spender, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	return l.tx.Send(ctx, token, data)
}
