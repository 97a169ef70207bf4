package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrReverted indicates a sent transaction was mined but failed.
	ErrReverted = errors.New("evm: transaction reverted")
	errNilKey   = errors.New("evm: operator key required")
)

// Backend is the subset of the Ethereum RPC surface the adapters use.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*gethtypes.Receipt, error)
}

// Dial initialises an EVM RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evm: endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Transactor signs and submits contract calls on behalf of the strategy
// operator, and exposes read-only calls against the latest block.
type Transactor struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         ethcommon.Address
	chainID      *big.Int
	pollInterval time.Duration
}

// NewTransactor wires a transactor to the backend with the operator key.
func NewTransactor(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int) (*Transactor, error) {
	if backend == nil {
		return nil, fmt.Errorf("evm: backend required")
	}
	if key == nil {
		return nil, errNilKey
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("evm: chain id required")
	}
	return &Transactor{
		backend:      backend,
		key:          key,
		from:         gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:      new(big.Int).Set(chainID),
		pollInterval: time.Second,
	}, nil
}

// From returns the operator address derived from the signing key.
func (t *Transactor) From() ethcommon.Address { return t.from }

// Call executes a read-only call against the latest block.
func (t *Transactor) Call(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error) {
	return t.backend.CallContract(ctx, ethereum.CallMsg{From: t.from, To: &to, Data: data}, nil)
}

// Send signs, submits, and waits for the given calldata to be mined. A mined
// transaction with a failed status maps to ErrReverted so callers observe the
// same abort semantics as the on-chain operation.
func (t *Transactor) Send(ctx context.Context, to ethcommon.Address, data []byte) error {
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &to, Data: data})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}

	tx := gethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(t.chainID), t.key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}
	return t.waitMined(ctx, signed.Hash())
}

func (t *Transactor) waitMined(ctx context.Context, hash ethcommon.Hash) error {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
