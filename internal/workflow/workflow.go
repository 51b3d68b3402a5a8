package workflow

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/blockchain/ethereum"
	"github.com/igwedaniel/dripper/internal/faucet"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
)

// Chain is what the transfer and staking workflows need from a network
type Chain interface {
	Network() types.NetworkProfile
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Submit(ctx context.Context, intent types.TransactionIntent, key *ecdsa.PrivateKey) (*ethereum.PendingTx, error)
	AwaitConfirmation(ctx context.Context, pending *ethereum.PendingTx) (*types.TransactionReceipt, error)
}

// Claimer requests faucet funds for one address
type Claimer interface {
	Claim(ctx context.Context, address common.Address) faucet.ClaimResult
}

// Generator produces fresh wallets
type Generator func() (wallet.Account, error)

// ValidationError rejects workflow input before any network call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
