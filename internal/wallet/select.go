package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// BalanceReader reads a native balance
type BalanceReader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Funded is an account with its balance at selection time
type Funded struct {
	Account
	Balance *big.Int
}

// SelectSender fetches the balance of every account, at most concurrency at
// a time, and returns the one at index along with the full listing.
func SelectSender(ctx context.Context, accounts []Account, reader BalanceReader, index, concurrency int) (Funded, []Funded, error) {
	if len(accounts) == 0 {
		return Funded{}, nil, ErrNoKeys
	}
	if index < 0 || index >= len(accounts) {
		return Funded{}, nil, fmt.Errorf("sender index %d out of range [0, %d)", index, len(accounts))
	}
	if concurrency < 1 {
		concurrency = 1
	}

	listing := make([]Funded, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, account := range accounts {
		g.Go(func() error {
			balance, err := reader.Balance(gctx, account.Address)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", account.Address.Hex(), err)
			}
			listing[i] = Funded{Account: account, Balance: balance}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Funded{}, nil, err
	}
	return listing[index], listing, nil
}
