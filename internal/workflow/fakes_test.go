package workflow

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/igwedaniel/dripper/internal/blockchain/ethereum"
	"github.com/igwedaniel/dripper/internal/faucet"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
)

var testNetwork = types.NetworkProfile{
	Key:      "monad",
	Name:     "Monad Testnet",
	Explorer: "https://testnet.monadexplorer.com",
	Symbol:   "MON",
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeChain records submissions. submitErrAt and revertAt are 1-based
// submission numbers; zero disables them.
type fakeChain struct {
	mu sync.Mutex

	balance     *big.Int
	balanceErr  error
	submitErrAt int
	revertAt    int
	submitCalls int
	submitted   []types.TransactionIntent
	senders     []common.Address
	awaited     int

	// beforeSubmit runs before every submission is recorded
	beforeSubmit func(intent types.TransactionIntent)
}

func (f *fakeChain) Network() types.NetworkProfile {
	return testNetwork
}

func (f *fakeChain) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

func (f *fakeChain) Submit(ctx context.Context, intent types.TransactionIntent, key *ecdsa.PrivateKey) (*ethereum.PendingTx, error) {
	if f.beforeSubmit != nil {
		f.beforeSubmit(intent)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitCalls++
	n := f.submitCalls
	if n == f.submitErrAt {
		return nil, &ethereum.ChainError{Op: "send", Err: errors.New("nonce too low")}
	}
	f.submitted = append(f.submitted, intent)
	f.senders = append(f.senders, crypto.PubkeyToAddress(key.PublicKey))
	return &ethereum.PendingTx{Hash: common.BigToHash(big.NewInt(int64(n))), To: intent.To}, nil
}

func (f *fakeChain) AwaitConfirmation(ctx context.Context, pending *ethereum.PendingTx) (*types.TransactionReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awaited++

	receipt := &types.TransactionReceipt{Hash: pending.Hash, Status: types.StatusConfirmed, BlockNumber: 100}
	if f.awaited == f.revertAt {
		receipt.Status = types.StatusFailed
		return receipt, &ethereum.ChainError{Op: "receipt", Hash: pending.Hash, Reverted: true, Block: 100}
	}
	return receipt, nil
}

type fakeClaimer struct {
	mu      sync.Mutex
	results []faucet.ClaimResult
	claimed []common.Address

	beforeClaim func(addr common.Address)
}

func (f *fakeClaimer) Claim(ctx context.Context, address common.Address) faucet.ClaimResult {
	if f.beforeClaim != nil {
		f.beforeClaim(address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.claimed)
	f.claimed = append(f.claimed, address)
	if i < len(f.results) {
		return f.results[i]
	}
	return faucet.ClaimResult{Success: true, Hash: "0xabc", Amount: big.NewInt(1)}
}
