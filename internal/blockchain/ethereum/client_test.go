package ethereum

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/igwedaniel/dripper/internal/config"
	dripperTypes "github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu sync.Mutex

	chainID  *big.Int
	baseFee  *big.Int
	tip      *big.Int
	gas      uint64
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64

	sendErr      error
	sent         []*types.Transaction
	estimates    int
	receiptAfter int
	receiptPolls int
	receiptFails bool
	receiptErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:      big.NewInt(10143),
		baseFee:      big.NewInt(50_000_000_000),
		tip:          big.NewInt(1_500_000_000),
		gas:          21000,
		balances:     map[common.Address]*big.Int{},
		nonces:       map[common.Address]uint64{},
		receiptAfter: 0,
	}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return f.tip, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(7_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates++
	return f.gas, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptPolls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receiptPolls <= f.receiptAfter {
		return nil, ethereum.NotFound
	}
	status := types.ReceiptStatusSuccessful
	if f.receiptFails {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(101), GasUsed: 21000}, nil
}

func (f *fakeBackend) Close() {}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		RPCTimeout:          time.Second,
		PollInterval:        time.Millisecond,
		ConfirmationTimeout: time.Second,
	}
}

func newTestClient(t *testing.T, backend *fakeBackend) *EthereumClient {
	t.Helper()
	profile := dripperTypes.NetworkProfile{Key: "monad", Name: "Monad Testnet", ChainID: 10143}
	client, err := NewEthereumClientWithBackend(context.Background(), backend, profile, testChainConfig(), quietLogger())
	require.NoError(t, err)
	return client
}

func TestNewEthereumClient_ChainIDMismatch(t *testing.T) {
	backend := newFakeBackend()
	backend.chainID = big.NewInt(1)

	profile := dripperTypes.NetworkProfile{Key: "monad", ChainID: 10143}
	_, err := NewEthereumClientWithBackend(context.Background(), backend, profile, testChainConfig(), quietLogger())
	require.Error(t, err)
}

func TestBalance(t *testing.T) {
	backend := newFakeBackend()
	addr := common.HexToAddress("0x1")
	backend.balances[addr] = big.NewInt(42)

	client := newTestClient(t, backend)
	balance, err := client.Balance(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())
}

func TestSubmit_SignsDynamicFeeTx(t *testing.T) {
	backend := newFakeBackend()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	backend.nonces[from] = 7

	client := newTestClient(t, backend)
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pending, err := client.Submit(context.Background(), dripperTypes.TransactionIntent{
		To:    to,
		Value: big.NewInt(1_000_000_000_000_000),
	}, key)
	require.NoError(t, err)
	require.Equal(t, from, pending.From)
	require.Equal(t, uint64(7), pending.Nonce)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, pending.Hash, tx.Hash())
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(t, uint64(21000), tx.Gas())
	require.Equal(t, backend.tip, tx.GasTipCap())
	require.Equal(t, big.NewInt(101_500_000_000), tx.GasFeeCap())
	require.Equal(t, to, *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	require.NoError(t, err)
	require.Equal(t, from, sender)
}

func TestSubmit_ExplicitGasParameters(t *testing.T) {
	backend := newFakeBackend()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client := newTestClient(t, backend)
	_, err = client.Submit(context.Background(), dripperTypes.TransactionIntent{
		To:                   common.HexToAddress("0xc803D3Cbe1B4811442a4502153685a235Ea90741"),
		Value:                big.NewInt(1),
		Data:                 common.FromHex("0x1c3477dd"),
		GasLimit:             1_000_000,
		MaxFeePerGas:         big.NewInt(61_500_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_500_000_000),
	}, key)
	require.NoError(t, err)
	require.Zero(t, backend.estimates)

	tx := backend.sent[0]
	require.Equal(t, uint64(1_000_000), tx.Gas())
	require.Equal(t, big.NewInt(61_500_000_000), tx.GasFeeCap())
	require.Equal(t, common.FromHex("0x1c3477dd"), tx.Data())
}

func TestSubmit_LegacyWhenNoBaseFee(t *testing.T) {
	backend := newFakeBackend()
	backend.baseFee = nil
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client := newTestClient(t, backend)
	_, err = client.Submit(context.Background(), dripperTypes.TransactionIntent{To: common.HexToAddress("0x2")}, key)
	require.NoError(t, err)
	require.Equal(t, uint8(types.LegacyTxType), backend.sent[0].Type())
	require.Equal(t, big.NewInt(7_000_000_000), backend.sent[0].GasPrice())
}

func TestSubmit_RejectedByNode(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("insufficient funds for gas * price + value")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client := newTestClient(t, backend)
	_, err = client.Submit(context.Background(), dripperTypes.TransactionIntent{To: common.HexToAddress("0x2")}, key)

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, "send", chainErr.Op)
	require.Contains(t, err.Error(), "insufficient funds")
}

func TestAwaitConfirmation_PollsUntilMined(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptAfter = 3

	client := newTestClient(t, backend)
	pending := &PendingTx{Hash: common.HexToHash("0xabc")}

	receipt, err := client.AwaitConfirmation(context.Background(), pending)
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	require.Equal(t, uint64(101), receipt.BlockNumber)
	require.Equal(t, 4, backend.receiptPolls)
}

func TestAwaitConfirmation_Reverted(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptFails = true

	client := newTestClient(t, backend)
	receipt, err := client.AwaitConfirmation(context.Background(), &PendingTx{Hash: common.HexToHash("0xabc")})

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	require.True(t, chainErr.Reverted)
	require.Equal(t, dripperTypes.StatusFailed, receipt.Status)
	require.Equal(t, 1, backend.receiptPolls)
}

func TestAwaitConfirmation_Timeout(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptAfter = 1 << 30

	cfg := testChainConfig()
	cfg.ConfirmationTimeout = 20 * time.Millisecond
	client, err := NewEthereumClientWithBackend(context.Background(), backend, dripperTypes.NetworkProfile{Key: "x"}, cfg, quietLogger())
	require.NoError(t, err)

	_, err = client.AwaitConfirmation(context.Background(), &PendingTx{Hash: common.HexToHash("0xabc")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitConfirmation_LookupErrorIsNotRetried(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptErr = errors.New("invalid params")

	cfg := testChainConfig()
	cfg.ConfirmationTimeout = 0
	client, err := NewEthereumClientWithBackend(context.Background(), backend, dripperTypes.NetworkProfile{Key: "x"}, cfg, quietLogger())
	require.NoError(t, err)

	receipt, err := client.AwaitConfirmation(context.Background(), &PendingTx{Hash: common.HexToHash("0xabc")})
	require.Nil(t, receipt)

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, "receipt", chainErr.Op)
	require.False(t, chainErr.Reverted)
	require.ErrorContains(t, err, "invalid params")
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, backend.receiptPolls)
}
