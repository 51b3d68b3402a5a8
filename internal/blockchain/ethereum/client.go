package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/igwedaniel/dripper/internal/config"
	dripperTypes "github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Backend is the subset of ethclient.Client the client depends on
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// PendingTx is a signed transaction accepted by the node
type PendingTx struct {
	Hash        common.Hash
	From        common.Address
	To          common.Address
	Nonce       uint64
	Value       *big.Int
	SubmittedAt time.Time
}

type EthereumClient struct {
	backend     Backend
	network     dripperTypes.NetworkProfile
	chainID     *big.Int
	rateLimiter *rate.Limiter
	config      config.ChainConfig
	logger      *logrus.Logger
}

// NewEthereumClient dials the network's RPC endpoint
func NewEthereumClient(ctx context.Context, network dripperTypes.NetworkProfile, cfg config.ChainConfig, logger *logrus.Logger) (*EthereumClient, error) {
	if network.RPC == "" {
		return nil, fmt.Errorf("network %s has no RPC URL", network.Key)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, network.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	client, err := NewEthereumClientWithBackend(dialCtx, ethclient.NewClient(rpcClient), network, cfg, logger)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}

	logger.Infof("Connected to %s (chain %s) via %s", network.Name, client.chainID, network.RPC)
	return client, nil
}

// NewEthereumClientWithBackend wraps an existing backend. The chain id is
// read once and checked against the profile when the profile sets one.
func NewEthereumClientWithBackend(ctx context.Context, backend Backend, network dripperTypes.NetworkProfile, cfg config.ChainConfig, logger *logrus.Logger) (*EthereumClient, error) {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	c := &EthereumClient{
		backend:     backend,
		network:     network,
		rateLimiter: rate.NewLimiter(limit, burst),
		config:      cfg,
		logger:      logger,
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, &ChainError{Op: "chain_id", Err: err}
	}
	if network.ChainID != 0 && chainID.Uint64() != network.ChainID {
		return nil, fmt.Errorf("network %s expects chain id %d, RPC reports %s", network.Key, network.ChainID, chainID)
	}
	c.chainID = chainID

	return c, nil
}

func (c *EthereumClient) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}
	return nil
}

func (c *EthereumClient) Network() dripperTypes.NetworkProfile {
	return c.network
}

func (c *EthereumClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Balance returns the latest balance of addr in wei
func (c *EthereumClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	balance, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, &ChainError{Op: "balance", Err: err}
	}
	return balance, nil
}

// Submit signs intent with key and broadcasts it. Unset gas fields are
// filled from the node.
func (c *EthereumClient) Submit(ctx context.Context, intent dripperTypes.TransactionIntent, key *ecdsa.PrivateKey) (*PendingTx, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)
	value := intent.Value
	if value == nil {
		value = new(big.Int)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &ChainError{Op: "nonce", Err: err}
	}

	gasLimit := intent.GasLimit
	if gasLimit == 0 {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		to := intent.To
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &to,
			Value: value,
			Data:  intent.Data,
		})
		if err != nil {
			return nil, &ChainError{Op: "estimate_gas", Err: err}
		}
	}

	txData, err := c.buildTxData(ctx, intent, nonce, gasLimit, value)
	if err != nil {
		return nil, err
	}

	signer := types.LatestSignerForChainID(c.chainID)
	tx, err := types.SignNewTx(key, signer, txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, &ChainError{Op: "send", Hash: tx.Hash(), Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"network": c.network.Key,
		"hash":    tx.Hash().Hex(),
		"nonce":   nonce,
		"to":      intent.To.Hex(),
	}).Debug("Transaction submitted")

	return &PendingTx{
		Hash:        tx.Hash(),
		From:        from,
		To:          intent.To,
		Nonce:       nonce,
		Value:       value,
		SubmittedAt: time.Now(),
	}, nil
}

// buildTxData prefers an EIP-1559 transaction and falls back to a legacy one
// on networks whose headers carry no base fee.
func (c *EthereumClient) buildTxData(ctx context.Context, intent dripperTypes.TransactionIntent, nonce, gasLimit uint64, value *big.Int) (types.TxData, error) {
	to := intent.To

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, &ChainError{Op: "header", Err: err}
	}

	if head.BaseFee == nil {
		gasPrice := intent.MaxFeePerGas
		if gasPrice == nil {
			if err := c.wait(ctx); err != nil {
				return nil, err
			}
			gasPrice, err = c.backend.SuggestGasPrice(ctx)
			if err != nil {
				return nil, &ChainError{Op: "gas_price", Err: err}
			}
		}
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     intent.Data,
		}, nil
	}

	tip := intent.MaxPriorityFeePerGas
	if tip == nil {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		tip, err = c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, &ChainError{Op: "gas_tip", Err: err}
		}
	}

	feeCap := intent.MaxFeePerGas
	if feeCap == nil {
		feeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	}
	if feeCap.Cmp(tip) < 0 {
		return nil, fmt.Errorf("max fee per gas %s is below priority fee %s", feeCap, tip)
	}

	return &types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      intent.Data,
	}, nil
}

// AwaitConfirmation polls for the receipt of pending until it is mined.
// Only a not-yet-mined receipt is polled again; any other lookup error is
// returned as a *ChainError. A reverted transaction is returned together
// with a *ChainError.
func (c *EthereumClient) AwaitConfirmation(ctx context.Context, pending *PendingTx) (*dripperTypes.TransactionReceipt, error) {
	if c.config.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConfirmationTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.fetchReceipt(ctx, pending.Hash)
		switch {
		case err == nil:
			return c.convertReceipt(pending, receipt)
		case ctx.Err() != nil:
			return nil, &ChainError{Op: "await", Hash: pending.Hash, Err: ctx.Err()}
		case !errors.Is(err, ethereum.NotFound):
			return nil, &ChainError{Op: "receipt", Hash: pending.Hash, Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, &ChainError{Op: "await", Hash: pending.Hash, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *EthereumClient) fetchReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.TransactionReceipt(ctx, hash)
}

func (c *EthereumClient) convertReceipt(pending *PendingTx, receipt *types.Receipt) (*dripperTypes.TransactionReceipt, error) {
	out := &dripperTypes.TransactionReceipt{
		Hash:    pending.Hash,
		Status:  dripperTypes.StatusConfirmed,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		out.Status = dripperTypes.StatusFailed
		return out, &ChainError{Op: "receipt", Hash: pending.Hash, Reverted: true, Block: out.BlockNumber}
	}
	return out, nil
}

func (c *EthereumClient) Close() {
	c.backend.Close()
}
