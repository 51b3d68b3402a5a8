package workflow

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/igwedaniel/dripper/internal/storage"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
	"github.com/sirupsen/logrus"
)

// MaxTransferDelay is the largest accepted pause between transfers, in
// seconds
const MaxTransferDelay = 24 * 60 * 60

// TransferParams describes one transfer batch. Delays are whole seconds.
type TransferParams struct {
	Sender    wallet.Account
	AmountWei *big.Int
	Count     int
	MinDelay  int
	MaxDelay  int
}

// Validate checks the parameters before anything touches the network
func (p TransferParams) Validate() error {
	switch {
	case p.Sender.Key == nil:
		return &ValidationError{Field: "sender", Reason: "no signing key"}
	case p.AmountWei == nil || p.AmountWei.Sign() <= 0:
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	case p.Count < 1:
		return &ValidationError{Field: "transaction count", Reason: "must be a positive number"}
	case p.MinDelay < 0:
		return &ValidationError{Field: "minimum delay", Reason: "must not be negative"}
	case p.MaxDelay < p.MinDelay:
		return &ValidationError{Field: "maximum delay", Reason: "must not be below the minimum delay"}
	case p.MaxDelay > MaxTransferDelay:
		return &ValidationError{Field: "maximum delay", Reason: fmt.Sprintf("must not exceed %d seconds", MaxTransferDelay)}
	}
	return nil
}

// TransferSummary lists the confirmed transfers of a batch
type TransferSummary struct {
	Completed int
	Hashes    []common.Hash
}

// TransferBatch sends a fixed amount from one sender to freshly generated
// recipients, waiting for each transfer to confirm before the next.
type TransferBatch struct {
	chain     Chain
	generate  Generator
	ledger    storage.Ledger
	publisher messaging.Publisher
	sleeper   clock.Sleeper
	intN      func(n int) int
	tracker   *Tracker
	logger    *logrus.Logger
}

type TransferBatchDeps struct {
	Chain     Chain
	Ledger    storage.Ledger
	Publisher messaging.Publisher
	Sleeper   clock.Sleeper
	Generate  Generator
	Logger    *logrus.Logger
}

func NewTransferBatch(deps TransferBatchDeps) *TransferBatch {
	b := &TransferBatch{
		chain:     deps.Chain,
		generate:  deps.Generate,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		sleeper:   deps.Sleeper,
		intN:      rand.IntN,
		tracker:   NewTracker(types.WorkflowTransfer, deps.Chain.Network().Key),
		logger:    deps.Logger,
	}
	if b.generate == nil {
		b.generate = wallet.Generate
	}
	if b.sleeper == nil {
		b.sleeper = clock.Real{}
	}
	if b.publisher == nil {
		b.publisher = &messaging.NoOpPublisher{}
	}
	return b
}

func (b *TransferBatch) Tracker() *Tracker {
	return b.tracker
}

// Run executes the batch. The first failure stops it and is returned
// wrapped with the 1-based transaction index.
func (b *TransferBatch) Run(ctx context.Context, params TransferParams) (TransferSummary, error) {
	if err := params.Validate(); err != nil {
		return TransferSummary{}, err
	}

	b.tracker.start()
	defer b.tracker.stop()

	network := b.chain.Network()
	summary := TransferSummary{}
	b.logger.WithFields(logrus.Fields{
		"network": network.Name,
		"sender":  params.Sender.Address.Hex(),
		"amount":  fmt.Sprintf("%s %s", wallet.FormatEther(params.AmountWei), network.Symbol),
		"count":   params.Count,
	}).Info("Starting transfer batch")

	for i := 0; i < params.Count; i++ {
		hash, err := b.transferOnce(ctx, params, i)
		b.tracker.record(err)
		if err != nil {
			return summary, fmt.Errorf("transaction %d/%d: %w", i+1, params.Count, err)
		}
		summary.Completed++
		summary.Hashes = append(summary.Hashes, hash)

		if i < params.Count-1 {
			delay := b.sampleDelay(params.MinDelay, params.MaxDelay)
			b.tracker.nextRun(time.Now().Add(delay))
			b.logger.Infof("Waiting %s before next transaction", delay)
			if err := b.sleeper.Sleep(ctx, delay); err != nil {
				return summary, err
			}
		}
	}

	b.logger.Infof("All %d transactions completed successfully", summary.Completed)
	return summary, nil
}

func (b *TransferBatch) transferOnce(ctx context.Context, params TransferParams, i int) (common.Hash, error) {
	network := b.chain.Network()

	recipient, err := b.generate()
	if err != nil {
		return common.Hash{}, err
	}
	entry := b.logger.WithFields(logrus.Fields{
		"tx":        fmt.Sprintf("%d/%d", i+1, params.Count),
		"recipient": recipient.Address.Hex(),
	})

	if err := b.ledger.Append(ctx, recipient.WalletCredential); err != nil {
		return common.Hash{}, err
	}
	metrics.WalletsCreated.WithLabelValues(network.Key).Inc()

	pending, err := b.chain.Submit(ctx, types.TransactionIntent{
		To:    recipient.Address,
		Value: params.AmountWei,
	}, params.Sender.Key)
	if err != nil {
		metrics.Transactions.WithLabelValues(network.Key, string(types.WorkflowTransfer), string(types.StatusFailed)).Inc()
		return common.Hash{}, err
	}
	entry.WithField("hash", pending.Hash.Hex()).Infof("Transaction sent, view on explorer: %s", network.TxURL(pending.Hash.Hex()))

	receipt, err := b.chain.AwaitConfirmation(ctx, pending)
	if err != nil {
		metrics.Transactions.WithLabelValues(network.Key, string(types.WorkflowTransfer), string(types.StatusFailed)).Inc()
		return pending.Hash, err
	}
	metrics.Transactions.WithLabelValues(network.Key, string(types.WorkflowTransfer), string(receipt.Status)).Inc()
	entry.WithField("block", receipt.BlockNumber).Info("Transaction confirmed")

	event := types.TransferEvent{
		Network:   network.Key,
		From:      params.Sender.Address.Hex(),
		To:        recipient.Address.Hex(),
		AmountWei: params.AmountWei.String(),
		TxHash:    pending.Hash.Hex(),
		Index:     i + 1,
		Total:     params.Count,
	}
	if err := b.publisher.Publish(ctx, messaging.NewEvent(types.EventTypeTransfer, network.Key, event)); err != nil {
		entry.Warnf("Failed to publish transfer event: %v", err)
	}

	return pending.Hash, nil
}

// sampleDelay picks a whole number of seconds uniformly from [min, max]
func (b *TransferBatch) sampleDelay(min, max int) time.Duration {
	return time.Duration(min+b.intN(max-min+1)) * time.Second
}
