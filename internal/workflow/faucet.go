package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/igwedaniel/dripper/internal/storage"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
	"github.com/sirupsen/logrus"
)

// BatchSummary counts the outcome of a faucet batch
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// FaucetBatch generates wallets and claims faucet funds for each, one at a
// time with a fixed pause between wallets.
type FaucetBatch struct {
	network   types.NetworkProfile
	generate  Generator
	ledger    storage.Ledger
	claimer   Claimer
	publisher messaging.Publisher
	sleeper   clock.Sleeper
	delay     time.Duration
	tracker   *Tracker
	logger    *logrus.Logger
}

type FaucetBatchDeps struct {
	Network   types.NetworkProfile
	Ledger    storage.Ledger
	Claimer   Claimer
	Publisher messaging.Publisher
	Sleeper   clock.Sleeper
	Generate  Generator
	Delay     time.Duration
	Logger    *logrus.Logger
}

func NewFaucetBatch(deps FaucetBatchDeps) *FaucetBatch {
	b := &FaucetBatch{
		network:   deps.Network,
		generate:  deps.Generate,
		ledger:    deps.Ledger,
		claimer:   deps.Claimer,
		publisher: deps.Publisher,
		sleeper:   deps.Sleeper,
		delay:     deps.Delay,
		tracker:   NewTracker(types.WorkflowFaucet, deps.Network.Key),
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

func (b *FaucetBatch) Tracker() *Tracker {
	return b.tracker
}

// Run processes n wallets. A failed claim is counted and the batch moves
// on; a ledger failure or cancellation aborts it.
func (b *FaucetBatch) Run(ctx context.Context, n int) (BatchSummary, error) {
	if n < 1 {
		return BatchSummary{}, &ValidationError{Field: "wallet count", Reason: "must be a positive number"}
	}

	b.tracker.start()
	defer b.tracker.stop()

	summary := BatchSummary{}
	b.logger.Infof("Starting faucet batch of %d wallets on %s", n, b.network.Name)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		account, err := b.generate()
		if err != nil {
			return summary, fmt.Errorf("wallet %d/%d: %w", i+1, n, err)
		}

		entry := b.logger.WithFields(logrus.Fields{
			"wallet":  fmt.Sprintf("%d/%d", i+1, n),
			"address": account.Address.Hex(),
		})

		if err := b.ledger.Append(ctx, account.WalletCredential); err != nil {
			return summary, fmt.Errorf("wallet %d/%d: %w", i+1, n, err)
		}
		metrics.WalletsCreated.WithLabelValues(b.network.Key).Inc()

		entry.Info("Claiming faucet")
		result := b.claimer.Claim(ctx, account.Address)
		summary.Total++

		event := types.ClaimEvent{
			Network: b.network.Key,
			Address: account.Address.Hex(),
			Success: result.Success,
			TxHash:  result.Hash,
			Error:   result.Error,
		}
		if result.Success {
			summary.Succeeded++
			b.tracker.record(nil)
			metrics.FaucetClaims.WithLabelValues(b.network.Key, "success").Inc()
			event.Amount = wallet.FormatEther(result.Amount)
			entry.WithFields(logrus.Fields{
				"hash":   result.Hash,
				"amount": fmt.Sprintf("%s %s", event.Amount, b.network.Symbol),
			}).Info("Claim successful")
		} else {
			summary.Failed++
			b.tracker.record(fmt.Errorf("%s", result.Error))
			metrics.FaucetClaims.WithLabelValues(b.network.Key, "failure").Inc()
			entry.Warnf("Claim failed: %s", result.Error)
		}

		if err := b.publisher.Publish(ctx, messaging.NewEvent(types.EventTypeFaucetClaim, b.network.Key, event)); err != nil {
			entry.Warnf("Failed to publish claim event: %v", err)
		}

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if i < n-1 {
			b.tracker.nextRun(time.Now().Add(b.delay))
			entry.Debugf("Waiting %s before next wallet", b.delay)
			if err := b.sleeper.Sleep(ctx, b.delay); err != nil {
				return summary, err
			}
		}
	}

	b.logger.Infof("Faucet batch completed: %d wallets, %d claimed, %d failed", summary.Total, summary.Succeeded, summary.Failed)
	return summary, nil
}
