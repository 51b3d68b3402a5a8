package workflow

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
	"github.com/sirupsen/logrus"
)

// StakingState is the phase the loop is in
type StakingState int

const (
	StateExecuting StakingState = iota
	StateSleeping
)

func (s StakingState) String() string {
	if s == StateSleeping {
		return "sleeping"
	}
	return "executing"
}

// StakingParams is the fixed contract call repeated by the loop
type StakingParams struct {
	Wallet               wallet.Account
	Contract             common.Address
	Data                 []byte
	Value                *big.Int
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	CheckBalance         bool
	MinSleep             time.Duration
	MaxSleep             time.Duration
}

func (p StakingParams) Validate() error {
	switch {
	case p.Wallet.Key == nil:
		return &ValidationError{Field: "wallet", Reason: "no signing key"}
	case p.Contract == (common.Address{}):
		return &ValidationError{Field: "contract", Reason: "address is required"}
	case p.Value != nil && p.Value.Sign() < 0:
		return &ValidationError{Field: "value", Reason: "must not be negative"}
	case p.MinSleep <= 0:
		return &ValidationError{Field: "minimum sleep", Reason: "must be positive"}
	case p.MaxSleep < p.MinSleep:
		return &ValidationError{Field: "maximum sleep", Reason: "must not be below the minimum sleep"}
	}
	return nil
}

// StakeOutcome is the result of one Execute phase
type StakeOutcome struct {
	Attempt int
	Hash    common.Hash
	Receipt *types.TransactionReceipt
	Err     error
}

func (o StakeOutcome) Succeeded() bool {
	return o.Err == nil && o.Receipt.Succeeded()
}

// StakingLoop alternates between sending the staking call and sleeping a
// random interval. Every attempt is followed by exactly one sleep.
type StakingLoop struct {
	chain     Chain
	params    StakingParams
	publisher messaging.Publisher
	sleeper   clock.Sleeper
	int64N    func(n int64) int64
	tracker   *Tracker
	logger    *logrus.Logger

	state    atomic.Int32
	attempts int
}

type StakingLoopDeps struct {
	Chain     Chain
	Publisher messaging.Publisher
	Sleeper   clock.Sleeper
	Logger    *logrus.Logger
}

func NewStakingLoop(deps StakingLoopDeps, params StakingParams) (*StakingLoop, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Value == nil {
		params.Value = new(big.Int)
	}

	l := &StakingLoop{
		chain:     deps.Chain,
		params:    params,
		publisher: deps.Publisher,
		sleeper:   deps.Sleeper,
		int64N:    rand.Int64N,
		tracker:   NewTracker(types.WorkflowStaking, deps.Chain.Network().Key),
		logger:    deps.Logger,
	}
	if l.sleeper == nil {
		l.sleeper = clock.Real{}
	}
	if l.publisher == nil {
		l.publisher = &messaging.NoOpPublisher{}
	}
	return l, nil
}

func (l *StakingLoop) Tracker() *Tracker {
	return l.tracker
}

func (l *StakingLoop) State() StakingState {
	return StakingState(l.state.Load())
}

// NextSleep samples the pause after an attempt from [MinSleep, MaxSleep)
func (l *StakingLoop) NextSleep() time.Duration {
	span := int64(l.params.MaxSleep - l.params.MinSleep)
	if span <= 0 {
		return l.params.MinSleep
	}
	return l.params.MinSleep + time.Duration(l.int64N(span))
}

// Run loops until ctx is cancelled and then returns ctx.Err(). Failed
// attempts are logged and never stop the loop.
func (l *StakingLoop) Run(ctx context.Context) error {
	l.tracker.start()
	defer l.tracker.stop()

	l.logger.Infof("Starting staking loop for %s on %s", l.params.Wallet.Address.Hex(), l.chain.Network().Name)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome := l.Step(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sleep := l.NextSleep()
		l.state.Store(int32(StateSleeping))
		l.tracker.nextRun(time.Now().Add(sleep))
		l.publishOutcome(ctx, outcome, sleep)
		l.logger.Infof("Sleeping for %.2f hours", sleep.Hours())

		if err := l.sleeper.Sleep(ctx, sleep); err != nil {
			return err
		}
		l.state.Store(int32(StateExecuting))
	}
}

// Step performs a single Execute phase: optional balance check, submit,
// then wait for confirmation.
func (l *StakingLoop) Step(ctx context.Context) StakeOutcome {
	l.state.Store(int32(StateExecuting))
	l.attempts++
	outcome := StakeOutcome{Attempt: l.attempts}
	network := l.chain.Network()

	entry := l.logger.WithFields(logrus.Fields{
		"attempt":  outcome.Attempt,
		"contract": l.params.Contract.Hex(),
	})

	defer func() {
		l.tracker.record(outcome.Err)
		status := types.StatusConfirmed
		if !outcome.Succeeded() {
			status = types.StatusFailed
		}
		metrics.Transactions.WithLabelValues(network.Key, string(types.WorkflowStaking), string(status)).Inc()
	}()

	if l.params.CheckBalance {
		balance, err := l.chain.Balance(ctx, l.params.Wallet.Address)
		if err != nil {
			outcome.Err = err
			entry.Errorf("Staking balance check failed: %v", err)
			return outcome
		}
		if balance.Cmp(l.params.Value) < 0 {
			outcome.Err = fmt.Errorf("insufficient balance for staking: have %s, need %s %s",
				wallet.FormatEther(balance), wallet.FormatEther(l.params.Value), network.Symbol)
			entry.Error(outcome.Err)
			return outcome
		}
	}

	pending, err := l.chain.Submit(ctx, types.TransactionIntent{
		To:                   l.params.Contract,
		Value:                l.params.Value,
		Data:                 l.params.Data,
		GasLimit:             l.params.GasLimit,
		MaxFeePerGas:         l.params.MaxFeePerGas,
		MaxPriorityFeePerGas: l.params.MaxPriorityFeePerGas,
	}, l.params.Wallet.Key)
	if err != nil {
		outcome.Err = err
		entry.Errorf("Staking transaction failed: %v", err)
		return outcome
	}
	outcome.Hash = pending.Hash
	entry.WithField("hash", pending.Hash.Hex()).Infof("Transaction sent, waiting for confirmation: %s", network.TxURL(pending.Hash.Hex()))

	receipt, err := l.chain.AwaitConfirmation(ctx, pending)
	outcome.Receipt = receipt
	if err != nil {
		outcome.Err = err
		entry.Errorf("Staking transaction failed: %v", err)
		return outcome
	}

	entry.WithField("block", receipt.BlockNumber).Info("Staking transaction confirmed")
	return outcome
}

func (l *StakingLoop) publishOutcome(ctx context.Context, outcome StakeOutcome, sleep time.Duration) {
	network := l.chain.Network()
	event := types.StakeEvent{
		Network:   network.Key,
		Wallet:    l.params.Wallet.Address.Hex(),
		Contract:  l.params.Contract.Hex(),
		Success:   outcome.Succeeded(),
		NextSleep: sleep,
	}
	if outcome.Hash != (common.Hash{}) {
		event.TxHash = outcome.Hash.Hex()
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	if err := l.publisher.Publish(ctx, messaging.NewEvent(types.EventTypeStakeAttempt, network.Key, event)); err != nil {
		l.logger.Warnf("Failed to publish staking event: %v", err)
	}
}
