package workflow

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
	"github.com/stretchr/testify/require"
)

var stakingContract = common.HexToAddress("0x00000000000000000000000000000000000051ac")

func stakingParams(t *testing.T) StakingParams {
	t.Helper()
	account, err := wallet.Generate()
	require.NoError(t, err)
	value, err := wallet.ParseEther("0.01")
	require.NoError(t, err)
	return StakingParams{
		Wallet:   account,
		Contract: stakingContract,
		Data:     common.FromHex("0x1c3477dd"),
		Value:    value,
		MinSleep: 5 * time.Hour,
		MaxSleep: 6 * time.Hour,
	}
}

func newStakingLoop(t *testing.T, chain *fakeChain, sleeper clock.Sleeper, publisher messaging.Publisher, params StakingParams) *StakingLoop {
	t.Helper()
	loop, err := NewStakingLoop(StakingLoopDeps{
		Chain:     chain,
		Publisher: publisher,
		Sleeper:   sleeper,
		Logger:    quietLogger(),
	}, params)
	require.NoError(t, err)
	return loop
}

func TestStakingParams_Validate(t *testing.T) {
	p := stakingParams(t)
	require.NoError(t, p.Validate())

	p.Contract = common.Address{}
	require.Error(t, p.Validate())

	p = stakingParams(t)
	p.MaxSleep = time.Hour
	require.Error(t, p.Validate())
}

func TestStakingLoop_Step(t *testing.T) {
	chain := &fakeChain{}
	params := stakingParams(t)
	params.GasLimit = 1_000_000
	loop := newStakingLoop(t, chain, &clock.Recorder{}, nil, params)

	outcome := loop.Step(context.Background())
	require.True(t, outcome.Succeeded())
	require.Equal(t, 1, outcome.Attempt)
	require.Len(t, chain.submitted, 1)

	intent := chain.submitted[0]
	require.Equal(t, stakingContract, intent.To)
	require.Equal(t, params.Value, intent.Value)
	require.Equal(t, params.Data, intent.Data)
	require.Equal(t, uint64(1_000_000), intent.GasLimit)
}

func TestStakingLoop_InsufficientBalanceIsFailedAttempt(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1)}
	params := stakingParams(t)
	params.CheckBalance = true
	loop := newStakingLoop(t, chain, &clock.Recorder{}, nil, params)

	outcome := loop.Step(context.Background())
	require.False(t, outcome.Succeeded())
	require.ErrorContains(t, outcome.Err, "insufficient balance")
	require.Empty(t, chain.submitted)
	require.Equal(t, uint64(1), loop.Tracker().Snapshot().Failed)
}

func TestStakingLoop_NextSleepWithinWindow(t *testing.T) {
	loop := newStakingLoop(t, &fakeChain{}, &clock.Recorder{}, nil, stakingParams(t))

	for i := 0; i < 1000; i++ {
		d := loop.NextSleep()
		require.GreaterOrEqual(t, d, 5*time.Hour)
		require.Less(t, d, 6*time.Hour)
	}
}

func TestStakingLoop_EveryAttemptFollowedByOneSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// attempts 2 and 3 fail in different ways
	chain := &fakeChain{submitErrAt: 2, revertAt: 2}
	hub := messaging.NewHub(10, quietLogger())

	const rounds = 4
	sleeper := &clock.Recorder{OnSleep: func(n int) {
		if n == rounds {
			cancel()
		}
	}}
	loop := newStakingLoop(t, chain, sleeper, hub, stakingParams(t))

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, sleeper.Calls(), rounds)
	for _, d := range sleeper.Calls() {
		require.GreaterOrEqual(t, d, 5*time.Hour)
		require.Less(t, d, 6*time.Hour)
	}

	events := hub.Recent(0)
	require.Len(t, events, rounds)
	var outcomes []bool
	for _, e := range events {
		require.Equal(t, types.EventTypeStakeAttempt, e.Type)
		outcomes = append(outcomes, e.Payload.(types.StakeEvent).Success)
	}
	require.Equal(t, []bool{true, false, false, true}, outcomes)

	stats := loop.Tracker().Snapshot()
	require.Equal(t, uint64(rounds), stats.Attempts)
	require.Equal(t, uint64(2), stats.Failed)
	require.False(t, stats.IsRunning)
}

func TestStakingLoop_CancelledWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chain := &fakeChain{}
	loop := newStakingLoop(t, chain, cancellingSleeper{cancel: cancel}, nil, stakingParams(t))

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, chain.submitted, 1)
	require.Equal(t, StateSleeping, loop.State())
}

func TestStakingLoop_BalanceErrorDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := &fakeChain{balanceErr: errors.New("rpc unavailable")}
	params := stakingParams(t)
	params.CheckBalance = true
	sleeper := &clock.Recorder{OnSleep: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	loop := newStakingLoop(t, chain, sleeper, nil, params)

	require.ErrorIs(t, loop.Run(ctx), context.Canceled)
	require.Equal(t, uint64(3), loop.Tracker().Snapshot().Failed)
}

type cancellingSleeper struct{ cancel context.CancelFunc }

func (s cancellingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.cancel()
	<-ctx.Done()
	return ctx.Err()
}
