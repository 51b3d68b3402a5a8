package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/igwedaniel/dripper/internal/activity"
	"github.com/igwedaniel/dripper/internal/api"
	"github.com/igwedaniel/dripper/internal/blockchain/ethereum"
	"github.com/igwedaniel/dripper/internal/config"
	"github.com/igwedaniel/dripper/internal/faucet"
	"github.com/igwedaniel/dripper/internal/httpclient"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/proxy"
	"github.com/igwedaniel/dripper/internal/storage"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/igwedaniel/dripper/internal/wallet"
	"github.com/igwedaniel/dripper/internal/workflow"
	"github.com/sirupsen/logrus"
)

const activityCacheTTL = 5 * time.Minute

// app holds the shared collaborators every workflow is built from
type app struct {
	cfg       *config.Config
	networks  config.Networks
	prompt    *prompter
	logger    *logrus.Logger
	ledger    storage.Ledger
	cache     storage.Cache
	redis     *storage.RedisStorage
	hub       *messaging.Hub
	publisher messaging.Publisher
	http      *httpclient.Client
	policy    httpclient.RetryPolicy
	server    *api.Server
}

func newApp(ctx context.Context, cfg *config.Config, networks config.Networks, prompt *prompter, logger *logrus.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		networks: networks,
		prompt:   prompt,
		logger:   logger,
		hub:      messaging.NewHub(200, logger),
		policy: httpclient.RetryPolicy{
			MaxAttempts: cfg.HTTP.MaxAttempts,
			Retryable:   []httpclient.FailureKind{httpclient.FailureDNSTemporary},
			Delay:       cfg.HTTP.RetryDelay,
			Timeout:     cfg.HTTP.Timeout,
		},
	}

	// Initialize storage
	fileLedger := storage.NewFileLedger(cfg.Files.Wallets)
	a.ledger = fileLedger
	a.cache = storage.NewInMemoryStorage()
	if cfg.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.ledger = storage.NewMirroredLedger(fileLedger, logger, redisStorage)
		a.cache = redisStorage
		a.redis = redisStorage
		logger.Info("Redis mirror enabled")
	}

	// Initialize messaging
	publishers := messaging.MultiPublisher{a.hub}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			a.ledger.Close()
			return nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		publishers = append(publishers, rabbit)
		logger.Info("RabbitMQ publisher initialized")
	}
	a.publisher = publishers

	var opts []httpclient.Option
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, httpclient.WithDefaultHeaders(map[string]string{"User-Agent": cfg.HTTP.UserAgent}))
	}
	pool := proxy.NewPool(proxy.FileSource{Path: cfg.Files.Proxies}, logger)
	a.http = httpclient.New(pool, logger, opts...)

	return a, nil
}

// serve starts the status API when enabled
func (a *app) serve(stats ...api.StatsSource) {
	if !a.cfg.Server.Enabled {
		return
	}
	handlers := api.NewHandlers(a.networks, a.hub, a.logger, stats...)
	if a.redis != nil {
		handlers.AddDependency("redis", a.redis)
	}
	a.server = api.NewServer(a.cfg.Server, handlers, a.logger)
	go func() {
		if err := a.server.Start(); err != nil {
			a.logger.Errorf("HTTP server error: %v", err)
		}
	}()
}

func (a *app) stopServer(ctx context.Context) {
	if a.server == nil {
		return
	}
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Errorf("Error stopping API server: %v", err)
	}
	a.server = nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warnf("Error closing publisher: %v", err)
		}
		a.publisher = nil
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warnf("Error closing ledger: %v", err)
		}
		a.ledger = nil
	}
}

func (a *app) dialChain(ctx context.Context, key string) (*ethereum.EthereumClient, error) {
	profile, err := a.networks.Get(key)
	if err != nil {
		return nil, err
	}
	return ethereum.NewEthereumClient(ctx, profile, a.cfg.Chain, a.logger)
}

// pickSender reads every key balance and returns the account at index
func (a *app) pickSender(ctx context.Context, client *ethereum.EthereumClient, accounts []wallet.Account, index int) (wallet.Account, error) {
	sender, all, err := wallet.SelectSender(ctx, accounts, client, index, a.cfg.Chain.BalanceConcurrency)
	if err != nil {
		return wallet.Account{}, err
	}
	symbol := client.Network().Symbol
	for i, f := range all {
		a.logger.Infof("[%d] %s %s %s", i, f.Address.Hex(), wallet.FormatEther(f.Balance), symbol)
	}
	a.logger.WithFields(logrus.Fields{
		"address": sender.Address.Hex(),
		"balance": wallet.FormatEther(sender.Balance),
	}).Info("Selected sender")
	return sender.Account, nil
}

func (a *app) runFaucet(ctx context.Context) error {
	profile, err := a.networks.Get(a.cfg.Faucet.Network)
	if err != nil {
		return err
	}
	if profile.FaucetAPI == "" {
		return fmt.Errorf("network %s has no faucet api", profile.Key)
	}

	n, err := a.prompt.Int("How many wallets to create", a.cfg.Faucet.Wallets)
	if err != nil {
		return err
	}

	batch := workflow.NewFaucetBatch(workflow.FaucetBatchDeps{
		Network:   profile,
		Ledger:    a.ledger,
		Claimer:   faucet.NewClaimer(a.http, profile.FaucetAPI, a.policy, a.logger),
		Publisher: a.publisher,
		Delay:     a.cfg.Faucet.Delay,
		Logger:    a.logger,
	})
	a.serve(batch.Tracker())

	summary, err := batch.Run(ctx, n)
	a.logger.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Faucet batch finished")
	return err
}

func (a *app) runTransfer(ctx context.Context) error {
	accounts, err := wallet.LoadPrivateKeys(a.cfg.Files.PrivateKeys)
	if err != nil {
		return err
	}

	defaults := a.cfg.Transfer
	amount, err := a.prompt.Text("Amount to send per transaction", defaults.Amount)
	if err != nil {
		return err
	}
	count, err := a.prompt.Int("Number of transactions", defaults.Count)
	if err != nil {
		return err
	}
	minDelay, err := a.prompt.Int("Minimum delay between transactions (seconds)", defaults.MinDelay)
	if err != nil {
		return err
	}
	maxDelay, err := a.prompt.Int("Maximum delay between transactions (seconds)", defaults.MaxDelay)
	if err != nil {
		return err
	}

	amountWei, err := wallet.ParseEther(amount)
	if err != nil {
		return &workflow.ValidationError{Field: "amount", Reason: err.Error()}
	}
	params := workflow.TransferParams{
		Sender:    accounts[0],
		AmountWei: amountWei,
		Count:     count,
		MinDelay:  minDelay,
		MaxDelay:  maxDelay,
	}
	// reject bad answers before the RPC is dialed
	if err := params.Validate(); err != nil {
		return err
	}

	client, err := a.dialChain(ctx, defaults.Network)
	if err != nil {
		return err
	}
	defer client.Close()

	params.Sender, err = a.pickSender(ctx, client, accounts, defaults.SenderIndex)
	if err != nil {
		return err
	}

	batch := workflow.NewTransferBatch(workflow.TransferBatchDeps{
		Chain:     client,
		Ledger:    a.ledger,
		Publisher: a.publisher,
		Logger:    a.logger,
	})
	a.serve(batch.Tracker())

	summary, err := batch.Run(ctx, params)
	a.logger.Infof("Transfer batch finished: %d/%d confirmed", summary.Completed, params.Count)
	return err
}

func (a *app) runStaking(ctx context.Context) error {
	cfg := a.cfg.Staking

	accounts, err := wallet.LoadPrivateKeys(a.cfg.Files.PrivateKeys)
	if err != nil {
		return err
	}
	profile, err := a.networks.Get(cfg.Network)
	if err != nil {
		return err
	}
	params, err := stakingParams(cfg, profile)
	if err != nil {
		return err
	}
	params.Wallet = accounts[0]
	if err := params.Validate(); err != nil {
		return err
	}

	client, err := a.dialChain(ctx, cfg.Network)
	if err != nil {
		return err
	}
	defer client.Close()

	params.Wallet, err = a.pickSender(ctx, client, accounts, cfg.SenderIndex)
	if err != nil {
		return err
	}

	loop, err := workflow.NewStakingLoop(workflow.StakingLoopDeps{
		Chain:     client,
		Publisher: a.publisher,
		Logger:    a.logger,
	}, params)
	if err != nil {
		return err
	}
	a.serve(loop.Tracker())

	return loop.Run(ctx)
}

// stakingParams turns the configured call into loop parameters. The wallet
// is filled in by the caller.
func stakingParams(cfg config.StakingConfig, profile types.NetworkProfile) (workflow.StakingParams, error) {
	params := workflow.StakingParams{
		GasLimit:     cfg.GasLimit,
		CheckBalance: cfg.CheckBalance,
		MinSleep:     cfg.MinSleep,
		MaxSleep:     cfg.MaxSleep,
	}

	if common.IsHexAddress(cfg.Contract) {
		params.Contract = common.HexToAddress(cfg.Contract)
	} else {
		contract, err := profile.Contract(cfg.Contract)
		if err != nil {
			return params, err
		}
		params.Contract = contract
	}

	if cfg.Data != "" {
		data, err := hexutil.Decode(cfg.Data)
		if err != nil {
			return params, &workflow.ValidationError{Field: "staking data", Reason: err.Error()}
		}
		params.Data = data
	}

	var err error
	if params.Value, err = parseOptional(cfg.Value, wallet.ParseEther); err != nil {
		return params, &workflow.ValidationError{Field: "staking value", Reason: err.Error()}
	}
	if params.MaxFeePerGas, err = parseOptional(cfg.MaxFeeGwei, wallet.ParseGwei); err != nil {
		return params, &workflow.ValidationError{Field: "max fee", Reason: err.Error()}
	}
	if params.MaxPriorityFeePerGas, err = parseOptional(cfg.PriorityFeeGwei, wallet.ParseGwei); err != nil {
		return params, &workflow.ValidationError{Field: "priority fee", Reason: err.Error()}
	}
	return params, nil
}

func parseOptional(raw string, parse func(string) (*big.Int, error)) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parse(raw)
}

func (a *app) runActivity(ctx context.Context, address string) error {
	var addresses []common.Address
	if address != "" {
		if !common.IsHexAddress(address) {
			return &workflow.ValidationError{Field: "address", Reason: fmt.Sprintf("%q is not a hex address", address)}
		}
		addresses = append(addresses, common.HexToAddress(address))
	} else {
		accounts, err := wallet.LoadPrivateKeys(a.cfg.Files.PrivateKeys)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			addresses = append(addresses, acc.Address)
		}
	}

	checker, err := activity.NewChecker(a.http, a.cfg.Activity.URLTemplate, a.policy, a.cache, activityCacheTTL, a.logger)
	if err != nil {
		return err
	}

	for _, addr := range addresses {
		report, err := checker.Check(ctx, addr)
		if err != nil {
			a.logger.Errorf("Activity lookup for %s failed: %v", addr.Hex(), err)
			continue
		}
		pretty, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		a.logger.WithField("address", addr.Hex()).Infof("Activity report:\n%s", pretty)

		event := messaging.NewEvent("activity.report", a.cfg.Activity.Network, report)
		if err := a.publisher.Publish(ctx, event); err != nil {
			a.logger.Warnf("Failed to publish activity report: %v", err)
		}
	}
	return ctx.Err()
}
