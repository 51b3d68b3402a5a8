package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igwedaniel/dripper/internal/config"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/sirupsen/logrus"
)

func main() {
	mode := flag.String("mode", "", "workflow to run: faucet, transfer, staking or activity")
	configPath := flag.String("config", "", "path to config.yaml (default ./config/config.yaml)")
	address := flag.String("address", "", "address to look up in activity mode (default: every key in the key file)")
	flag.Parse()

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	metrics.Init()

	networks, err := config.LoadNetworks(cfg.Files.Networks, logger)
	if err != nil {
		logger.Fatalf("Failed to load networks: %v", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping...")
		cancel()
	}()

	a, err := newApp(ctx, cfg, networks, newPrompter(os.Stdin, os.Stdout), logger)
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	logger.WithField("mode", *mode).Info("Starting dripper")

	switch *mode {
	case "faucet":
		err = a.runFaucet(ctx)
	case "transfer":
		err = a.runTransfer(ctx)
	case "staking":
		err = a.runStaking(ctx)
	case "activity":
		err = a.runActivity(ctx, *address)
	default:
		flag.Usage()
		logger.Fatalf("Unknown mode %q", *mode)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	a.stopServer(shutdownCtx)

	switch {
	case err == nil:
		logger.Info("Dripper finished")
	case errors.Is(err, context.Canceled):
		logger.Info("Dripper stopped")
	default:
		logger.Errorf("Workflow %s failed: %v", *mode, err)
		a.Close()
		os.Exit(1)
	}
}

func setupLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Set log format
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return logger
}
