package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/igwedaniel/dripper/internal/config"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
)

// RedisStorage mirrors the wallet ledger into a Redis list and serves as
// the lookup cache
type RedisStorage struct {
	client    *redis.Client
	ledgerKey string
	logger    *logrus.Logger
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{
		client:    client,
		ledgerKey: cfg.LedgerKey,
		logger:    logger,
	}, nil
}

func (r *RedisStorage) Append(ctx context.Context, cred types.WalletCredential) error {
	if err := r.client.RPush(ctx, r.ledgerKey, cred.LedgerLine()).Err(); err != nil {
		return &PersistenceError{Target: "redis:" + r.ledgerKey, Err: err}
	}
	return nil
}

func (r *RedisStorage) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisStorage) GetCache(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Ping backs the status API health check
func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
