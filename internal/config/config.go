package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Files    FilesConfig    `mapstructure:"files"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Faucet   FaucetConfig   `mapstructure:"faucet"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Staking  StakingConfig  `mapstructure:"staking"`
	Activity ActivityConfig `mapstructure:"activity"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type FilesConfig struct {
	Networks    string `mapstructure:"networks"`
	Wallets     string `mapstructure:"wallets"`
	PrivateKeys string `mapstructure:"private_keys"`
	Proxies     string `mapstructure:"proxies"`
}

type HTTPConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type ChainConfig struct {
	RPCTimeout          time.Duration `mapstructure:"rpc_timeout"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	BalanceConcurrency  int           `mapstructure:"balance_concurrency"`
}

type FaucetConfig struct {
	Network string        `mapstructure:"network"`
	Delay   time.Duration `mapstructure:"delay"`
	Wallets int           `mapstructure:"wallets"`
}

// TransferConfig holds defaults for the transfer prompt. Delays are whole
// seconds.
type TransferConfig struct {
	Network     string `mapstructure:"network"`
	SenderIndex int    `mapstructure:"sender_index"`
	Amount      string `mapstructure:"amount"`
	Count       int    `mapstructure:"count"`
	MinDelay    int    `mapstructure:"min_delay"`
	MaxDelay    int    `mapstructure:"max_delay"`
}

type StakingConfig struct {
	Network         string        `mapstructure:"network"`
	SenderIndex     int           `mapstructure:"sender_index"`
	Contract        string        `mapstructure:"contract"`
	Data            string        `mapstructure:"data"`
	Value           string        `mapstructure:"value"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	MaxFeeGwei      string        `mapstructure:"max_fee_gwei"`
	PriorityFeeGwei string        `mapstructure:"priority_fee_gwei"`
	CheckBalance    bool          `mapstructure:"check_balance"`
	MinSleep        time.Duration `mapstructure:"min_sleep"`
	MaxSleep        time.Duration `mapstructure:"max_sleep"`
}

type ActivityConfig struct {
	Network     string `mapstructure:"network"`
	URLTemplate string `mapstructure:"url_template"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	LedgerKey    string        `mapstructure:"ledger_key"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RabbitMQConfig struct {
	URL           string `mapstructure:"url"`
	Exchange      string `mapstructure:"exchange"`
	QueuePrefix   string `mapstructure:"queue_prefix"`
	PrefetchCount int    `mapstructure:"prefetch_count"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml from ./config or the working directory. A missing
// file is fine; defaults and environment still apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	return load(v)
}

// LoadFile reads the configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	overrideWithEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that would otherwise fail deep inside a workflow
func (c *Config) Validate() error {
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("http.max_attempts must be at least 1, got %d", c.HTTP.MaxAttempts)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.Chain.PollInterval <= 0 {
		return fmt.Errorf("chain.poll_interval must be positive")
	}
	if c.Chain.ConfirmationTimeout < 0 {
		return fmt.Errorf("chain.confirmation_timeout must not be negative")
	}
	if c.Staking.MinSleep <= 0 || c.Staking.MaxSleep < c.Staking.MinSleep {
		return fmt.Errorf("staking sleep window [%s, %s) is invalid", c.Staking.MinSleep, c.Staking.MaxSleep)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("files.networks", "config/networks.yaml")
	v.SetDefault("files.wallets", "wallets.txt")
	v.SetDefault("files.private_keys", "pk.txt")
	v.SetDefault("files.proxies", "proxies.txt")

	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.retry_delay", "2s")
	v.SetDefault("http.timeout", "10s")

	v.SetDefault("chain.rpc_timeout", "30s")
	v.SetDefault("chain.requests_per_second", 10)
	v.SetDefault("chain.burst", 10)
	v.SetDefault("chain.poll_interval", "2s")
	v.SetDefault("chain.confirmation_timeout", "10m")
	v.SetDefault("chain.balance_concurrency", 8)

	v.SetDefault("faucet.network", "somnia")
	v.SetDefault("faucet.delay", "5s")

	v.SetDefault("transfer.network", "somnia")
	v.SetDefault("transfer.sender_index", 0)

	v.SetDefault("staking.network", "monad")
	v.SetDefault("staking.contract", "staking")
	v.SetDefault("staking.value", "0.01")
	v.SetDefault("staking.check_balance", false)
	v.SetDefault("staking.min_sleep", "5h")
	v.SetDefault("staking.max_sleep", "6h")

	v.SetDefault("activity.network", "monad")
	v.SetDefault("activity.url_template", "https://layerhub.xyz/be-api/wallets/monad_testnet/{address}")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.ledger_key", "dripper:wallets")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("rabbitmq.exchange", "dripper.events")
	v.SetDefault("rabbitmq.queue_prefix", "dripper")
	v.SetDefault("rabbitmq.prefetch_count", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func overrideWithEnv(v *viper.Viper) {
	if path := os.Getenv("PROXY_FILE"); path != "" {
		v.Set("files.proxies", path)
	}
	if path := os.Getenv("PK_FILE"); path != "" {
		v.Set("files.private_keys", path)
	}
	if path := os.Getenv("WALLET_FILE"); path != "" {
		v.Set("files.wallets", path)
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		v.Set("redis.url", redisURL)
		v.Set("redis.enabled", true)
	}
	if rabbitURL := os.Getenv("RABBITMQ_URL"); rabbitURL != "" {
		v.Set("rabbitmq.url", rabbitURL)
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("logging.level", logLevel)
	}
}
