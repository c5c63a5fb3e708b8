// Package config defines the top-level configuration for the liquidation bot
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LIQBOT_* environment variables.
type Config struct {
	Chain       ChainConfig       `toml:"chain"`
	Wallet      WalletConfig      `toml:"wallet"`
	Euler       EulerConfig       `toml:"euler"`
	Liquidation LiquidationConfig `toml:"liquidation"`
	OneInch     OneInchConfig     `toml:"oneinch"`
	Relay       RelayConfig       `toml:"relay"`
	Tx          TxConfig          `toml:"tx"`
	Feed        FeedConfig        `toml:"feed"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Report      ReportConfig      `toml:"report"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Once        OnceConfig        `toml:"once"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ChainConfig holds the execution-client endpoint.
type ChainConfig struct {
	RPCURL  string `toml:"rpc_url"`
	ChainID int64  `toml:"chain_id"`
}

// WalletConfig holds the liquidator's signing credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// ReceiverSubAccountID, when non-zero, sends seized collateral to the
	// liquidator's sub-account with this id.
	ReceiverSubAccountID int `toml:"receiver_subaccount_id"`
}

// EulerConfig holds the protocol's contract addresses.
type EulerConfig struct {
	Euler          string `toml:"euler"`
	Markets        string `toml:"markets"`
	Liquidation    string `toml:"liquidation"`
	Exec           string `toml:"exec"`
	Swap           string `toml:"swap"`
	ReferenceAsset string `toml:"reference_asset"`
}

// LiquidationConfig holds search parameters.
type LiquidationConfig struct {
	FeeTiers                   []uint32 `toml:"fee_tiers"`
	RepayFractionStart         int      `toml:"repay_fraction_start"`
	MinYield                   string   `toml:"min_yield"`
	SkipInsufficientCollateral bool     `toml:"skip_insufficient_collateral"`
}

// OneInchConfig holds the aggregator quote endpoint. An empty APIURL disables
// aggregator swaps.
type OneInchConfig struct {
	APIURL  string   `toml:"api_url"`
	Timeout duration `toml:"timeout"`
}

// RelayConfig holds private-relay submission parameters.
type RelayConfig struct {
	Enabled         bool     `toml:"enabled"`
	URL             string   `toml:"url"`
	SigningKey      string   `toml:"signing_key"`
	MaxBlocks       int      `toml:"max_blocks"`
	DisableFallback bool     `toml:"disable_fallback"`
	PollInterval    duration `toml:"poll_interval"`
}

// TxConfig holds transaction option overrides. A zero multiplier or gas
// limit and a negative nonce mean "use the network's value".
type TxConfig struct {
	FeeMultiplier float64 `toml:"fee_multiplier"`
	Nonce         int64   `toml:"nonce"`
	GasLimit      uint64  `toml:"gas_limit"`
}

// FeedConfig holds the position indexer subscription parameters.
type FeedConfig struct {
	WsURL      string `toml:"ws_url"`
	QueryLimit int    `toml:"query_limit"`
	// HealthMax is in the indexer's units: 1000000 is a health ratio of 1.
	HealthMax float64 `toml:"health_max"`
	// Cooldown is how long an account is skipped after it was evaluated.
	Cooldown duration `toml:"cooldown"`
}

// PostgresConfig holds PostgreSQL connection parameters for the event log.
// An empty DSN and host disables the store.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// distributed signer lock and the event stream.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables report archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReportConfig controls the periodic event report.
type ReportConfig struct {
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// OnceConfig names the single position evaluated in "once" mode.
type OnceConfig struct {
	Violator   string `toml:"violator"`
	Underlying string `toml:"underlying"`
	Collateral string `toml:"collateral"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 1,
		},
		Liquidation: LiquidationConfig{
			FeeTiers:           []uint32{100, 500, 3000, 10000},
			RepayFractionStart: 98,
			MinYield:           "0.05",
		},
		OneInch: OneInchConfig{
			Timeout: duration{10 * time.Second},
		},
		Relay: RelayConfig{
			URL:          "https://relay.flashbots.net",
			PollInterval: duration{3 * time.Second},
		},
		Tx: TxConfig{
			Nonce: -1,
		},
		Feed: FeedConfig{
			WsURL:      "wss://escan-mainnet.euler.finance",
			QueryLimit: 500,
			HealthMax:  1000000,
			Cooldown:   duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Report: ReportConfig{
			Interval: duration{time.Hour},
			Prefix:   "reports",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    9100,
		},
		Notify: NotifyConfig{
			Events: []string{"ERROR", "EXECUTED"},
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"once":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

type namedAddr struct {
	name string
	addr string
}

// MinYieldWei parses MinYield, given in whole reference-asset units, into
// 18-decimal base units.
func (l LiquidationConfig) MinYieldWei() (*big.Int, error) {
	if strings.TrimSpace(l.MinYield) == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(l.MinYield)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("must not be negative, got %s", l.MinYield)
	}
	return d.Shift(18).BigInt(), nil
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.ReceiverSubAccountID < 0 || c.Wallet.ReceiverSubAccountID > 255 {
		errs = append(errs, fmt.Sprintf("wallet: receiver_subaccount_id must be 0-255, got %d", c.Wallet.ReceiverSubAccountID))
	}

	// Euler
	for _, f := range []namedAddr{
		{"euler", c.Euler.Euler},
		{"markets", c.Euler.Markets},
		{"liquidation", c.Euler.Liquidation},
		{"exec", c.Euler.Exec},
		{"swap", c.Euler.Swap},
		{"reference_asset", c.Euler.ReferenceAsset},
	} {
		if !common.IsHexAddress(f.addr) {
			errs = append(errs, fmt.Sprintf("euler: %s must be a hex address, got %q", f.name, f.addr))
		}
	}

	// Liquidation
	if c.Liquidation.RepayFractionStart < 1 || c.Liquidation.RepayFractionStart > 100 {
		errs = append(errs, fmt.Sprintf("liquidation: repay_fraction_start must be 1-100, got %d", c.Liquidation.RepayFractionStart))
	}
	for _, fee := range c.Liquidation.FeeTiers {
		if fee == 0 || fee >= 1<<24 {
			errs = append(errs, fmt.Sprintf("liquidation: fee tier %d out of range", fee))
		}
	}
	if _, err := c.Liquidation.MinYieldWei(); err != nil {
		errs = append(errs, fmt.Sprintf("liquidation: min_yield: %v", err))
	}

	// Relay
	if c.Relay.Enabled {
		if c.Relay.URL == "" {
			errs = append(errs, "relay: url must not be empty when enabled")
		}
		if c.Relay.MaxBlocks < 0 {
			errs = append(errs, "relay: max_blocks must be >= 0")
		}
	}

	// Tx
	if c.Tx.FeeMultiplier < 0 {
		errs = append(errs, "tx: fee_multiplier must be >= 0")
	}

	// Feed
	if c.Mode == "watch" && c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url is required for watch mode")
	}

	// Once
	if c.Mode == "once" {
		for _, f := range []namedAddr{
			{"violator", c.Once.Violator},
			{"underlying", c.Once.Underlying},
			{"collateral", c.Once.Collateral},
		} {
			if !common.IsHexAddress(f.addr) {
				errs = append(errs, fmt.Sprintf("once: %s must be a hex address, got %q", f.name, f.addr))
			}
		}
	}

	// Postgres
	if c.Postgres.Enabled() {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" && c.Report.Interval.Duration <= 0 {
		errs = append(errs, "report: interval must be positive when s3.bucket is set")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
