package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LIQBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LIQBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "LIQBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "LIQBOT_CHAIN_ID")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "LIQBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "LIQBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "LIQBOT_WALLET_KEY_PASSWORD")
	setInt(&cfg.Wallet.ReceiverSubAccountID, "LIQBOT_RECEIVER_SUBACCOUNT_ID")

	// ── Euler ──
	setStr(&cfg.Euler.Euler, "LIQBOT_EULER_ADDRESS")
	setStr(&cfg.Euler.Markets, "LIQBOT_EULER_MARKETS")
	setStr(&cfg.Euler.Liquidation, "LIQBOT_EULER_LIQUIDATION")
	setStr(&cfg.Euler.Exec, "LIQBOT_EULER_EXEC")
	setStr(&cfg.Euler.Swap, "LIQBOT_EULER_SWAP")
	setStr(&cfg.Euler.ReferenceAsset, "LIQBOT_EULER_REFERENCE_ASSET")

	// ── Liquidation ──
	setStr(&cfg.Liquidation.MinYield, "LIQBOT_MIN_YIELD")
	setInt(&cfg.Liquidation.RepayFractionStart, "LIQBOT_REPAY_FRACTION_START")
	setBool(&cfg.Liquidation.SkipInsufficientCollateral, "LIQBOT_SKIP_INSUFFICIENT_COLLATERAL")

	// ── 1inch ──
	setStr(&cfg.OneInch.APIURL, "LIQBOT_ONEINCH_API_URL")

	// ── Relay ──
	setBool(&cfg.Relay.Enabled, "LIQBOT_RELAY_ENABLED")
	setStr(&cfg.Relay.URL, "LIQBOT_RELAY_URL")
	setStr(&cfg.Relay.SigningKey, "LIQBOT_RELAY_SIGNING_KEY")
	setInt(&cfg.Relay.MaxBlocks, "LIQBOT_RELAY_MAX_BLOCKS")
	setBool(&cfg.Relay.DisableFallback, "LIQBOT_RELAY_DISABLE_FALLBACK")
	setDuration(&cfg.Relay.PollInterval, "LIQBOT_RELAY_POLL_INTERVAL")

	// ── Tx ──
	setFloat64(&cfg.Tx.FeeMultiplier, "LIQBOT_TX_FEE_MUL")
	setInt64(&cfg.Tx.Nonce, "LIQBOT_TX_NONCE")
	setUint64(&cfg.Tx.GasLimit, "LIQBOT_TX_GAS_LIMIT")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "LIQBOT_FEED_WS_URL")
	setInt(&cfg.Feed.QueryLimit, "LIQBOT_FEED_QUERY_LIMIT")
	setFloat64(&cfg.Feed.HealthMax, "LIQBOT_FEED_HEALTH_MAX")
	setDuration(&cfg.Feed.Cooldown, "LIQBOT_FEED_COOLDOWN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LIQBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LIQBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LIQBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LIQBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LIQBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LIQBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LIQBOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "LIQBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LIQBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LIQBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIQBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "LIQBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LIQBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LIQBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "LIQBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LIQBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LIQBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "LIQBOT_S3_FORCE_PATH_STYLE")

	// ── Report ──
	setDuration(&cfg.Report.Interval, "LIQBOT_REPORT_INTERVAL")
	setStr(&cfg.Report.Prefix, "LIQBOT_REPORT_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LIQBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LIQBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "LIQBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LIQBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LIQBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LIQBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LIQBOT_NOTIFY_EVENTS")

	// ── Once ──
	setStr(&cfg.Once.Violator, "LIQBOT_ONCE_VIOLATOR")
	setStr(&cfg.Once.Underlying, "LIQBOT_ONCE_UNDERLYING")
	setStr(&cfg.Once.Collateral, "LIQBOT_ONCE_COLLATERAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "LIQBOT_MODE")
	setStr(&cfg.LogLevel, "LIQBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
