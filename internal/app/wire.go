package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/liquidationbot/internal/blob/s3"
	"github.com/alanyoungcy/liquidationbot/internal/cache/redis"
	"github.com/alanyoungcy/liquidationbot/internal/config"
	"github.com/alanyoungcy/liquidationbot/internal/crypto"
	"github.com/alanyoungcy/liquidationbot/internal/domain"
	"github.com/alanyoungcy/liquidationbot/internal/executor"
	"github.com/alanyoungcy/liquidationbot/internal/metrics"
	"github.com/alanyoungcy/liquidationbot/internal/notify"
	"github.com/alanyoungcy/liquidationbot/internal/platform/euler"
	"github.com/alanyoungcy/liquidationbot/internal/platform/eulerscan"
	"github.com/alanyoungcy/liquidationbot/internal/platform/flashbots"
	"github.com/alanyoungcy/liquidationbot/internal/platform/oneinch"
	"github.com/alanyoungcy/liquidationbot/internal/server/ws"
	"github.com/alanyoungcy/liquidationbot/internal/store/postgres"
	"github.com/alanyoungcy/liquidationbot/internal/strategy"
)

// eventStream is the Redis stream and Pub/Sub channel events are mirrored to.
const eventStream = "liqbot:events"

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Signer     *crypto.Signer
	Receiver   common.Address
	Searcher   *strategy.Searcher
	Dispatcher *executor.Dispatcher
	Feed       *eulerscan.Feed
	Reporter   *notify.Reporter
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	// Optional.
	EventStore domain.EventStore
	Archiver   *s3blob.ReportArchiver
	Hub        *ws.Hub
	Relay      *flashbots.Client
	Quotes     *oneinch.Client
}

// Wire constructs all concrete implementations from cfg and returns them
// together with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Registry: prometheus.NewRegistry()}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(deps.Registry)
	if err != nil {
		return fail(fmt.Errorf("wire: metrics: %w", err))
	}
	deps.Metrics = m

	// --- Chain & keys ---
	node, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("wire: dial rpc: %w", err))
	}
	closers = append(closers, node.Close)

	chainID, err := node.ChainID(ctx)
	if err != nil {
		return fail(fmt.Errorf("wire: chain id: %w", err))
	}
	if chainID.Cmp(big.NewInt(cfg.Chain.ChainID)) != 0 {
		return fail(fmt.Errorf("wire: rpc serves chain %s, config expects %d", chainID, cfg.Chain.ChainID))
	}

	pk, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: signing key: %w", err))
	}
	deps.Signer = crypto.NewSignerFromKey(pk, cfg.Chain.ChainID)
	deps.Receiver = deps.Signer.SubAccount(cfg.Wallet.ReceiverSubAccountID)

	protocol := euler.New(node, euler.Addresses{
		Euler:       common.HexToAddress(cfg.Euler.Euler),
		Markets:     common.HexToAddress(cfg.Euler.Markets),
		Liquidation: common.HexToAddress(cfg.Euler.Liquidation),
		Exec:        common.HexToAddress(cfg.Euler.Exec),
		Swap:        common.HexToAddress(cfg.Euler.Swap),
	}, logger)

	sender := executor.NewTxSender(node, deps.Signer, executor.TxOptions{
		FeeMultiplier: cfg.Tx.FeeMultiplier,
		Nonce:         cfg.Tx.Nonce,
		GasLimit:      cfg.Tx.GasLimit,
		PollInterval:  cfg.Relay.PollInterval.Duration,
	}, logger)

	// --- Persistence & streaming ---
	var locks domain.LockManager = executor.NewLocalLocks()
	var sinks []notify.Sink

	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		locks = redis.NewLockManager(rc)
		sinks = append(sinks, notify.NewStreamSink(redis.NewEventBus(rc, cfg.Redis.StreamMaxLen), eventStream))
	}

	if cfg.Postgres.Enabled() {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		store := postgres.NewEventStore(pg.Pool())
		deps.EventStore = store
		sinks = append(sinks, notify.NewStoreSink(store))
	}

	if cfg.S3.Bucket != "" {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := sc.Health(ctx); err != nil {
			logger.WarnContext(ctx, "report bucket not reachable, archiving will retry", slog.String("error", err.Error()))
		}
		deps.Archiver = s3blob.NewReportArchiver(s3blob.NewWriter(sc), cfg.Report.Prefix, cfg.Report.Interval.Duration, logger)
		sinks = append(sinks, deps.Archiver)
	}

	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(logger)
		sinks = append(sinks, deps.Hub)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Reporter = notify.NewReporter(sinks, senders, cfg.Notify.Events, m, logger)

	// --- Search & execution ---
	var source domain.QuoteSource
	if cfg.OneInch.APIURL != "" {
		deps.Quotes = oneinch.New(cfg.OneInch.APIURL, common.HexToAddress(cfg.Euler.Euler), cfg.OneInch.Timeout.Duration)
		source = deps.Quotes
	}
	deps.Searcher = strategy.NewSearcher(strategy.Config{
		Liquidator:         deps.Signer.Address(),
		Receiver:           deps.Receiver,
		ReferenceAsset:     common.HexToAddress(cfg.Euler.ReferenceAsset),
		FeeTiers:           cfg.Liquidation.FeeTiers,
		RepayFractionStart: cfg.Liquidation.RepayFractionStart,
	}, protocol, source, sender, deps.Reporter, m, logger)

	var relay executor.Relay
	if cfg.Relay.Enabled {
		auth, err := crypto.NewRelayAuth(cfg.Relay.SigningKey)
		if err != nil {
			return fail(fmt.Errorf("wire: relay auth: %w", err))
		}
		deps.Relay = flashbots.New(cfg.Relay.URL, auth)
		relay = deps.Relay
	}
	deps.Dispatcher = executor.NewDispatcher(executor.DispatcherConfig{
		MaxBlocks:       uint64(cfg.Relay.MaxBlocks),
		DisableFallback: cfg.Relay.DisableFallback,
		LockTTL:         5 * time.Minute,
	}, protocol, node, sender, relay, deps.Searcher, locks, deps.Reporter, m, logger)

	if cfg.Feed.WsURL != "" {
		deps.Feed = eulerscan.New(cfg.Feed.WsURL, eulerscan.Query{
			HealthMax: cfg.Feed.HealthMax,
			Limit:     cfg.Feed.QueryLimit,
		}, logger)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("liquidator", deps.Signer.Address().Hex()),
		slog.String("receiver", deps.Receiver.Hex()),
		slog.Bool("relay", deps.Relay != nil),
		slog.Bool("aggregator", deps.Quotes != nil),
		slog.Int("sinks", len(sinks)),
		slog.Int("senders", len(senders)),
	)
	return deps, cleanup, nil
}
