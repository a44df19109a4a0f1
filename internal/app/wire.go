package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/avelinor/wagerbot/internal/blob/s3"
	"github.com/avelinor/wagerbot/internal/cache/redis"
	"github.com/avelinor/wagerbot/internal/config"
	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/economy"
	"github.com/avelinor/wagerbot/internal/ledger"
	"github.com/avelinor/wagerbot/internal/notify"
	"github.com/avelinor/wagerbot/internal/platform/pointsapi"
	"github.com/avelinor/wagerbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	BalanceStore    domain.BalanceStore
	TransferStore   domain.TransferStore
	PredictionStore domain.PredictionStore
	BetStore        domain.BetStore
	AuditStore      domain.AuditStore

	// Caches
	PredictionCache domain.PredictionCache
	RateLimiter     domain.RateLimiter
	LockManager     domain.LockManager
	SignalBus       domain.SignalBus

	// Economies
	Registry *economy.Registry

	// Blob storage (only wired when archiving is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true when object storage must be wired for the given config.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled && cfg.Mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.BalanceStore = postgres.NewBalanceStore(pool)
	deps.TransferStore = postgres.NewTransferStore(pool)
	deps.PredictionStore = postgres.NewPredictionStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PredictionCache = redis.NewPredictionCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Economy registry ---
	registry, err := buildRegistry(cfg.Economies, deps.BalanceStore)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: economies: %w", err)
	}
	deps.Registry = registry

	// --- S3 blob storage (only when archiving is on) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.PredictionStore,
			deps.BetStore,
			deps.TransferStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildRegistry turns economy config entries into registry entries. Kind
// "local" economies keep balances in our own store; kind "points_api"
// economies are reached over HTTP through their adapter.
func buildRegistry(economies []config.EconomyConfig, balances domain.BalanceStore) (*economy.Registry, error) {
	entries := make([]economy.Entry, 0, len(economies))
	for _, eco := range economies {
		entry := economy.Entry{
			Economy: domain.Economy{
				ID:          eco.ID,
				DisplayName: eco.DisplayName,
				Debitable:   eco.Debitable,
				Creditable:  eco.Creditable,
				Local:       eco.Local,
			},
		}
		switch eco.Kind {
		case "local":
			entry.Ledger = ledger.NewStoreLedger(balances, eco.ID)
		case "points_api":
			entry.Ledger = pointsapi.NewClient(eco.BaseURL, eco.APIKey)
		default:
			return nil, fmt.Errorf("economy %q: unknown kind %q", eco.ID, eco.Kind)
		}
		entries = append(entries, entry)
	}
	return economy.NewRegistry(entries, balances)
}
