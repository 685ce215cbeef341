package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gnsd/internal/config"
	"gnsd/internal/domain"
	"gnsd/internal/infra/cache"
	"gnsd/internal/infra/crypto"
	"gnsd/internal/infra/db"
	"gnsd/internal/infra/geocell"
	"gnsd/internal/infra/policy"
	"gnsd/internal/infra/ratelimit"
	"gnsd/internal/infra/relay"
	"gnsd/internal/usecase"
)

// app wires the storage, network and policy collaborators behind the
// services every subcommand drives.
type app struct {
	cfg    config.Config
	store  *db.Store
	logger *slog.Logger

	identities *usecase.IdentityService
	chain      *usecase.ChainService
	collector  *usecase.Collector
	publisher  *usecase.Publisher
	scorer     *usecase.Scorer
	handles    *usecase.HandleWorkflow
	relay      domain.RelayClient
	limiter    domain.RateLimiter
}

func buildApp(ctx context.Context, cfg config.Config, provider domain.LocationProvider) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	store, err := db.NewStore(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var relayClient domain.RelayClient
	if cfg.RelayURL != "" {
		relayClient = relay.New(cfg.RelayURL, logger)
	}

	var scoreCache domain.TrustScoreCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		scoreCache = redisCache
	} else {
		scoreCache = cache.NewMemory()
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				return nil, fmt.Errorf("init redis limiter: %w", err)
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
		}
	}

	policyEngine, err := policy.NewEngine(ctx, cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load claim policy: %w", err)
	}

	cryptoSvc := crypto.NewService()
	locks := usecase.NewIdentityLocks()

	identities := usecase.NewIdentityService(store.Identities, cryptoSvc, nil, logger)
	chain := usecase.NewChainService(store.Breadcrumbs, store.Identities, cryptoSvc, locks, scoreCache, nil, logger)
	publisher := usecase.NewPublisher(store.Breadcrumbs, store.Epochs, cryptoSvc, locks, relayClient, scoreCache, nil, logger, usecase.PublisherConfig{
		MinBreadcrumbsPerEpoch: cfg.MinBreadcrumbsPerEpoch,
		BlockSize:              cfg.EpochBlockSize,
	})
	scorer := usecase.NewScorer(store.Breadcrumbs, store.Epochs, chain, scoreCache, nil, logger)
	scorer.ScoreTTL = cfg.TrustScoreTTL()
	handles := usecase.NewHandleWorkflow(store.Identities, store.Breadcrumbs, store.Epochs, scorer, policyEngine, cryptoSvc, relayClient, nil, logger, usecase.HandleConfig{
		MinBreadcrumbsForHandle: int64(cfg.MinBreadcrumbsForHandle),
		MinTrustForHandle:       cfg.MinTrustForHandle,
	})
	collector := usecase.NewCollector(chain, publisher, provider, geocell.NewH3Quantizer(), nil, logger, usecase.CollectorConfig{
		CellResolution: uint8(cfg.CellResolution),
		Interval:       cfg.CollectionInterval(),
		AutoPublish:    cfg.AutoPublish,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		identities: identities,
		chain:      chain,
		collector:  collector,
		publisher:  publisher,
		scorer:     scorer,
		handles:    handles,
		relay:      relayClient,
		limiter:    limiter,
	}, nil
}

func (a *app) loadIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	if id == "" {
		return nil, fmt.Errorf("--id is required")
	}
	return a.identities.Get(ctx, id)
}

func defaultRequirements(cfg config.Config) usecase.TrustRequirements {
	req := usecase.HandleClaimRequirements()
	req.MinBreadcrumbs = int64(cfg.MinBreadcrumbsForHandle)
	req.MinTrustScore = cfg.MinTrustForHandle
	req.MinAccountAgeDays = cfg.MinAccountAgeDaysForHandle
	req.MinUniqueLocations = int64(cfg.MinUniqueCellsForHandle)
	return req
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
