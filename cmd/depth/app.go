package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/config"
	"liquidityDepth/internal/detect"
	"liquidityDepth/internal/reader"
	"liquidityDepth/internal/service"
	"liquidityDepth/internal/storage/postgres"
)

// app is the wired service stack for one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *chain.Registry
	redis    *cache.Redis
	store    *postgres.Store
	service  *service.Service
}

// setup loads configuration and returns a signal-aware context.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, config.Config, *zap.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, config.Config{}, nil, err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, config.Config{}, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop, cfg, logger, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if len(cfg.RPC) == 0 {
		return nil, fmt.Errorf("rpc urls are required")
	}
	stateViews, err := parseStateViews(cfg.StateView)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: chain.NewRegistry(cfg.RPC)}

	var c cache.Cache
	switch cfg.Cache {
	case "redis":
		a.redis = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := a.redis.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c = a.redis
	default:
		c = cache.NewMemory(cfg.CacheSize, cfg.DepthTTL)
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	retry := reader.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff, MaxDelay: cfg.RetryMaxDelay}
	evmBatcher := reader.Batcher{Size: cfg.BatchSize, Concurrency: cfg.Concurrency, Retry: retry, Timeout: cfg.RPCTimeout, Logger: logger}
	solanaBatcher := evmBatcher
	solanaBatcher.Size = cfg.SolanaBatchSize

	tokens := reader.NewTokenResolver(c, cfg.TokenTTL, logger)
	states := reader.New(
		reader.NewEVMReader(a.registry, evmBatcher, tokens, stateViews, logger),
		reader.NewSolanaReader(a.registry, solanaBatcher, logger),
	)
	detector := detect.New(a.registry, c, cfg.DetectTTL, logger)

	a.service = service.New(detector, states, c, service.Settings{
		TickRange:     cfg.TickRange,
		MergeDistance: cfg.MergeDistance,
		Range:         cfg.V2Range,
		LevelCount:    cfg.Levels,
		MaxLevels:     cfg.MaxLevels,
		DepthTTL:      cfg.DepthTTL,
	}, logger)

	logger.Info("depth service ready",
		zap.Int("chains", len(cfg.RPC)),
		zap.Int("stateviews", len(stateViews)),
		zap.String("cache", cfg.Cache),
		zap.Bool("postgres", a.store != nil),
		zap.Int32("tick_range", cfg.TickRange),
	)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Debug("redis close failed", zap.Error(err))
		}
	}
	a.registry.Close()
}

func parseStateViews(raw map[string]string) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(raw))
	for chainID, addr := range raw {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid stateview address for %s: %s", chainID, addr)
		}
		out[chainID] = common.HexToAddress(addr)
	}
	return out, nil
}
