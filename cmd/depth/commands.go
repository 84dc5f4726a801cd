package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/service"
	"liquidityDepth/internal/storage"
	"liquidityDepth/internal/storage/postgres"
)

func runDetect(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	chainID, _ := cmd.Flags().GetString("chain")
	pool, _ := cmd.Flags().GetString("pool")
	dexHint, _ := cmd.Flags().GetString("dex")

	poolType, err := a.service.DetectPoolType(ctx, chainID, pool, dexHint)
	if err != nil {
		return err
	}
	id, _ := model.ParsePoolIdentity(chainID, pool)
	if a.store != nil && poolType != model.PoolTypeUnknown {
		if err := a.store.UpsertPoolType(ctx, id, poolType); err != nil {
			logger.Warn("pool type not stored", zap.String("pool", id.PoolAddress), zap.Error(err))
		}
	}
	return printJSON(cmd.OutOrStdout(), struct {
		model.PoolIdentity
		PoolType model.PoolType `json:"pool_type"`
	}{id, poolType})
}

func runDepth(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	start := time.Now()
	result, err := a.service.GetLiquidityDepth(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("depth computed",
		zap.String("chain", req.ChainID),
		zap.String("pool", req.PoolAddress),
		zap.String("pool_type", result.PoolType.String()),
		zap.Int("bids", len(result.Bids)),
		zap.Int("asks", len(result.Asks)),
		zap.Bool("partial", result.Partial),
		zap.Duration("elapsed", time.Since(start)),
	)

	if result.PoolType != model.PoolTypeUnknown {
		id, _ := model.ParsePoolIdentity(req.ChainID, req.PoolAddress)
		snapshot := model.NewSnapshot(id, req.PriceUsd, result, time.Now())
		for _, sink := range a.sinks(cfg.Out) {
			if err := sink.PutSnapshots(ctx, []model.DepthSnapshot{snapshot}); err != nil {
				return fmt.Errorf("store snapshot: %w", err)
			}
		}
		if a.store != nil {
			if err := a.store.UpsertPoolType(ctx, id, result.PoolType); err != nil {
				logger.Warn("pool type not stored", zap.String("pool", id.PoolAddress), zap.Error(err))
			}
		}
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runCurve(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	curve, err := a.service.GetDepthCurve(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), curve)
}

func runTicks(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	view, err := a.service.ScanTickLiquidity(ctx, req, cfg.TickRange)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), view)
}

func runLatest(cmd *cobra.Command, _ []string) error {
	ctx, stop, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	chainID, _ := cmd.Flags().GetString("chain")
	pool, _ := cmd.Flags().GetString("pool")
	id, err := model.ParsePoolIdentity(chainID, pool)
	if err != nil {
		return err
	}

	var lookup storage.LatestReader
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		lookup = store
	case cfg.Out != "":
		lookup = storage.NewJsonlStorage(cfg.Out)
	default:
		return fmt.Errorf("pg-dsn or out is required")
	}

	snapshot, ok, err := lookup.LatestSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no snapshot stored for %s", id.Key())
	}
	return printJSON(cmd.OutOrStdout(), snapshot)
}

// sinks returns the configured snapshot sinks.
func (a *app) sinks(out string) []storage.Storage {
	var sinks []storage.Storage
	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	if a.store != nil {
		sinks = append(sinks, a.store)
	}
	return sinks
}

func requestFromFlags(cmd *cobra.Command) (service.Request, error) {
	flags := cmd.Flags()
	req := service.Request{}
	req.ChainID, _ = flags.GetString("chain")
	req.PoolAddress, _ = flags.GetString("pool")
	req.DexHint, _ = flags.GetString("dex")
	req.PriceUsd, _ = flags.GetFloat64("price-usd")
	req.Precision, _ = flags.GetFloat64("precision")
	req.TickSpacing, _ = flags.GetInt32("tick-spacing")
	if flags.Changed("levels") {
		req.LevelCount, _ = flags.GetInt("levels")
	}

	if raw, _ := flags.GetString("pool-type"); raw != "" {
		poolType, err := model.ParsePoolType(raw)
		if err != nil {
			return service.Request{}, &model.ValidationError{Field: "poolType", Reason: err.Error()}
		}
		req.PoolType = poolType
	}
	req.Token0 = tokenHint(cmd, "token0")
	req.Token1 = tokenHint(cmd, "token1")
	return req, nil
}

// tokenHint returns metadata when any of the token flags was set.
func tokenHint(cmd *cobra.Command, prefix string) *model.TokenMeta {
	flags := cmd.Flags()
	if !flags.Changed(prefix+"-decimals") && !flags.Changed(prefix+"-symbol") {
		return nil
	}
	meta := model.DefaultTokenMeta("")
	meta.Decimals, _ = flags.GetUint8(prefix + "-decimals")
	if symbol, _ := flags.GetString(prefix + "-symbol"); symbol != "" {
		meta.Symbol = symbol
	}
	return &meta
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
