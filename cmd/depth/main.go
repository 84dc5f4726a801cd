package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "depth",
		Short:        "DEX liquidity depth calculator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config")
	addServiceFlags(root.PersistentFlags())

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the AMM type of a pool",
		RunE:  runDetect,
	}
	addPoolFlags(detectCmd.Flags())
	root.AddCommand(detectCmd)

	depthCmd := &cobra.Command{
		Use:   "depth",
		Short: "Compute order-book style depth for a pool",
		RunE:  runDepth,
	}
	addPoolFlags(depthCmd.Flags())
	addRequestFlags(depthCmd.Flags())
	depthCmd.Flags().String("out", "", "append the snapshot to this JSONL file")
	root.AddCommand(depthCmd)

	curveCmd := &cobra.Command{
		Use:   "curve",
		Short: "Compute the cumulative depth curve with price impact",
		RunE:  runCurve,
	}
	addPoolFlags(curveCmd.Flags())
	addRequestFlags(curveCmd.Flags())
	root.AddCommand(curveCmd)

	ticksCmd := &cobra.Command{
		Use:   "ticks",
		Short: "Scan initialized ticks and liquidity clusters",
		RunE:  runTicks,
	}
	addPoolFlags(ticksCmd.Flags())
	addRequestFlags(ticksCmd.Flags())
	root.AddCommand(ticksCmd)

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the latest stored depth snapshot of a pool",
		RunE:  runLatest,
	}
	latestCmd.Flags().String("chain", "", "chain id (ethereum, base, bsc, arbitrum, polygon, optimism, avalanche, solana)")
	latestCmd.Flags().String("pool", "", "pool address or v4 pool id")
	latestCmd.Flags().String("out", "", "JSONL snapshot file to read when no pg-dsn is set")
	root.AddCommand(latestCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addServiceFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "chain RPC URLs (comma-separated chain=url)")
	flags.String("stateview", "", "v4 StateView addresses (comma-separated chain=address)")
	flags.Int("batch-size", 256, "calls per EVM batch")
	flags.Int("solana-batch-size", 100, "accounts per getMultipleAccounts call")
	flags.Int("concurrency", 4, "concurrent batches per read")
	flags.Int("max-retries", 3, "maximum retry attempts per batch")
	flags.Duration("retry-backoff", time.Second, "initial retry backoff")
	flags.Duration("retry-max-delay", 10*time.Second, "maximum retry backoff")
	flags.Duration("rpc-timeout", 30*time.Second, "timeout per batch attempt")
	flags.Int32("tick-range", 5000, "ticks scanned on each side of the current tick")
	flags.Int32("merge-distance", 0, "cluster merge distance in ticks, 0 means 10 tick spacings")
	flags.Float64("v2-range", 0.2, "relative price range sampled by curve engines")
	flags.Int("max-levels", 100, "maximum levels per side")
	flags.String("cache", "memory", "cache backend (memory, redis)")
	flags.Int("cache-size", 1000, "memory cache entries")
	flags.String("redis-addr", "localhost:6379", "redis address")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.Duration("detect-ttl", 24*time.Hour, "pool type cache TTL")
	flags.Duration("token-ttl", time.Hour, "token metadata cache TTL")
	flags.Duration("depth-ttl", 5*time.Second, "depth result cache TTL")
	flags.String("pg-dsn", "", "Postgres DSN for snapshot storage")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPoolFlags(flags *pflag.FlagSet) {
	flags.String("chain", "", "chain id (ethereum, base, bsc, arbitrum, polygon, optimism, avalanche, solana)")
	flags.String("pool", "", "pool address or v4 pool id")
	flags.String("dex", "", "dex hint, required to tell Solana programs apart")
}

func addRequestFlags(flags *pflag.FlagSet) {
	flags.Float64("price-usd", 0, "USD price of token0, 0 keeps token-ratio prices")
	flags.Int("levels", 50, "levels per side")
	flags.Float64("precision", 0, "price bucket width in output units")
	flags.String("pool-type", "", "skip detection and use this pool type")
	flags.Int32("tick-spacing", 0, "tick spacing override")
	flags.Uint8("token0-decimals", 18, "token0 decimals hint")
	flags.Uint8("token1-decimals", 18, "token1 decimals hint")
	flags.String("token0-symbol", "", "token0 symbol hint")
	flags.String("token1-symbol", "", "token1 symbol hint")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
