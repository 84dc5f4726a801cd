// Package scanner walks initialized ticks outward from the current price and
// accumulates liquidity deltas into per-range liquidity and clusters.
package scanner

import (
	"context"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/tickmath"
)

const DefaultMergeSpacings = 10

// Source answers bulk questions about a pool's tick space. Implementations
// decode bitmap words or fetch fixed-size tick arrays; they never probe one
// index at a time.
type Source interface {
	// InitializedIndices returns the sorted initialized indices in [lower, upper].
	InitializedIndices(ctx context.Context, lower, upper int32) ([]int32, error)
	// Records returns the tick records for indices. Missing indices are omitted.
	Records(ctx context.Context, indices []int32) ([]model.TickRecord, error)
}

// Params configures one scan.
type Params struct {
	CurrentIndex int32
	Liquidity    *big.Int
	RangeWidth   int32
	Spacing      int32
	// MergeDistance defaults to DefaultMergeSpacings * Spacing.
	MergeDistance int32
}

// IndexLiquidity is an initialized index with the liquidity active in the
// range that starts at it and ends at the next initialized index.
type IndexLiquidity struct {
	Index          int32
	LiquidityNet   *big.Int
	LiquidityGross *big.Int
	Active         *big.Int
}

// Result is the outcome of a scan, levels ascending by index.
type Result struct {
	CurrentIndex int32
	Liquidity    *big.Int
	Lower        int32
	Upper        int32
	Levels       []IndexLiquidity
	Clusters     []model.LiquidityCluster
	// Partial is set when some reads failed and their ranges hold no data.
	Partial bool
}

// ScanAroundCurrent walks the tick space in both directions from the current
// index up to RangeWidth. Crossing a tick upward adds its liquidityNet;
// crossing downward subtracts it. Failed reads degrade to partial results.
func ScanAroundCurrent(ctx context.Context, p Params, src Source, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	spacing := p.Spacing
	if spacing <= 0 {
		spacing = 1
	}
	liquidity := new(big.Int)
	if p.Liquidity != nil {
		liquidity.Set(p.Liquidity)
	}

	lower, upper := scanBounds(p.CurrentIndex, p.RangeWidth)
	result := Result{
		CurrentIndex: p.CurrentIndex,
		Liquidity:    liquidity,
		Lower:        lower,
		Upper:        upper,
	}

	indices, err := src.InitializedIndices(ctx, lower, upper)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		result.Partial = true
		logger.Warn("initialized index lookup degraded", zap.String("stage", "scan"), zap.Error(err))
	}
	if len(indices) == 0 {
		return result, nil
	}

	records, err := src.Records(ctx, indices)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		result.Partial = true
		logger.Warn("tick record lookup degraded", zap.String("stage", "scan"), zap.Error(err))
	}

	result.Levels = walk(p.CurrentIndex, liquidity, filterRecords(records, lower, upper))

	distance := p.MergeDistance
	if distance <= 0 {
		distance = DefaultMergeSpacings * spacing
	}
	points := make([]Point, len(result.Levels))
	for i, level := range result.Levels {
		points[i] = Point{Index: level.Index, Liquidity: level.Active}
	}
	result.Clusters = Cluster(points, distance)
	return result, nil
}

func scanBounds(current, width int32) (int32, int32) {
	if width < 0 {
		width = 0
	}
	lower := int64(current) - int64(width)
	upper := int64(current) + int64(width)
	if lower < int64(tickmath.MinTick) {
		lower = int64(tickmath.MinTick)
	}
	if upper > int64(tickmath.MaxTick) {
		upper = int64(tickmath.MaxTick)
	}
	return int32(lower), int32(upper)
}

func filterRecords(records []model.TickRecord, lower, upper int32) []model.TickRecord {
	seen := make(map[int32]bool, len(records))
	out := make([]model.TickRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Initialized() || rec.Index < lower || rec.Index > upper || seen[rec.Index] {
			continue
		}
		if rec.LiquidityNet == nil {
			rec.LiquidityNet = new(big.Int)
		}
		seen[rec.Index] = true
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func walk(current int32, liquidity *big.Int, records []model.TickRecord) []IndexLiquidity {
	levels := make([]IndexLiquidity, len(records))
	split := sort.Search(len(records), func(i int) bool { return records[i].Index > current })

	running := new(big.Int).Set(liquidity)
	for i := split; i < len(records); i++ {
		running.Add(running, records[i].LiquidityNet)
		levels[i] = newLevel(records[i], running)
	}

	running.Set(liquidity)
	for i := split - 1; i >= 0; i-- {
		levels[i] = newLevel(records[i], running)
		running.Sub(running, records[i].LiquidityNet)
	}
	return levels
}

func newLevel(rec model.TickRecord, active *big.Int) IndexLiquidity {
	return IndexLiquidity{
		Index:          rec.Index,
		LiquidityNet:   new(big.Int).Set(rec.LiquidityNet),
		LiquidityGross: new(big.Int).Set(rec.LiquidityGross),
		Active:         new(big.Int).Set(active),
	}
}
