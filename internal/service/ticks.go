package service

import (
	"context"
	"math/big"
	"sort"

	"liquidityDepth/internal/depth"
	"liquidityDepth/internal/model"
	"liquidityDepth/internal/tickmath"
)

// MaxTickPoints bounds the ticks returned by ScanTickLiquidity.
const MaxTickPoints = 500

// TickPoint is one initialized tick with its USD price.
type TickPoint struct {
	Index          int32    `json:"tick"`
	Price          float64  `json:"price"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	Liquidity      *big.Int `json:"liquidity"`
}

// ClusterView is a liquidity cluster with price bounds.
type ClusterView struct {
	LowerTick      int32    `json:"lowerTick"`
	UpperTick      int32    `json:"upperTick"`
	LowerPrice     float64  `json:"lowerPrice"`
	UpperPrice     float64  `json:"upperPrice"`
	TotalLiquidity *big.Int `json:"totalLiquidity"`
	TickCount      int      `json:"tickCount"`
}

// TickStats summarizes a tick scan.
type TickStats struct {
	TotalTicks     int      `json:"totalTicks"`
	TotalLiquidity *big.Int `json:"totalLiquidity"`
	AvgLiquidity   float64  `json:"avgLiquidity"`
}

// TickLiquidity is the tick-level view of a concentrated pool.
type TickLiquidity struct {
	PoolType     model.PoolType `json:"poolType"`
	CurrentTick  int32          `json:"currentTick"`
	CurrentPrice float64        `json:"currentPrice"`
	TickSpacing  int32          `json:"tickSpacing"`
	Ticks        []TickPoint    `json:"ticks"`
	Clusters     []ClusterView  `json:"clusters"`
	Stats        TickStats      `json:"stats"`
	Partial      bool           `json:"-"`
}

func emptyTicks(poolType model.PoolType) TickLiquidity {
	return TickLiquidity{
		PoolType: poolType,
		Ticks:    []TickPoint{},
		Clusters: []ClusterView{},
		Stats:    TickStats{TotalLiquidity: new(big.Int)},
	}
}

// ScanTickLiquidity returns initialized ticks within tickRange of the
// current tick, nearest MaxTickPoints first, and their clusters. Pools
// without ticks return an empty view.
func (s *Service) ScanTickLiquidity(ctx context.Context, req Request, tickRange int32) (TickLiquidity, error) {
	id, err := s.validate(req)
	if err != nil {
		return TickLiquidity{}, err
	}
	if tickRange <= 0 {
		tickRange = s.settings.TickRange
	}
	poolType := s.poolType(ctx, id, req)
	if !poolType.IsConcentrated() {
		return emptyTicks(poolType), nil
	}

	snap, err := s.load(ctx, id, poolType, req, tickRange)
	if err != nil {
		return TickLiquidity{}, err
	}
	state, ok := snap.state.(model.ConcentratedState)
	if !ok || snap.scan == nil {
		out := emptyTicks(poolType)
		out.Partial = snap.partial
		return out, nil
	}

	dec0, dec1 := state.Token0.Decimals, state.Token1.Decimals
	res := state.Resolution
	if res == 0 {
		res = 96
	}
	current := tickmath.SqrtPriceToPrice(state.SqrtPrice, res, dec0, dec1)
	factor := usdFactor(req.PriceUsd, current)

	out := emptyTicks(poolType)
	out.CurrentTick = state.CurrentTick
	out.CurrentPrice = current * factor
	out.TickSpacing = state.TickSpacing
	out.Partial = snap.partial

	levels := append(snap.scan.Levels[:0:0], snap.scan.Levels...)
	if len(levels) > MaxTickPoints {
		sort.SliceStable(levels, func(i, j int) bool {
			return distance(levels[i].Index, state.CurrentTick) < distance(levels[j].Index, state.CurrentTick)
		})
		levels = levels[:MaxTickPoints]
		sort.Slice(levels, func(i, j int) bool { return levels[i].Index < levels[j].Index })
	}
	for _, level := range levels {
		out.Ticks = append(out.Ticks, TickPoint{
			Index:          level.Index,
			Price:          tickmath.TickToPrice(level.Index, dec0, dec1) * factor,
			LiquidityNet:   level.LiquidityNet,
			LiquidityGross: level.LiquidityGross,
			Liquidity:      level.Active,
		})
		out.Stats.TotalLiquidity.Add(out.Stats.TotalLiquidity, level.Active)
	}
	out.Stats.TotalTicks = len(out.Ticks)
	if out.Stats.TotalTicks > 0 {
		avg := new(big.Float).Quo(new(big.Float).SetInt(out.Stats.TotalLiquidity), big.NewFloat(float64(out.Stats.TotalTicks)))
		out.Stats.AvgLiquidity, _ = avg.Float64()
	}

	for _, c := range snap.scan.Clusters {
		out.Clusters = append(out.Clusters, ClusterView{
			LowerTick:      c.LowerBound,
			UpperTick:      c.UpperBound,
			LowerPrice:     tickmath.TickToPrice(c.LowerBound, dec0, dec1) * factor,
			UpperPrice:     tickmath.TickToPrice(c.UpperBound, dec0, dec1) * factor,
			TotalLiquidity: c.TotalLiquidity,
			TickCount:      c.MemberCount,
		})
	}
	return out, nil
}

func distance(a, b int32) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		return -d
	}
	return d
}

// DepthCurve is the cumulative depth view of a pool.
type DepthCurve struct {
	PoolType     model.PoolType `json:"poolType"`
	CurrentPrice float64        `json:"currentPrice"`
	depth.Curve
	Partial bool `json:"-"`
}

// GetDepthCurve computes depth and accumulates it into a curve with price
// impact and liquidity-within-band statistics.
func (s *Service) GetDepthCurve(ctx context.Context, req Request) (DepthCurve, error) {
	result, err := s.GetLiquidityDepth(ctx, req)
	if err != nil {
		return DepthCurve{}, err
	}
	mid := result.CurrentPrice * usdFactor(req.PriceUsd, result.CurrentPrice)
	return DepthCurve{
		PoolType:     result.PoolType,
		CurrentPrice: result.CurrentPrice,
		Curve:        depth.BuildCurve(result.Bids, result.Asks, mid, result.Cumulative),
		Partial:      result.Partial,
	}, nil
}
