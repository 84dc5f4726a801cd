package depth

import (
	"math"

	"liquidityDepth/internal/model"
)

// CurvePoint is a depth level with its running total and distance from mid.
type CurvePoint struct {
	Price          float64 `json:"price"`
	LiquidityUSD   float64 `json:"liquidityUSD"`
	CumulativeUSD  float64 `json:"cumulativeUSD"`
	PriceImpactPct float64 `json:"priceImpact"`
}

// CurveStats summarizes both sides of a depth curve.
type CurveStats struct {
	TotalBidUSD   float64 `json:"totalBidLiquidity"`
	TotalAskUSD   float64 `json:"totalAskLiquidity"`
	DepthRatio    float64 `json:"depthRatio"`
	BidWithin1Pct float64 `json:"bidLiquidityWithin1Pct"`
	AskWithin1Pct float64 `json:"askLiquidityWithin1Pct"`
	BidWithin5Pct float64 `json:"bidLiquidityWithin5Pct"`
	AskWithin5Pct float64 `json:"askLiquidityWithin5Pct"`
}

// Curve is the cumulative view of a depth result.
type Curve struct {
	MidPrice float64      `json:"midPrice"`
	Bids     []CurvePoint `json:"bids"`
	Asks     []CurvePoint `json:"asks"`
	Stats    CurveStats   `json:"stats"`
}

// BuildCurve accumulates levels outward from mid. Cumulative levels already
// hold running totals and are taken as is.
func BuildCurve(bids, asks []model.DepthLevel, mid float64, cumulative bool) Curve {
	c := Curve{
		MidPrice: mid,
		Bids:     accumulate(bids, mid, cumulative),
		Asks:     accumulate(asks, mid, cumulative),
	}
	c.Stats.TotalBidUSD = total(c.Bids)
	c.Stats.TotalAskUSD = total(c.Asks)
	if c.Stats.TotalAskUSD > 0 {
		c.Stats.DepthRatio = c.Stats.TotalBidUSD / c.Stats.TotalAskUSD
	}
	c.Stats.BidWithin1Pct = within(c.Bids, 1)
	c.Stats.AskWithin1Pct = within(c.Asks, 1)
	c.Stats.BidWithin5Pct = within(c.Bids, 5)
	c.Stats.AskWithin5Pct = within(c.Asks, 5)
	return c
}

func accumulate(levels []model.DepthLevel, mid float64, cumulative bool) []CurvePoint {
	points := make([]CurvePoint, 0, len(levels))
	running := 0.0
	for _, level := range levels {
		if cumulative {
			running = math.Max(running, level.LiquidityUSD)
		} else {
			running += level.LiquidityUSD
		}
		impact := 0.0
		if mid > 0 {
			impact = math.Abs(level.Price-mid) / mid * 100
		}
		points = append(points, CurvePoint{
			Price:          level.Price,
			LiquidityUSD:   level.LiquidityUSD,
			CumulativeUSD:  running,
			PriceImpactPct: impact,
		})
	}
	return points
}

func total(points []CurvePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].CumulativeUSD
}

func within(points []CurvePoint, pct float64) float64 {
	out := 0.0
	for _, p := range points {
		if p.PriceImpactPct > pct {
			break
		}
		out = p.CumulativeUSD
	}
	return out
}
