package depth

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityDepth/internal/model"
)

const DefaultMaxLevels = 100

// relative tolerance when checking that a level sits on its side of the price
const sideTolerance = 1e-9

// Options controls normalization.
type Options struct {
	// PriceUsd is the USD price of token0. Zero keeps token-ratio prices and
	// reports zero USD liquidity.
	PriceUsd       float64
	Token0Decimals uint8
	Token1Decimals uint8
	MaxLevels      int
	// Precision buckets output prices: bids round down, asks round up.
	Precision float64
}

// Normalized is the normalizer output. Clamped counts negative amounts set
// to zero; Dropped counts levels with an invalid price or on the wrong side.
type Normalized struct {
	Bids    []model.DepthLevel
	Asks    []model.DepthLevel
	Clamped int
	Dropped int
}

// Normalize converts raw engine levels into ordered, USD-valued levels.
// factor = priceUsd/currentPrice maps token-ratio prices to USD and is also
// the USD price of one token1.
func Normalize(raw RawDepth, opts Options, logger *zap.Logger) (Normalized, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidatePrice(opts.PriceUsd); err != nil {
		return Normalized{}, err
	}
	if math.IsNaN(opts.Precision) || math.IsInf(opts.Precision, 0) || opts.Precision < 0 {
		return Normalized{}, &model.ValidationError{Field: "precision", Reason: "must be a non-negative finite number"}
	}
	maxLevels := opts.MaxLevels
	if maxLevels <= 0 {
		maxLevels = DefaultMaxLevels
	}

	current := raw.CurrentPrice
	factor, baseUsd, quoteUsd := 1.0, 0.0, 0.0
	if opts.PriceUsd > 0 && current > 0 && !math.IsInf(current, 0) {
		factor = opts.PriceUsd / current
		baseUsd = opts.PriceUsd
		quoteUsd = factor
	}

	out := Normalized{Bids: []model.DepthLevel{}, Asks: []model.DepthLevel{}}
	for _, level := range raw.Levels {
		if math.IsNaN(level.Price) || math.IsInf(level.Price, 0) || level.Price <= 0 {
			out.Dropped++
			continue
		}
		if current > 0 && wrongSide(level, current) {
			out.Dropped++
			continue
		}

		amount0, clamped0 := scaleAmount(level.Token0, opts.Token0Decimals)
		amount1, clamped1 := scaleAmount(level.Token1, opts.Token1Decimals)
		if clamped0 || clamped1 {
			out.Clamped++
		}

		dl := model.DepthLevel{
			Price:        bucket(level.Price*factor, opts.Precision, level.Side),
			LiquidityUSD: amount0*baseUsd + amount1*quoteUsd,
			Token0Amount: amount0,
			Token1Amount: amount1,
			Side:         level.Side,
		}
		if level.Side == model.SideBid {
			out.Bids = append(out.Bids, dl)
		} else {
			out.Asks = append(out.Asks, dl)
		}
	}

	sort.SliceStable(out.Bids, func(i, j int) bool { return out.Bids[i].Price > out.Bids[j].Price })
	sort.SliceStable(out.Asks, func(i, j int) bool { return out.Asks[i].Price < out.Asks[j].Price })
	out.Bids = truncate(mergeEqual(out.Bids, raw.Cumulative), maxLevels)
	out.Asks = truncate(mergeEqual(out.Asks, raw.Cumulative), maxLevels)

	if out.Clamped > 0 {
		logger.Warn("negative depth amounts clamped to zero",
			zap.String("stage", "normalize"),
			zap.Int("clamped", out.Clamped),
		)
	}
	if out.Dropped > 0 {
		logger.Debug("depth levels dropped", zap.String("stage", "normalize"), zap.Int("dropped", out.Dropped))
	}
	return out, nil
}

func wrongSide(level RawLevel, current float64) bool {
	if level.Side == model.SideBid {
		return level.Price > current*(1+sideTolerance)
	}
	return level.Price < current*(1-sideTolerance)
}

// scaleAmount converts base units to whole tokens, clamping negatives.
func scaleAmount(v decimal.Decimal, decimals uint8) (float64, bool) {
	if v.Sign() < 0 {
		return 0, true
	}
	f, _ := v.Shift(-int32(decimals)).Float64()
	return f, false
}

func bucket(price, precision float64, side model.Side) float64 {
	if precision <= 0 {
		return price
	}
	if side == model.SideBid {
		return math.Floor(price/precision) * precision
	}
	return math.Ceil(price/precision) * precision
}

// mergeEqual collapses runs of equal prices in a sorted side. Marginal levels
// are summed; for cumulative levels the outermost one is kept.
func mergeEqual(levels []model.DepthLevel, cumulative bool) []model.DepthLevel {
	out := make([]model.DepthLevel, 0, len(levels))
	for _, level := range levels {
		if n := len(out); n > 0 && out[n-1].Price == level.Price {
			if cumulative {
				out[n-1] = level
				continue
			}
			out[n-1].LiquidityUSD += level.LiquidityUSD
			out[n-1].Token0Amount += level.Token0Amount
			out[n-1].Token1Amount += level.Token1Amount
			continue
		}
		out = append(out, level)
	}
	return out
}

func truncate(levels []model.DepthLevel, max int) []model.DepthLevel {
	if len(levels) > max {
		return levels[:max]
	}
	return levels
}
