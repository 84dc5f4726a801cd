package depth

import (
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/scanner"
	"liquidityDepth/internal/tickmath"
)

// Concentrated prices tick-based pools: V3, V4, Raydium CLMM and Orca
// Whirlpool. Each sub-range between consecutive initialized ticks becomes one
// level; asks hold token0 and bids hold token1.
type Concentrated struct{}

func (Concentrated) Compute(in Input) (RawDepth, error) {
	s, ok := in.State.(model.ConcentratedState)
	if !ok {
		return RawDepth{}, &model.ValidationError{Field: "state", Reason: "concentrated engine needs tick state"}
	}
	res := s.Resolution
	if res == 0 {
		res = 96
	}
	dec0, dec1 := s.Token0.Decimals, s.Token1.Decimals
	liquidity := bigOrZero(s.Liquidity)

	current := s.SqrtPrice
	if current == nil || current.Sign() <= 0 {
		var err error
		if current, err = tickmath.SqrtRatioAtTickResolution(s.CurrentTick, res); err != nil {
			return RawDepth{}, &model.ValidationError{Field: "currentTick", Reason: err.Error()}
		}
	}
	out := RawDepth{CurrentPrice: tickmath.SqrtPriceToPrice(current, res, dec0, dec1), Levels: []RawLevel{}}

	scan := in.Scan
	if scan == nil {
		scan = &scanner.Result{CurrentIndex: s.CurrentTick, Liquidity: liquidity}
		scan.Lower, scan.Upper = clampTick(int64(s.CurrentTick)-int64(in.tickRange())), clampTick(int64(s.CurrentTick)+int64(in.tickRange()))
	}
	levels := scan.Levels
	split := len(levels)
	for i, level := range levels {
		if level.Index > s.CurrentTick {
			split = i
			break
		}
	}
	n := in.levelCount()

	sqrtAt := func(tick int32) (*big.Int, error) {
		return tickmath.SqrtRatioAtTickResolution(tick, res)
	}
	asks := make([]RawLevel, 0)
	emitAsk := func(lowerSqrt, upperSqrt *big.Int, price float64, active *big.Int) {
		if lowerSqrt.Cmp(upperSqrt) >= 0 || len(asks) >= n {
			return
		}
		amount := tickmath.Amount0ForLiquidity(lowerSqrt, upperSqrt, active, res)
		asks = append(asks, RawLevel{Side: model.SideAsk, Price: price, Token0: decimal.NewFromBigInt(amount, 0), Token1: decimal.Zero})
	}

	lowerSqrt, lowerPrice, lowerTick := current, out.CurrentPrice, s.CurrentTick
	running := liquidity
	for i := split; i < len(levels) && len(asks) < n; i++ {
		upperSqrt, err := sqrtAt(levels[i].Index)
		if err != nil {
			return RawDepth{}, &model.ValidationError{Field: "tick", Reason: err.Error()}
		}
		emitAsk(lowerSqrt, upperSqrt, lowerPrice, running)
		running = levels[i].Active
		lowerSqrt, lowerPrice, lowerTick = upperSqrt, tickmath.TickToPrice(levels[i].Index, dec0, dec1), levels[i].Index
	}
	if scan.Upper > lowerTick {
		upperSqrt, err := sqrtAt(scan.Upper)
		if err != nil {
			return RawDepth{}, &model.ValidationError{Field: "tick", Reason: err.Error()}
		}
		emitAsk(lowerSqrt, upperSqrt, lowerPrice, running)
	}

	bids := make([]RawLevel, 0)
	emitBid := func(lowerSqrt, upperSqrt *big.Int, price float64, active *big.Int) {
		if lowerSqrt.Cmp(upperSqrt) >= 0 || len(bids) >= n {
			return
		}
		amount := tickmath.Amount1ForLiquidity(lowerSqrt, upperSqrt, active, res)
		bids = append(bids, RawLevel{Side: model.SideBid, Price: price, Token0: decimal.Zero, Token1: decimal.NewFromBigInt(amount, 0)})
	}

	upperSqrt, upperPrice, upperTick := current, out.CurrentPrice, s.CurrentTick
	running = liquidity
	for i := split - 1; i >= 0 && len(bids) < n; i-- {
		lowerSqrt, err := sqrtAt(levels[i].Index)
		if err != nil {
			return RawDepth{}, &model.ValidationError{Field: "tick", Reason: err.Error()}
		}
		// levels[i].Active is the liquidity of [index, next)
		emitBid(lowerSqrt, upperSqrt, upperPrice, levels[i].Active)
		running = new(big.Int).Sub(levels[i].Active, levels[i].LiquidityNet)
		upperSqrt, upperPrice, upperTick = lowerSqrt, tickmath.TickToPrice(levels[i].Index, dec0, dec1), levels[i].Index
	}
	if scan.Lower < upperTick {
		lowerSqrt, err := sqrtAt(scan.Lower)
		if err != nil {
			return RawDepth{}, &model.ValidationError{Field: "tick", Reason: err.Error()}
		}
		emitBid(lowerSqrt, upperSqrt, upperPrice, running)
	}

	out.Levels = append(bids, asks...)
	return out, nil
}

func clampTick(tick int64) int32 {
	if tick < int64(tickmath.MinTick) {
		return tickmath.MinTick
	}
	if tick > int64(tickmath.MaxTick) {
		return tickmath.MaxTick
	}
	return int32(tick)
}
