package depth

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/scanner"
	"liquidityDepth/internal/tickmath"
)

func approx(a, b, rel float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}

func v2State(r0, r1 int64) model.ReserveState {
	return model.ReserveState{Pool: model.PoolTypeV2, Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1)}
}

func sideLevels(raw RawDepth, side model.Side) []RawLevel {
	out := make([]RawLevel, 0)
	for _, l := range raw.Levels {
		if l.Side == side {
			out = append(out, l)
		}
	}
	return out
}

func TestConstantProductTenPercent(t *testing.T) {
	raw, err := Compute(Input{State: v2State(1_000_000, 2_000_000), LevelCount: 10, Range: 0.1})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !approx(raw.CurrentPrice, 2.0, 1e-12) {
		t.Fatalf("current price = %v", raw.CurrentPrice)
	}

	x, y := 1_000_000.0, 2_000_000.0
	k := x * y
	bids := sideLevels(raw, model.SideBid)
	asks := sideLevels(raw, model.SideAsk)
	if len(bids) != 10 || len(asks) != 10 {
		t.Fatalf("expected 10 levels per side, got %d/%d", len(bids), len(asks))
	}

	for _, bid := range bids {
		token1, _ := bid.Token1.Float64()
		yPrime := y - token1
		xPrime := math.Sqrt(k / bid.Price)
		if !approx(xPrime*yPrime, k, 1e-9) {
			t.Fatalf("x'*y' = %v at %v, want %v", xPrime*yPrime, bid.Price, k)
		}
	}

	last := bids[len(bids)-1]
	if !approx(last.Price, 1.8, 1e-9) {
		t.Fatalf("outer bid price = %v, want 1.8", last.Price)
	}
	token1, _ := last.Token1.Float64()
	if want := y - math.Sqrt(k*1.8); !approx(token1, want, 1e-9) {
		t.Fatalf("outer bid token1 = %v, want %v", token1, want)
	}

	outerAsk := asks[len(asks)-1]
	if !approx(outerAsk.Price, 2.2, 1e-9) {
		t.Fatalf("outer ask price = %v, want 2.2", outerAsk.Price)
	}
	token0, _ := outerAsk.Token0.Float64()
	if want := x - math.Sqrt(k/2.2); !approx(token0, want, 1e-9) {
		t.Fatalf("outer ask token0 = %v, want %v", token0, want)
	}
}

func TestComputeDepthV2EmptyReserves(t *testing.T) {
	levels, err := ComputeDepthV2(big.NewInt(0), big.NewInt(2_000_000), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if levels == nil || len(levels) != 0 {
		t.Fatalf("expected empty non-nil levels, got %v", levels)
	}
}

func TestComputeDepthV2RejectsBadPrice(t *testing.T) {
	for _, price := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := ComputeDepthV2(big.NewInt(1_000_000), big.NewInt(2_000_000), price, 10)
		var validation *model.ValidationError
		if !errors.As(err, &validation) || validation.Field != "priceUsd" {
			t.Fatalf("price %v: expected priceUsd validation error, got %v", price, err)
		}
	}
}

func TestComputeDepthV2OrderingAndUSD(t *testing.T) {
	levels, err := ComputeDepthV2(big.NewInt(1_000_000), big.NewInt(2_000_000), 4000, 20)
	if err != nil {
		t.Fatalf("ComputeDepthV2: %v", err)
	}
	var bids, asks []model.DepthLevel
	for _, l := range levels {
		if l.LiquidityUSD < 0 {
			t.Fatalf("negative liquidity: %+v", l)
		}
		if l.Side == model.SideBid {
			bids = append(bids, l)
		} else {
			asks = append(asks, l)
		}
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].Price >= bids[i-1].Price {
			t.Fatalf("bids not descending at %d: %v >= %v", i, bids[i].Price, bids[i-1].Price)
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].Price <= asks[i-1].Price {
			t.Fatalf("asks not ascending at %d", i)
		}
	}
	// token1 is worth 4000/2 USD, so every bid values token1 at 2000
	first := bids[0]
	if !approx(first.LiquidityUSD, first.Token1Amount*2000, 1e-12) {
		t.Fatalf("bid usd = %v, token1 = %v", first.LiquidityUSD, first.Token1Amount)
	}
	if bids[0].Price > 4000 || asks[0].Price < 4000 {
		t.Fatalf("levels not around usd mid: %v %v", bids[0].Price, asks[0].Price)
	}
}

func TestConstantProductLinearStep(t *testing.T) {
	raw, err := Compute(Input{State: v2State(1_000_000, 2_000_000), LevelCount: 100, Range: 0.22, Step: 0.1})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	bids := sideLevels(raw, model.SideBid)
	if len(bids) != 4 {
		t.Fatalf("expected 4 linear bid samples within 22%%, got %d", len(bids))
	}
	if !approx(bids[0].Price, 1.9, 1e-12) || !approx(bids[3].Price, 1.6, 1e-12) {
		t.Fatalf("unexpected linear samples: %v .. %v", bids[0].Price, bids[3].Price)
	}
}

func concentratedState(liquidity int64) model.ConcentratedState {
	sqrt, _ := tickmath.SqrtRatioAtTick(0)
	return model.ConcentratedState{
		Pool:        model.PoolTypeV3,
		SqrtPrice:   sqrt,
		Resolution:  96,
		CurrentTick: 0,
		Liquidity:   big.NewInt(liquidity),
		TickSpacing: 1,
		Token0:      model.TokenMeta{Decimals: 18},
		Token1:      model.TokenMeta{Decimals: 18},
	}
}

func level(index, net, active int64) scanner.IndexLiquidity {
	gross := net
	if gross < 0 {
		gross = -gross
	}
	return scanner.IndexLiquidity{Index: int32(index), LiquidityNet: big.NewInt(net), LiquidityGross: big.NewInt(gross), Active: big.NewInt(active)}
}

func TestConcentratedSingleAskTick(t *testing.T) {
	scan := scanner.Result{Lower: -1000, Upper: 1000, Levels: []scanner.IndexLiquidity{level(100, 500, 500)}}
	raw, err := Compute(Input{State: concentratedState(0), Scan: &scan})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	asks := sideLevels(raw, model.SideAsk)
	if len(asks) != 2 {
		t.Fatalf("expected 2 ask sub-ranges, got %d", len(asks))
	}
	if !asks[0].Token0.IsZero() || asks[0].Price != raw.CurrentPrice {
		t.Fatalf("sub-range below tick 100 must be empty at the current price: %+v", asks[0])
	}
	if asks[1].Token0.Sign() <= 0 {
		t.Fatalf("sub-range starting at tick 100 must hold token0: %+v", asks[1])
	}
	if !approx(asks[1].Price, tickmath.TickToPrice(100, 18, 18), 1e-12) {
		t.Fatalf("ask price = %v", asks[1].Price)
	}
	sqrt100, _ := tickmath.SqrtRatioAtTick(100)
	sqrt1000, _ := tickmath.SqrtRatioAtTick(1000)
	want := tickmath.Amount0ForLiquidity(sqrt100, sqrt1000, big.NewInt(500), 96)
	if !asks[1].Token0.Equal(decimal.NewFromBigInt(want, 0)) {
		t.Fatalf("token0 = %s, want %s", asks[1].Token0, want)
	}

	bids := sideLevels(raw, model.SideBid)
	if len(bids) != 1 || !bids[0].Token1.IsZero() {
		t.Fatalf("expected one empty bid sub-range, got %+v", bids)
	}
}

func TestConcentratedBidWalk(t *testing.T) {
	scan := scanner.Result{
		Lower: -300,
		Upper: 0,
		Levels: []scanner.IndexLiquidity{
			level(-200, 600, 600),
			level(-100, 400, 1000),
		},
	}
	raw, err := Compute(Input{State: concentratedState(1000), Scan: &scan})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	bids := sideLevels(raw, model.SideBid)
	if len(bids) != 3 {
		t.Fatalf("expected 3 bid sub-ranges, got %d", len(bids))
	}
	sqrt := func(tick int32) *big.Int {
		v, _ := tickmath.SqrtRatioAtTick(tick)
		return v
	}
	wants := []*big.Int{
		tickmath.Amount1ForLiquidity(sqrt(-100), sqrt(0), big.NewInt(1000), 96),
		tickmath.Amount1ForLiquidity(sqrt(-200), sqrt(-100), big.NewInt(600), 96),
		new(big.Int),
	}
	for i, want := range wants {
		if !bids[i].Token1.Equal(decimal.NewFromBigInt(want, 0)) {
			t.Fatalf("bid %d token1 = %s, want %s", i, bids[i].Token1, want)
		}
	}
	if !approx(bids[1].Price, tickmath.TickToPrice(-100, 18, 18), 1e-12) {
		t.Fatalf("bid price should be the sub-range upper bound: %v", bids[1].Price)
	}
	if len(sideLevels(raw, model.SideAsk)) != 0 {
		t.Fatalf("no ask range expected when upper bound is the current tick")
	}
}

func TestComputeDepthV3Idempotent(t *testing.T) {
	scan := scanner.Result{Lower: -1000, Upper: 1000, Levels: []scanner.IndexLiquidity{level(-100, 300, 1000), level(100, -200, 800)}}
	first, err := ComputeDepthV3(concentratedState(1000), scan, 1.5, 20)
	if err != nil {
		t.Fatalf("ComputeDepthV3: %v", err)
	}
	second, err := ComputeDepthV3(concentratedState(1000), scan, 1.5, 20)
	if err != nil {
		t.Fatalf("ComputeDepthV3: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between identical runs")
	}
}

func TestSelectRoutesVariants(t *testing.T) {
	cases := []struct {
		state model.PoolState
		want  Engine
	}{
		{v2State(1, 1), ConstantProduct{}},
		{concentratedState(1), Concentrated{}},
		{model.BinState{}, Bins{}},
		{model.BondingCurveState{}, BondingCurve{}},
		{model.BondingCurveState{Complete: true}, ConstantProduct{}},
	}
	for _, c := range cases {
		if got := Select(c.state); got != c.want {
			t.Fatalf("Select(%T) = %T, want %T", c.state, got, c.want)
		}
	}
	if Select(nil) != nil {
		t.Fatalf("expected nil engine for nil state")
	}
}

func TestCompletedBondingCurveUsesRealReserves(t *testing.T) {
	state := model.BondingCurveState{
		VirtualTokenReserves: big.NewInt(1_000_000_000),
		VirtualSolReserves:   big.NewInt(30_000_000),
		RealTokenReserves:    big.NewInt(1_000_000),
		RealSolReserves:      big.NewInt(4_000_000),
		Complete:             true,
	}
	raw, err := Compute(Input{State: state, LevelCount: 5})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !approx(raw.CurrentPrice, 4.0, 1e-12) {
		t.Fatalf("completed curve must price real reserves, got %v", raw.CurrentPrice)
	}
}

func TestBondingCurveCaps(t *testing.T) {
	state := model.BondingCurveState{
		VirtualTokenReserves: big.NewInt(1_000_000_000_000_000),
		VirtualSolReserves:   big.NewInt(30_000_000_000),
		RealTokenReserves:    big.NewInt(1_000_000_000),
		RealSolReserves:      big.NewInt(1_000_000_000),
		Token0:               model.TokenMeta{Decimals: 6},
		Token1:               model.TokenMeta{Decimals: 9},
	}
	raw, err := Compute(Input{State: state, LevelCount: 10})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !approx(raw.CurrentPrice, 30e9/1e15*1e-3, 1e-12) {
		t.Fatalf("current price = %v", raw.CurrentPrice)
	}
	solCap := decimal.NewFromInt(1_000_000_000)
	for _, l := range raw.Levels {
		if l.Side == model.SideBid && l.Token1.GreaterThan(solCap) {
			t.Fatalf("bid exceeds real sol reserves: %s", l.Token1)
		}
		if l.Side == model.SideAsk && l.Token0.GreaterThan(decimal.NewFromInt(1_000_000_000)) {
			t.Fatalf("ask exceeds real token reserves: %s", l.Token0)
		}
	}
	bids := sideLevels(raw, model.SideBid)
	if !bids[len(bids)-1].Token1.Equal(solCap) {
		t.Fatalf("outer bid should hit the sol cap, got %s", bids[len(bids)-1].Token1)
	}
}

func TestBinsSplitActiveBin(t *testing.T) {
	state := model.BinState{
		Pool:        model.PoolTypeMeteoraDLMM,
		ActiveBinID: 0,
		BinStep:     10,
		Bins: []model.BinRecord{
			{BinID: 1, AmountX: big.NewInt(30), AmountY: big.NewInt(0)},
			{BinID: -1, AmountX: big.NewInt(0), AmountY: big.NewInt(100)},
			{BinID: 0, AmountX: big.NewInt(50), AmountY: big.NewInt(70)},
		},
	}
	raw, err := Compute(Input{State: state})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if raw.CurrentPrice != 1 || raw.Cumulative {
		t.Fatalf("unexpected depth header: %+v", raw)
	}
	bids := sideLevels(raw, model.SideBid)
	asks := sideLevels(raw, model.SideAsk)
	if len(bids) != 2 || len(asks) != 2 {
		t.Fatalf("expected 2 levels per side, got %d/%d", len(bids), len(asks))
	}
	if bids[0].Token1.IntPart() != 70 || bids[1].Token1.IntPart() != 100 {
		t.Fatalf("unexpected bid amounts: %s %s", bids[0].Token1, bids[1].Token1)
	}
	if asks[0].Token0.IntPart() != 50 || asks[1].Token0.IntPart() != 30 {
		t.Fatalf("unexpected ask amounts: %s %s", asks[0].Token0, asks[1].Token0)
	}
	if !approx(bids[1].Price, 1/1.001, 1e-12) || !approx(asks[1].Price, 1.001, 1e-12) {
		t.Fatalf("unexpected bin prices: %v %v", bids[1].Price, asks[1].Price)
	}
}

func TestNormalizeClampsAndDrops(t *testing.T) {
	raw := RawDepth{
		CurrentPrice: 2,
		Levels: []RawLevel{
			{Side: model.SideBid, Price: 1.9, Token0: decimal.Zero, Token1: decimal.NewFromInt(-5)},
			{Side: model.SideBid, Price: 2.5, Token0: decimal.Zero, Token1: decimal.NewFromInt(5)},
			{Side: model.SideAsk, Price: math.NaN(), Token0: decimal.NewFromInt(1), Token1: decimal.Zero},
			{Side: model.SideAsk, Price: 2.1, Token0: decimal.NewFromInt(3), Token1: decimal.Zero},
		},
	}
	out, err := Normalize(raw, Options{PriceUsd: 10}, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Clamped != 1 || out.Dropped != 2 {
		t.Fatalf("clamped=%d dropped=%d", out.Clamped, out.Dropped)
	}
	if len(out.Bids) != 1 || out.Bids[0].Token1Amount != 0 || out.Bids[0].LiquidityUSD != 0 {
		t.Fatalf("unexpected bids: %+v", out.Bids)
	}
	if len(out.Asks) != 1 || !approx(out.Asks[0].Price, 10.5, 1e-12) || !approx(out.Asks[0].LiquidityUSD, 30, 1e-12) {
		t.Fatalf("unexpected asks: %+v", out.Asks)
	}
}

func TestNormalizeScalesDecimals(t *testing.T) {
	raw := RawDepth{
		CurrentPrice: 2000,
		Levels: []RawLevel{
			{Side: model.SideBid, Price: 1990, Token0: decimal.Zero, Token1: decimal.NewFromInt(4_000_000)},
			{Side: model.SideAsk, Price: 2010, Token0: decimal.RequireFromString("500000000000000000"), Token1: decimal.Zero},
		},
	}
	out, err := Normalize(raw, Options{PriceUsd: 2000, Token0Decimals: 18, Token1Decimals: 6}, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Bids[0].Token1Amount != 4 || !approx(out.Bids[0].LiquidityUSD, 4, 1e-12) {
		t.Fatalf("unexpected bid: %+v", out.Bids[0])
	}
	if out.Asks[0].Token0Amount != 0.5 || !approx(out.Asks[0].LiquidityUSD, 1000, 1e-12) {
		t.Fatalf("unexpected ask: %+v", out.Asks[0])
	}
}

func TestNormalizePrecisionBuckets(t *testing.T) {
	raw := RawDepth{
		CurrentPrice: 2,
		Levels: []RawLevel{
			{Side: model.SideBid, Price: 1.97, Token0: decimal.Zero, Token1: decimal.NewFromInt(1)},
			{Side: model.SideBid, Price: 1.93, Token0: decimal.Zero, Token1: decimal.NewFromInt(2)},
			{Side: model.SideBid, Price: 1.85, Token0: decimal.Zero, Token1: decimal.NewFromInt(4)},
			{Side: model.SideAsk, Price: 2.03, Token0: decimal.NewFromInt(1), Token1: decimal.Zero},
		},
	}
	out, err := Normalize(raw, Options{Precision: 0.1}, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Bids) != 2 {
		t.Fatalf("expected bids merged into 2 buckets, got %+v", out.Bids)
	}
	if !approx(out.Bids[0].Price, 1.9, 1e-9) || out.Bids[0].Token1Amount != 3 {
		t.Fatalf("unexpected first bucket: %+v", out.Bids[0])
	}
	if !approx(out.Bids[1].Price, 1.8, 1e-9) {
		t.Fatalf("unexpected second bucket: %+v", out.Bids[1])
	}
	if !approx(out.Asks[0].Price, 2.1, 1e-9) {
		t.Fatalf("ask should round up: %+v", out.Asks[0])
	}
}

func TestNormalizeTruncatesNearestFirst(t *testing.T) {
	raw, err := Compute(Input{State: v2State(1_000_000, 2_000_000), LevelCount: 30})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	out, err := Normalize(raw, Options{MaxLevels: 5}, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out.Bids) != 5 || len(out.Asks) != 5 {
		t.Fatalf("expected 5 levels per side, got %d/%d", len(out.Bids), len(out.Asks))
	}
	nearest := sideLevels(raw, model.SideBid)[0]
	if !approx(out.Bids[0].Price, nearest.Price, 1e-12) {
		t.Fatalf("truncation must keep the nearest level")
	}
}

func TestNormalizeRejectsNegativePrecision(t *testing.T) {
	_, err := Normalize(RawDepth{}, Options{Precision: -1}, nil)
	var validation *model.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildCurve(t *testing.T) {
	bids := []model.DepthLevel{{Price: 99, LiquidityUSD: 10}, {Price: 98, LiquidityUSD: 20}, {Price: 90, LiquidityUSD: 5}}
	asks := []model.DepthLevel{{Price: 101, LiquidityUSD: 7}}
	c := BuildCurve(bids, asks, 100, false)

	cumulative := []float64{c.Bids[0].CumulativeUSD, c.Bids[1].CumulativeUSD, c.Bids[2].CumulativeUSD}
	if !reflect.DeepEqual(cumulative, []float64{10, 30, 35}) {
		t.Fatalf("cumulative = %v", cumulative)
	}
	if !approx(c.Bids[2].PriceImpactPct, 10, 1e-12) {
		t.Fatalf("impact = %v", c.Bids[2].PriceImpactPct)
	}
	if c.Stats.TotalBidUSD != 35 || c.Stats.TotalAskUSD != 7 || c.Stats.DepthRatio != 5 {
		t.Fatalf("unexpected totals: %+v", c.Stats)
	}
	if c.Stats.BidWithin1Pct != 10 || c.Stats.BidWithin5Pct != 30 || c.Stats.AskWithin1Pct != 7 {
		t.Fatalf("unexpected within stats: %+v", c.Stats)
	}
}

func TestBuildCurveCumulativeLevels(t *testing.T) {
	bids := []model.DepthLevel{{Price: 99, LiquidityUSD: 10}, {Price: 95, LiquidityUSD: 40}}
	c := BuildCurve(bids, nil, 100, true)
	if c.Bids[1].CumulativeUSD != 40 || c.Stats.TotalBidUSD != 40 || c.Stats.DepthRatio != 0 {
		t.Fatalf("unexpected cumulative curve: %+v", c)
	}
}
