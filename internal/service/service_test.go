package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/model"
	"liquidityDepth/internal/reader"
	"liquidityDepth/internal/scanner"
	"liquidityDepth/internal/tickmath"
)

const testPool = "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"

type fakeDetector struct {
	poolType model.PoolType
	calls    int
}

func (f *fakeDetector) Detect(context.Context, model.PoolIdentity, string) model.PoolType {
	f.calls++
	return f.poolType
}

type fakeReader struct {
	state model.PoolState
	src   scanner.Source
	err   error
	calls int
}

func (f *fakeReader) ReadState(context.Context, model.PoolIdentity, model.PoolType, reader.Options) (model.PoolState, scanner.Source, error) {
	f.calls++
	return f.state, f.src, f.err
}

type fakeSource struct {
	records []model.TickRecord
}

func (f fakeSource) InitializedIndices(_ context.Context, lower, upper int32) ([]int32, error) {
	out := make([]int32, 0)
	for _, r := range f.records {
		if r.Index >= lower && r.Index <= upper {
			out = append(out, r.Index)
		}
	}
	return out, nil
}

func (f fakeSource) Records(context.Context, []int32) ([]model.TickRecord, error) {
	return f.records, nil
}

func v2Reserves() model.ReserveState {
	return model.ReserveState{
		Pool:     model.PoolTypeV2,
		Reserve0: big.NewInt(1_000_000),
		Reserve1: big.NewInt(2_000_000),
		Token0:   model.TokenMeta{Symbol: "AAA"},
		Token1:   model.TokenMeta{Symbol: "BBB"},
	}
}

func v2Request() Request {
	return Request{ChainID: "ethereum", PoolAddress: testPool, PriceUsd: 2000, LevelCount: 10}
}

func TestGetLiquidityDepthRejectsBadAddress(t *testing.T) {
	r := &fakeReader{state: v2Reserves()}
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, nil, Settings{}, nil)
	_, err := svc.GetLiquidityDepth(context.Background(), Request{ChainID: "ethereum", PoolAddress: "0x1234"})
	var validation *model.ValidationError
	if !errors.As(err, &validation) || validation.Field != "poolAddress" {
		t.Fatalf("expected poolAddress validation error, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("state must not be read for invalid input")
	}
}

func TestGetLiquidityDepthRejectsNegativePrice(t *testing.T) {
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, &fakeReader{state: v2Reserves()}, nil, Settings{}, nil)
	req := v2Request()
	req.PriceUsd = -5
	if _, err := svc.GetLiquidityDepth(context.Background(), req); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestGetLiquidityDepthUnknownPool(t *testing.T) {
	r := &fakeReader{}
	svc := New(&fakeDetector{poolType: model.PoolTypeUnknown}, r, nil, Settings{}, nil)
	result, err := svc.GetLiquidityDepth(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"bids":[],"asks":[],"currentPrice":0,"poolType":"unknown"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
	if r.calls != 0 {
		t.Fatalf("unknown pools must not be read")
	}
}

func TestGetLiquidityDepthV2(t *testing.T) {
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, &fakeReader{state: v2Reserves()}, nil, Settings{}, nil)
	result, err := svc.GetLiquidityDepth(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("GetLiquidityDepth: %v", err)
	}
	if result.PoolType != model.PoolTypeV2 || result.CurrentPrice != 2 {
		t.Fatalf("unexpected header: %s %v", result.PoolType, result.CurrentPrice)
	}
	if len(result.Bids) != 10 || len(result.Asks) != 10 {
		t.Fatalf("expected 10 levels per side, got %d/%d", len(result.Bids), len(result.Asks))
	}
	if result.Bids[0].Price >= 2000 || result.Asks[0].Price <= 2000 {
		t.Fatalf("levels must straddle the usd price: %v %v", result.Bids[0].Price, result.Asks[0].Price)
	}
	if !result.Cumulative || result.Token0.Symbol != "AAA" {
		t.Fatalf("diagnostics not carried: %+v", result)
	}
}

func TestGetLiquidityDepthPrecisionGrid(t *testing.T) {
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, &fakeReader{state: v2Reserves()}, nil, Settings{}, nil)
	req := v2Request()
	req.Precision = 50
	result, err := svc.GetLiquidityDepth(context.Background(), req)
	if err != nil {
		t.Fatalf("GetLiquidityDepth: %v", err)
	}
	if len(result.Bids) == 0 {
		t.Fatalf("expected bids")
	}
	for _, l := range append(result.Bids, result.Asks...) {
		if q := l.Price / 50; math.Abs(q-math.Round(q)) > 1e-6 {
			t.Fatalf("price %v not on the 50 grid", l.Price)
		}
	}
}

func TestGetLiquidityDepthReadFailureDegrades(t *testing.T) {
	r := &fakeReader{err: &model.ExternalServiceError{Service: "rpc", Op: "v2 state", Err: errors.New("timeout")}}
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, nil, Settings{}, nil)
	result, err := svc.GetLiquidityDepth(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("transport failures must degrade, got %v", err)
	}
	if !result.Partial || len(result.Bids) != 0 || result.Bids == nil || result.PoolType != model.PoolTypeV2 {
		t.Fatalf("expected empty partial result, got %+v", result)
	}
}

func TestGetLiquidityDepthReadValidationFails(t *testing.T) {
	r := &fakeReader{err: &model.ValidationError{Field: "poolAddress", Reason: "account not found"}}
	svc := New(&fakeDetector{poolType: model.PoolTypeRaydiumAMM}, r, nil, Settings{}, nil)
	req := Request{ChainID: "solana", PoolAddress: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"}
	if _, err := svc.GetLiquidityDepth(context.Background(), req); err == nil {
		t.Fatalf("expected validation error from reader")
	}
}

func TestGetLiquidityDepthCachesResult(t *testing.T) {
	r := &fakeReader{state: v2Reserves()}
	mem := cache.NewMemory(10, time.Minute)
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, mem, Settings{}, nil)

	first, err := svc.GetLiquidityDepth(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GetLiquidityDepth(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("expected one read, got %d", r.calls)
	}
	if len(second.Bids) != len(first.Bids) || second.Bids[0] != first.Bids[0] || second.Token0 != first.Token0 || !second.Cumulative {
		t.Fatalf("cached result differs")
	}
}

func TestPartialResultNotCached(t *testing.T) {
	r := &fakeReader{err: &model.ExternalServiceError{Service: "rpc", Err: errors.New("down")}}
	mem := cache.NewMemory(10, time.Minute)
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, mem, Settings{}, nil)
	for i := 0; i < 2; i++ {
		if _, err := svc.GetLiquidityDepth(context.Background(), v2Request()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if r.calls != 2 {
		t.Fatalf("partial results must not be cached, reads = %d", r.calls)
	}
}

func concentrated() (model.ConcentratedState, fakeSource) {
	sqrt, _ := tickmath.SqrtRatioAtTick(0)
	state := model.ConcentratedState{
		Pool:        model.PoolTypeV3,
		SqrtPrice:   sqrt,
		Resolution:  96,
		CurrentTick: 0,
		Liquidity:   big.NewInt(1_000_000_000),
		TickSpacing: 10,
		Token0:      model.TokenMeta{Decimals: 0},
		Token1:      model.TokenMeta{Decimals: 0},
	}
	src := fakeSource{records: []model.TickRecord{
		{Index: -100, LiquidityNet: big.NewInt(400_000_000), LiquidityGross: big.NewInt(400_000_000)},
		{Index: -80, LiquidityNet: big.NewInt(600_000_000), LiquidityGross: big.NewInt(600_000_000)},
		{Index: 200, LiquidityNet: big.NewInt(-1_000_000_000), LiquidityGross: big.NewInt(1_000_000_000)},
	}}
	return state, src
}

func TestGetLiquidityDepthConcentrated(t *testing.T) {
	state, src := concentrated()
	svc := New(&fakeDetector{poolType: model.PoolTypeV3}, &fakeReader{state: state, src: src}, nil, Settings{TickRange: 1000}, nil)
	result, err := svc.GetLiquidityDepth(context.Background(), Request{ChainID: "ethereum", PoolAddress: testPool, PriceUsd: 1})
	if err != nil {
		t.Fatalf("GetLiquidityDepth: %v", err)
	}
	if result.Cumulative || len(result.Bids) == 0 || len(result.Asks) == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for i := 1; i < len(result.Bids); i++ {
		if result.Bids[i].Price >= result.Bids[i-1].Price {
			t.Fatalf("bids not strictly descending")
		}
	}
	last := result.Asks[len(result.Asks)-1]
	if last.Token0Amount != 0 {
		t.Fatalf("liquidity above tick 200 is zero, got %v", last.Token0Amount)
	}
}

func TestScanTickLiquidity(t *testing.T) {
	state, src := concentrated()
	svc := New(&fakeDetector{poolType: model.PoolTypeV3}, &fakeReader{state: state, src: src}, nil, Settings{}, nil)
	view, err := svc.ScanTickLiquidity(context.Background(), Request{ChainID: "ethereum", PoolAddress: testPool, PriceUsd: 3}, 500)
	if err != nil {
		t.Fatalf("ScanTickLiquidity: %v", err)
	}
	if view.Stats.TotalTicks != 3 || len(view.Ticks) != 3 {
		t.Fatalf("expected 3 ticks, got %+v", view.Stats)
	}
	if math.Abs(view.CurrentPrice-3) > 1e-9 {
		t.Fatalf("current price = %v, want 3", view.CurrentPrice)
	}
	if view.Ticks[0].Index != -100 || view.Ticks[0].Liquidity.Int64() != 400_000_000 {
		t.Fatalf("unexpected lowest tick: %+v", view.Ticks[0])
	}
	// -100 and -80 merge within 10 spacings; 200 stands alone
	if len(view.Clusters) != 2 || view.Clusters[0].TickCount != 2 {
		t.Fatalf("unexpected clusters: %+v", view.Clusters)
	}
	if view.Clusters[0].LowerPrice >= view.Clusters[0].UpperPrice {
		t.Fatalf("cluster price bounds out of order")
	}
}

func TestScanTickLiquidityNonTickPool(t *testing.T) {
	r := &fakeReader{}
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, nil, Settings{}, nil)
	view, err := svc.ScanTickLiquidity(context.Background(), v2Request(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Ticks) != 0 || view.Ticks == nil || r.calls != 0 {
		t.Fatalf("expected empty tick view without reads")
	}
}

func TestGetDepthCurve(t *testing.T) {
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, &fakeReader{state: v2Reserves()}, nil, Settings{}, nil)
	curve, err := svc.GetDepthCurve(context.Background(), v2Request())
	if err != nil {
		t.Fatalf("GetDepthCurve: %v", err)
	}
	if math.Abs(curve.MidPrice-2000) > 1e-9 {
		t.Fatalf("mid = %v, want 2000", curve.MidPrice)
	}
	if curve.Stats.TotalBidUSD <= 0 || curve.Stats.TotalAskUSD <= 0 || curve.Stats.DepthRatio <= 0 {
		t.Fatalf("unexpected stats: %+v", curve.Stats)
	}
	if curve.Stats.BidWithin5Pct > curve.Stats.TotalBidUSD {
		t.Fatalf("band liquidity exceeds total")
	}
	payload, err := json.Marshal(curve)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"depthRatio"`) || !strings.Contains(string(payload), `"poolType":"v2"`) {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestDetectPoolTypeValidates(t *testing.T) {
	d := &fakeDetector{poolType: model.PoolTypeV3}
	svc := New(d, &fakeReader{}, nil, Settings{}, nil)
	if _, err := svc.DetectPoolType(context.Background(), "dogechain", testPool, ""); err == nil {
		t.Fatalf("expected chain validation error")
	}
	got, err := svc.DetectPoolType(context.Background(), "ethereum", testPool, "")
	if err != nil || got != model.PoolTypeV3 || d.calls != 1 {
		t.Fatalf("got %s %v calls=%d", got, err, d.calls)
	}
}

func TestDepthCacheKeySeparatesRequestHints(t *testing.T) {
	r := &fakeReader{state: v2Reserves()}
	mem := cache.NewMemory(10, time.Minute)
	svc := New(&fakeDetector{poolType: model.PoolTypeV2}, r, mem, Settings{}, nil)

	plain := v2Request()
	withDecimals := v2Request()
	withDecimals.Token0 = &model.TokenMeta{Decimals: 3, Symbol: "AAA"}
	withHint := v2Request()
	withHint.DexHint = "uniswap"
	withSpacing := v2Request()
	withSpacing.TickSpacing = 60

	for _, req := range []Request{plain, withDecimals, withHint, withSpacing, plain} {
		if _, err := svc.GetLiquidityDepth(context.Background(), req); err != nil {
			t.Fatalf("GetLiquidityDepth: %v", err)
		}
	}
	if r.calls != 4 {
		t.Fatalf("expected one read per distinct request, got %d", r.calls)
	}
}

func TestGetLiquidityDepthMissingPoolIsEmpty(t *testing.T) {
	r := &fakeReader{err: &model.NotFoundError{Resource: "pool account", Key: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2", Reason: "account does not exist"}}
	mem := cache.NewMemory(10, time.Minute)
	svc := New(&fakeDetector{poolType: model.PoolTypeBondingCurve}, r, mem, Settings{}, nil)
	req := Request{ChainID: "solana", PoolAddress: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"}

	result, err := svc.GetLiquidityDepth(context.Background(), req)
	if err != nil {
		t.Fatalf("missing pools must not fail, got %v", err)
	}
	if result.Partial || result.PoolType != model.PoolTypeBondingCurve || len(result.Bids) != 0 || result.Asks == nil {
		t.Fatalf("expected empty non-partial result, got %+v", result)
	}
	if _, err := svc.GetLiquidityDepth(context.Background(), req); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if r.calls != 2 {
		t.Fatalf("empty results must not be cached, got %d reads", r.calls)
	}

	view, err := svc.ScanTickLiquidity(context.Background(), Request{ChainID: "solana", PoolAddress: req.PoolAddress, PoolType: model.PoolTypeRaydiumCLMM}, 0)
	if err != nil || len(view.Ticks) != 0 {
		t.Fatalf("expected empty tick view, got %+v %v", view, err)
	}
}
