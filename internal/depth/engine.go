// Package depth turns pool state into order-book style depth. Each pool
// variant has an engine producing raw levels in token base units; Normalize
// converts raw levels into USD-denominated bid and ask lists.
package depth

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/scanner"
)

const (
	DefaultLevelCount = 50
	DefaultRange      = 0.2
	DefaultTickRange  = 5000
)

// RawLevel is one engine level. Price is token1 per token0 adjusted for
// decimals; amounts are base units and may be fractional on curve engines.
type RawLevel struct {
	Side   model.Side
	Price  float64
	Token0 decimal.Decimal
	Token1 decimal.Decimal
}

// RawDepth is the output of an engine.
type RawDepth struct {
	Levels       []RawLevel
	CurrentPrice float64
	Cumulative   bool
}

// Input is everything an engine needs from one read.
type Input struct {
	State model.PoolState
	// Scan is the tick walk for concentrated states. When nil the engine
	// assumes the current liquidity across TickRange.
	Scan *scanner.Result
	// LevelCount bounds the levels emitted per side.
	LevelCount int
	// Range is the outer sampling bound for curve engines as a fraction of
	// the current price.
	Range float64
	// Step samples curve engines linearly by this price increment instead
	// of geometrically.
	Step      float64
	TickRange int32
}

func (in Input) levelCount() int {
	if in.LevelCount <= 0 {
		return DefaultLevelCount
	}
	return in.LevelCount
}

func (in Input) outerRange() float64 {
	if in.Range <= 0 || in.Range >= 1 || math.IsNaN(in.Range) {
		return DefaultRange
	}
	return in.Range
}

func (in Input) tickRange() int32 {
	if in.TickRange <= 0 {
		return DefaultTickRange
	}
	return in.TickRange
}

// Engine computes raw depth for one pool variant.
type Engine interface {
	Compute(in Input) (RawDepth, error)
}

// Select maps a pool state to the engine serving it. A completed bonding
// curve has migrated and is priced as a constant-product pool.
func Select(state model.PoolState) Engine {
	switch s := state.(type) {
	case model.ReserveState:
		return ConstantProduct{}
	case model.ConcentratedState:
		return Concentrated{}
	case model.BinState:
		return Bins{}
	case model.BondingCurveState:
		if s.Complete {
			return ConstantProduct{}
		}
		return BondingCurve{}
	default:
		return nil
	}
}

// Compute selects the engine for in.State and runs it.
func Compute(in Input) (RawDepth, error) {
	engine := Select(in.State)
	if engine == nil {
		return RawDepth{}, &model.ValidationError{Field: "poolType", Reason: "no depth engine for pool state"}
	}
	return engine.Compute(in)
}

// ComputeDepthV2 returns constant-product depth for reserves already in
// comparable units, bids first then asks.
func ComputeDepthV2(reserve0, reserve1 *big.Int, priceUsd float64, levelCount int) ([]model.DepthLevel, error) {
	state := model.ReserveState{
		Pool:     model.PoolTypeV2,
		Reserve0: reserve0,
		Reserve1: reserve1,
		Token0:   model.TokenMeta{Decimals: 0},
		Token1:   model.TokenMeta{Decimals: 0},
	}
	return computeLevels(Input{State: state, LevelCount: levelCount}, priceUsd)
}

// ComputeDepthV3 returns concentrated-liquidity depth for a scanned pool,
// bids first then asks.
func ComputeDepthV3(state model.ConcentratedState, scan scanner.Result, priceUsd float64, levelCount int) ([]model.DepthLevel, error) {
	return computeLevels(Input{State: state, Scan: &scan, LevelCount: levelCount}, priceUsd)
}

func computeLevels(in Input, priceUsd float64) ([]model.DepthLevel, error) {
	if err := ValidatePrice(priceUsd); err != nil {
		return nil, err
	}
	raw, err := Compute(in)
	if err != nil {
		return nil, err
	}
	token0, token1 := model.Tokens(in.State)
	out, err := Normalize(raw, Options{
		PriceUsd:       priceUsd,
		Token0Decimals: token0.Decimals,
		Token1Decimals: token1.Decimals,
		MaxLevels:      in.levelCount(),
	}, nil)
	if err != nil {
		return nil, err
	}
	return append(out.Bids, out.Asks...), nil
}

// ValidatePrice rejects negative and non-finite USD prices.
func ValidatePrice(priceUsd float64) error {
	if math.IsNaN(priceUsd) || math.IsInf(priceUsd, 0) {
		return &model.ValidationError{Field: "priceUsd", Reason: "must be a finite number"}
	}
	if priceUsd < 0 {
		return &model.ValidationError{Field: "priceUsd", Reason: "must not be negative"}
	}
	return nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
