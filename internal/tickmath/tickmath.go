// Package tickmath implements the concentrated-liquidity price law price(i) = 1.0001^i
// and the fixed-point helpers needed to turn tick ranges into token amounts.
package tickmath

import (
	"fmt"
	"math"
	"math/big"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// Base is the price ratio between adjacent ticks.
	Base = 1.0001
)

var logBase = math.Log(Base)

// DecimalsFactor is 10^(dec0-dec1), the scaling from raw to human token1/token0 prices.
func DecimalsFactor(dec0, dec1 uint8) float64 {
	return math.Pow(10, float64(int(dec0)-int(dec1)))
}

// TickToPrice returns the human price of token0 in token1 at tick.
func TickToPrice(tick int32, dec0, dec1 uint8) float64 {
	return math.Pow(Base, float64(tick)) * DecimalsFactor(dec0, dec1)
}

// PriceToTick returns the greatest tick whose price does not exceed price.
// A tick boundary therefore belongs to the range that starts at it.
func PriceToTick(price float64, dec0, dec1 uint8) (int32, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("price must be positive and finite: %v", price)
	}
	raw := price / DecimalsFactor(dec0, dec1)
	tick := math.Floor(math.Log(raw) / logBase)

	// log rounding can land one tick off in either direction
	if math.Pow(Base, tick+1) <= raw {
		tick++
	} else if math.Pow(Base, tick) > raw {
		tick--
	}

	if tick < float64(MinTick) {
		return MinTick, nil
	}
	if tick > float64(MaxTick) {
		return MaxTick, nil
	}
	return int32(tick), nil
}

// AlignDown rounds tick down to a multiple of spacing.
func AlignDown(tick, spacing int32) int32 {
	return Compress(tick, spacing) * spacing
}

// SqrtPriceToPrice converts a fixed-point sqrt price with resolution fractional
// bits into the human token1/token0 price.
func SqrtPriceToPrice(sqrtPrice *big.Int, resolution uint, dec0, dec1 uint8) float64 {
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).SetPrec(256).SetInt(sqrtPrice)
	ratio.Quo(ratio, new(big.Float).SetPrec(256).SetInt(new(big.Int).Lsh(big.NewInt(1), resolution)))
	ratio.Mul(ratio, ratio)
	price, _ := ratio.Float64()
	return price * DecimalsFactor(dec0, dec1)
}
