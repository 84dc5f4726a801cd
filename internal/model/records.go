package model

import "math/big"

// TickRecord is an initialized tick.
type TickRecord struct {
	Index          int32    `json:"index"`
	LiquidityNet   *big.Int `json:"liquidity_net"`
	LiquidityGross *big.Int `json:"liquidity_gross"`
}

// Initialized reports whether the tick holds any liquidity reference.
func (t TickRecord) Initialized() bool {
	return t.LiquidityGross != nil && t.LiquidityGross.Sign() > 0
}

// BinRecord is a DLMM bin with absolute amounts in base units.
// Price is token Y per token X in base units.
type BinRecord struct {
	BinID   int32    `json:"bin_id"`
	AmountX *big.Int `json:"amount_x"`
	AmountY *big.Int `json:"amount_y"`
	Price   float64  `json:"price"`
}

// Initialized reports whether the bin holds any tokens.
func (b BinRecord) Initialized() bool {
	return (b.AmountX != nil && b.AmountX.Sign() > 0) || (b.AmountY != nil && b.AmountY.Sign() > 0)
}

// LiquidityCluster is a contiguous run of initialized ticks or bins.
type LiquidityCluster struct {
	LowerBound     int32    `json:"lower_bound"`
	UpperBound     int32    `json:"upper_bound"`
	TotalLiquidity *big.Int `json:"total_liquidity"`
	MemberCount    int      `json:"member_count"`
}
