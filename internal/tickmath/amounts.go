package tickmath

import "math/big"

func orderSqrt(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		return sqrtB, sqrtA
	}
	return sqrtA, sqrtB
}

// Amount0ForLiquidity returns L*(sqrtB-sqrtA)*2^res/(sqrtA*sqrtB), the token0
// held by liquidity across the range. The result is in token0 base units.
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int, resolution uint) *big.Int {
	if sqrtA == nil || sqrtB == nil || liquidity == nil || sqrtA.Sign() <= 0 || sqrtB.Sign() <= 0 {
		return new(big.Int)
	}
	lower, upper := orderSqrt(sqrtA, sqrtB)
	num := new(big.Int).Sub(upper, lower)
	num.Mul(num, liquidity)
	num.Lsh(num, resolution)
	den := new(big.Int).Mul(lower, upper)
	return num.Quo(num, den)
}

// Amount1ForLiquidity returns L*(sqrtB-sqrtA)/2^res, the token1 held by
// liquidity across the range. The result is in token1 base units.
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int, resolution uint) *big.Int {
	if sqrtA == nil || sqrtB == nil || liquidity == nil {
		return new(big.Int)
	}
	lower, upper := orderSqrt(sqrtA, sqrtB)
	out := new(big.Int).Sub(upper, lower)
	out.Mul(out, liquidity)
	return out.Quo(out, new(big.Int).Lsh(big.NewInt(1), resolution))
}
