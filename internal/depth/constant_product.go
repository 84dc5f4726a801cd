package depth

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/tickmath"
)

const floatPrec = 256

// ConstantProduct prices x·y=k pools: V2 pairs, Raydium AMM and migrated
// bonding curves.
type ConstantProduct struct{}

func (ConstantProduct) Compute(in Input) (RawDepth, error) {
	var x, y *big.Int
	var token0, token1 model.TokenMeta
	switch s := in.State.(type) {
	case model.ReserveState:
		x, y, token0, token1 = s.Reserve0, s.Reserve1, s.Token0, s.Token1
	case model.BondingCurveState:
		x, y, token0, token1 = s.RealTokenReserves, s.RealSolReserves, s.Token0, s.Token1
	default:
		return RawDepth{}, &model.ValidationError{Field: "state", Reason: "constant product engine needs reserves"}
	}
	return sampleCurve(reserveCurve{x: bigOrZero(x), y: bigOrZero(y), dec0: token0.Decimals, dec1: token1.Decimals}, in), nil
}

// reserveCurve is a constant-product curve in base units. Non-nil caps bound the
// amount each side can deliver.
type reserveCurve struct {
	x, y       *big.Int
	dec0, dec1 uint8
	capX, capY *big.Int
}

// sampleCurve samples bid and ask targets between the current price and the
// outer bound. Each level is cumulative: bids carry y - sqrt(k·P') of token1,
// asks carry x - sqrt(k/P') of token0.
func sampleCurve(c reserveCurve, in Input) RawDepth {
	if c.x.Sign() <= 0 || c.y.Sign() <= 0 {
		return RawDepth{Levels: []RawLevel{}, Cumulative: true}
	}
	x := new(big.Float).SetPrec(floatPrec).SetInt(c.x)
	y := new(big.Float).SetPrec(floatPrec).SetInt(c.y)
	k := new(big.Float).SetPrec(floatPrec).Mul(x, y)

	rawPrice, _ := new(big.Float).SetPrec(floatPrec).Quo(y, x).Float64()
	factor := tickmath.DecimalsFactor(c.dec0, c.dec1)
	out := RawDepth{CurrentPrice: rawPrice * factor, Cumulative: true}

	rawStep := 0.0
	if in.Step > 0 && factor > 0 {
		rawStep = in.Step / factor
	}
	r := in.outerRange()
	n := in.levelCount()

	for _, target := range sampleTargets(rawPrice, r, rawStep, n, model.SideBid) {
		p := new(big.Float).SetPrec(floatPrec).SetFloat64(target)
		yPrime := new(big.Float).SetPrec(floatPrec).Mul(k, p)
		yPrime.Sqrt(yPrime)
		amount := capAmount(toDecimal(new(big.Float).SetPrec(floatPrec).Sub(y, yPrime)), c.capY)
		out.Levels = append(out.Levels, RawLevel{Side: model.SideBid, Price: target * factor, Token0: decimal.Zero, Token1: amount})
	}
	for _, target := range sampleTargets(rawPrice, r, rawStep, n, model.SideAsk) {
		p := new(big.Float).SetPrec(floatPrec).SetFloat64(target)
		xPrime := new(big.Float).SetPrec(floatPrec).Quo(k, p)
		xPrime.Sqrt(xPrime)
		amount := capAmount(toDecimal(new(big.Float).SetPrec(floatPrec).Sub(x, xPrime)), c.capX)
		out.Levels = append(out.Levels, RawLevel{Side: model.SideAsk, Price: target * factor, Token0: amount, Token1: decimal.Zero})
	}
	return out
}

// sampleTargets returns up to n prices moving away from current on side,
// geometric up to current·(1±r), or linear by step when step > 0.
func sampleTargets(current, r, step float64, n int, side model.Side) []float64 {
	targets := make([]float64, 0, n)
	lower, upper := current*(1-r), current*(1+r)
	for i := 1; i <= n; i++ {
		var p float64
		switch {
		case step > 0 && side == model.SideBid:
			p = current - float64(i)*step
			if p < lower || p <= 0 {
				return targets
			}
		case step > 0:
			p = current + float64(i)*step
			if p > upper {
				return targets
			}
		case side == model.SideBid:
			p = current * math.Pow(1-r, float64(i)/float64(n))
		default:
			p = current * math.Pow(1+r, float64(i)/float64(n))
		}
		targets = append(targets, p)
	}
	return targets
}

func toDecimal(f *big.Float) decimal.Decimal {
	d, err := decimal.NewFromString(f.Text('f', 18))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func capAmount(amount decimal.Decimal, limit *big.Int) decimal.Decimal {
	if limit == nil {
		return amount
	}
	max := decimal.NewFromBigInt(limit, 0)
	if amount.GreaterThan(max) {
		return max
	}
	return amount
}
