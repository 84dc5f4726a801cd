package depth

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/tickmath"
)

// Bins prices Meteora DLMM pairs. Every non-empty bin is one level: bins
// below the active bin are bids, bins above are asks, and the active bin is
// split between both sides.
type Bins struct{}

func (Bins) Compute(in Input) (RawDepth, error) {
	s, ok := in.State.(model.BinState)
	if !ok {
		return RawDepth{}, &model.ValidationError{Field: "state", Reason: "bin engine needs bin state"}
	}
	factor := tickmath.DecimalsFactor(s.Token0.Decimals, s.Token1.Decimals)
	price := func(bin model.BinRecord) float64 {
		if bin.Price > 0 {
			return bin.Price * factor
		}
		return BinPrice(bin.BinID, s.BinStep) * factor
	}

	bins := append([]model.BinRecord(nil), s.Bins...)
	sort.Slice(bins, func(i, j int) bool { return bins[i].BinID < bins[j].BinID })

	out := RawDepth{CurrentPrice: BinPrice(s.ActiveBinID, s.BinStep) * factor, Levels: []RawLevel{}}
	n := in.levelCount()
	asks := make([]RawLevel, 0)
	bids := make([]RawLevel, 0)

	for _, bin := range bins {
		if bin.BinID == s.ActiveBinID {
			out.CurrentPrice = price(bin)
		}
		if bin.BinID < s.ActiveBinID || len(asks) >= n {
			continue
		}
		if bin.BinID == s.ActiveBinID {
			if bigOrZero(bin.AmountX).Sign() > 0 {
				asks = append(asks, RawLevel{Side: model.SideAsk, Price: price(bin), Token0: decimal.NewFromBigInt(bigOrZero(bin.AmountX), 0), Token1: decimal.Zero})
			}
			continue
		}
		asks = append(asks, binLevel(model.SideAsk, price(bin), bin))
	}
	for i := len(bins) - 1; i >= 0 && len(bids) < n; i-- {
		bin := bins[i]
		switch {
		case bin.BinID > s.ActiveBinID:
			continue
		case bin.BinID == s.ActiveBinID:
			if bigOrZero(bin.AmountY).Sign() > 0 {
				bids = append(bids, RawLevel{Side: model.SideBid, Price: price(bin), Token0: decimal.Zero, Token1: decimal.NewFromBigInt(bigOrZero(bin.AmountY), 0)})
			}
		default:
			bids = append(bids, binLevel(model.SideBid, price(bin), bin))
		}
	}

	out.Levels = append(bids, asks...)
	return out, nil
}

// BinPrice is (1 + binStep/10000)^binID, the raw price of a bin in base units.
func BinPrice(binID int32, binStep uint16) float64 {
	return math.Pow(1+float64(binStep)/10000, float64(binID))
}

func binLevel(side model.Side, price float64, bin model.BinRecord) RawLevel {
	return RawLevel{
		Side:   side,
		Price:  price,
		Token0: decimal.NewFromBigInt(bigOrZero(bin.AmountX), 0),
		Token1: decimal.NewFromBigInt(bigOrZero(bin.AmountY), 0),
	}
}
