package depth

import "liquidityDepth/internal/model"

// BondingCurve samples a PumpSwap virtual-reserve curve. The price is
// virtualSol/virtualToken; asks are capped by the real token reserves and
// bids by the real SOL reserves.
type BondingCurve struct{}

func (BondingCurve) Compute(in Input) (RawDepth, error) {
	s, ok := in.State.(model.BondingCurveState)
	if !ok {
		return RawDepth{}, &model.ValidationError{Field: "state", Reason: "bonding curve engine needs curve state"}
	}
	if s.Complete {
		return ConstantProduct{}.Compute(in)
	}
	return sampleCurve(reserveCurve{
		x:    bigOrZero(s.VirtualTokenReserves),
		y:    bigOrZero(s.VirtualSolReserves),
		dec0: s.Token0.Decimals,
		dec1: s.Token1.Decimals,
		capX: bigOrZero(s.RealTokenReserves),
		capY: bigOrZero(s.RealSolReserves),
	}, in), nil
}
