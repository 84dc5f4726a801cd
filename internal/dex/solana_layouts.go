package dex

import (
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"liquidityDepth/internal/model"
)

// Account layouts below mirror the on-chain structs field by field; 128-bit
// integers are kept as raw little-endian bytes and converted on demand.

type raydiumAMMLayout struct {
	Status           uint64
	Nonce            uint64
	OrderNum         uint64
	Depth            uint64
	CoinDecimals     uint64
	PcDecimals       uint64
	State            uint64
	ResetFlag        uint64
	MinSize          uint64
	VolMaxCutRatio   uint64
	AmountWave       uint64
	CoinLotSize      uint64
	PcLotSize        uint64
	MinPriceMultiple uint64
	MaxPriceMultiple uint64
	SysDecimalValue  uint64
	Fees             [8]uint64
	NeedTakePnlCoin  uint64
	NeedTakePnlPc    uint64
	OutputData       [6]uint64
	SwapStats        [80]byte
	CoinVault        solana.PublicKey
	PcVault          solana.PublicKey
	CoinMint         solana.PublicKey
	PcMint           solana.PublicKey
}

type raydiumCLMMPoolLayout struct {
	Discriminator  [8]byte
	Bump           [1]byte
	AmmConfig      solana.PublicKey
	Owner          solana.PublicKey
	TokenMint0     solana.PublicKey
	TokenMint1     solana.PublicKey
	TokenVault0    solana.PublicKey
	TokenVault1    solana.PublicKey
	ObservationKey solana.PublicKey
	MintDecimals0  uint8
	MintDecimals1  uint8
	TickSpacing    uint16
	Liquidity      [16]byte
	SqrtPriceX64   [16]byte
	TickCurrent    int32
}

type raydiumTickLayout struct {
	Tick                 int32
	LiquidityNet         [16]byte
	LiquidityGross       [16]byte
	FeeGrowthOutside0X64 [16]byte
	FeeGrowthOutside1X64 [16]byte
	RewardGrowthsOutside [3][16]byte
	Padding              [13]uint32
}

type raydiumTickArrayLayout struct {
	Discriminator  [8]byte
	PoolID         solana.PublicKey
	StartTickIndex int32
	Ticks          [RaydiumTickArraySize]raydiumTickLayout
}

type whirlpoolLayout struct {
	Discriminator    [8]byte
	WhirlpoolsConfig solana.PublicKey
	Bump             [1]byte
	TickSpacing      uint16
	TickSpacingSeed  [2]byte
	FeeRate          uint16
	ProtocolFeeRate  uint16
	Liquidity        [16]byte
	SqrtPrice        [16]byte
	TickCurrentIndex int32
	ProtocolFeeOwedA uint64
	ProtocolFeeOwedB uint64
	TokenMintA       solana.PublicKey
	TokenVaultA      solana.PublicKey
	FeeGrowthGlobalA [16]byte
	TokenMintB       solana.PublicKey
	TokenVaultB      solana.PublicKey
}

type whirlpoolTickLayout struct {
	Initialized          bool
	LiquidityNet         [16]byte
	LiquidityGross       [16]byte
	FeeGrowthOutsideA    [16]byte
	FeeGrowthOutsideB    [16]byte
	RewardGrowthsOutside [3][16]byte
}

type whirlpoolTickArrayLayout struct {
	Discriminator  [8]byte
	StartTickIndex int32
	Ticks          [WhirlpoolTickArraySize]whirlpoolTickLayout
	Whirlpool      solana.PublicKey
}

type lbPairLayout struct {
	Discriminator         [8]byte
	StaticParameters      [32]byte
	VariableParameters    [32]byte
	BumpSeed              [1]byte
	BinStepSeed           [2]byte
	PairType              uint8
	ActiveID              int32
	BinStep               uint16
	Status                uint8
	RequireBaseFactorSeed uint8
	BaseFactorSeed        [2]byte
	ActivationType        uint8
	Padding0              uint8
	TokenXMint            solana.PublicKey
	TokenYMint            solana.PublicKey
	ReserveX              solana.PublicKey
	ReserveY              solana.PublicKey
}

type dlmmBinLayout struct {
	AmountX                  uint64
	AmountY                  uint64
	Price                    [16]byte
	LiquiditySupply          [16]byte
	RewardPerTokenStored     [2][16]byte
	FeeAmountXPerTokenStored [16]byte
	FeeAmountYPerTokenStored [16]byte
	AmountXIn                [16]byte
	AmountYIn                [16]byte
}

type binArrayLayout struct {
	Discriminator [8]byte
	Index         int64
	Version       uint8
	Padding       [7]byte
	LbPair        solana.PublicKey
	Bins          [DLMMBinsPerArray]dlmmBinLayout
}

type bondingCurveLayout struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

type tokenAccountLayout struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

type mintLayout struct {
	MintAuthorityOption uint32
	MintAuthority       solana.PublicKey
	Supply              uint64
	Decimals            uint8
}

// RaydiumAMM is the subset of a Raydium AMM v4 account used for depth.
type RaydiumAMM struct {
	CoinDecimals    uint8
	PcDecimals      uint8
	NeedTakePnlCoin uint64
	NeedTakePnlPc   uint64
	CoinVault       solana.PublicKey
	PcVault         solana.PublicKey
	CoinMint        solana.PublicKey
	PcMint          solana.PublicKey
}

// RaydiumCLMMPool is the subset of a Raydium CLMM pool account used for depth.
type RaydiumCLMMPool struct {
	Mint0        solana.PublicKey
	Mint1        solana.PublicKey
	Decimals0    uint8
	Decimals1    uint8
	TickSpacing  int32
	Liquidity    *big.Int
	SqrtPriceX64 *big.Int
	TickCurrent  int32
}

// Whirlpool is the subset of an Orca Whirlpool account used for depth.
type Whirlpool struct {
	TickSpacing      int32
	Liquidity        *big.Int
	SqrtPrice        *big.Int
	TickCurrentIndex int32
	MintA            solana.PublicKey
	MintB            solana.PublicKey
}

// TickArray holds the initialized ticks of one fixed-size array account.
type TickArray struct {
	StartTickIndex int32
	Ticks          []model.TickRecord
}

// LbPair is the subset of a Meteora DLMM pair account used for depth.
type LbPair struct {
	ActiveID   int32
	BinStep    uint16
	TokenXMint solana.PublicKey
	TokenYMint solana.PublicKey
}

// BinArray holds the non-empty bins of one DLMM bin array account.
type BinArray struct {
	Index int64
	Bins  []model.BinRecord
}

// BondingCurve is a PumpSwap bonding curve account.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

func decodeLayout(name string, data []byte, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("decode %s: empty account data", name)
	}
	if err := bin.NewBinDecoder(data).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// DecodeRaydiumAMM decodes a Raydium AMM v4 account.
func DecodeRaydiumAMM(data []byte) (RaydiumAMM, error) {
	var layout raydiumAMMLayout
	if err := decodeLayout("raydium amm", data, &layout); err != nil {
		return RaydiumAMM{}, err
	}
	return RaydiumAMM{
		CoinDecimals:    uint8(layout.CoinDecimals),
		PcDecimals:      uint8(layout.PcDecimals),
		NeedTakePnlCoin: layout.NeedTakePnlCoin,
		NeedTakePnlPc:   layout.NeedTakePnlPc,
		CoinVault:       layout.CoinVault,
		PcVault:         layout.PcVault,
		CoinMint:        layout.CoinMint,
		PcMint:          layout.PcMint,
	}, nil
}

// DecodeRaydiumCLMMPool decodes a Raydium CLMM pool account.
func DecodeRaydiumCLMMPool(data []byte) (RaydiumCLMMPool, error) {
	var layout raydiumCLMMPoolLayout
	if err := decodeLayout("raydium clmm pool", data, &layout); err != nil {
		return RaydiumCLMMPool{}, err
	}
	return RaydiumCLMMPool{
		Mint0:        layout.TokenMint0,
		Mint1:        layout.TokenMint1,
		Decimals0:    layout.MintDecimals0,
		Decimals1:    layout.MintDecimals1,
		TickSpacing:  int32(layout.TickSpacing),
		Liquidity:    Uint128LE(layout.Liquidity),
		SqrtPriceX64: Uint128LE(layout.SqrtPriceX64),
		TickCurrent:  layout.TickCurrent,
	}, nil
}

// DecodeRaydiumTickArray decodes a CLMM tick array, keeping initialized ticks.
func DecodeRaydiumTickArray(data []byte) (TickArray, error) {
	var layout raydiumTickArrayLayout
	if err := decodeLayout("raydium tick array", data, &layout); err != nil {
		return TickArray{}, err
	}
	out := TickArray{StartTickIndex: layout.StartTickIndex}
	for _, tick := range layout.Ticks {
		gross := Uint128LE(tick.LiquidityGross)
		if gross.Sign() == 0 {
			continue
		}
		out.Ticks = append(out.Ticks, model.TickRecord{
			Index:          tick.Tick,
			LiquidityNet:   Int128LE(tick.LiquidityNet),
			LiquidityGross: gross,
		})
	}
	return out, nil
}

// DecodeWhirlpool decodes an Orca Whirlpool account.
func DecodeWhirlpool(data []byte) (Whirlpool, error) {
	var layout whirlpoolLayout
	if err := decodeLayout("whirlpool", data, &layout); err != nil {
		return Whirlpool{}, err
	}
	return Whirlpool{
		TickSpacing:      int32(layout.TickSpacing),
		Liquidity:        Uint128LE(layout.Liquidity),
		SqrtPrice:        Uint128LE(layout.SqrtPrice),
		TickCurrentIndex: layout.TickCurrentIndex,
		MintA:            layout.TokenMintA,
		MintB:            layout.TokenMintB,
	}, nil
}

// DecodeWhirlpoolTickArray decodes a Whirlpool tick array. Slot i holds tick
// start + i*spacing.
func DecodeWhirlpoolTickArray(data []byte, spacing int32) (TickArray, error) {
	var layout whirlpoolTickArrayLayout
	if err := decodeLayout("whirlpool tick array", data, &layout); err != nil {
		return TickArray{}, err
	}
	out := TickArray{StartTickIndex: layout.StartTickIndex}
	for i, tick := range layout.Ticks {
		if !tick.Initialized {
			continue
		}
		gross := Uint128LE(tick.LiquidityGross)
		if gross.Sign() == 0 {
			continue
		}
		out.Ticks = append(out.Ticks, model.TickRecord{
			Index:          layout.StartTickIndex + int32(i)*spacing,
			LiquidityNet:   Int128LE(tick.LiquidityNet),
			LiquidityGross: gross,
		})
	}
	return out, nil
}

// DecodeLbPair decodes a Meteora DLMM pair account.
func DecodeLbPair(data []byte) (LbPair, error) {
	var layout lbPairLayout
	if err := decodeLayout("dlmm lb pair", data, &layout); err != nil {
		return LbPair{}, err
	}
	return LbPair{
		ActiveID:   layout.ActiveID,
		BinStep:    layout.BinStep,
		TokenXMint: layout.TokenXMint,
		TokenYMint: layout.TokenYMint,
	}, nil
}

// DecodeBinArray decodes a DLMM bin array, keeping bins that hold tokens.
// Bin prices are Q64.64 token Y per token X in base units.
func DecodeBinArray(data []byte) (BinArray, error) {
	var layout binArrayLayout
	if err := decodeLayout("dlmm bin array", data, &layout); err != nil {
		return BinArray{}, err
	}
	out := BinArray{Index: layout.Index}
	for i, b := range layout.Bins {
		if b.AmountX == 0 && b.AmountY == 0 {
			continue
		}
		out.Bins = append(out.Bins, model.BinRecord{
			BinID:   int32(layout.Index*DLMMBinsPerArray + int64(i)),
			AmountX: new(big.Int).SetUint64(b.AmountX),
			AmountY: new(big.Int).SetUint64(b.AmountY),
			Price:   q64ToFloat(Uint128LE(b.Price)),
		})
	}
	return out, nil
}

// DecodeBondingCurve decodes a PumpSwap bonding curve account.
func DecodeBondingCurve(data []byte) (BondingCurve, error) {
	var layout bondingCurveLayout
	if err := decodeLayout("bonding curve", data, &layout); err != nil {
		return BondingCurve{}, err
	}
	return BondingCurve{
		VirtualTokenReserves: layout.VirtualTokenReserves,
		VirtualSolReserves:   layout.VirtualSolReserves,
		RealTokenReserves:    layout.RealTokenReserves,
		RealSolReserves:      layout.RealSolReserves,
		TokenTotalSupply:     layout.TokenTotalSupply,
		Complete:             layout.Complete,
	}, nil
}

// DecodeTokenAccountAmount returns the balance of an SPL token account.
func DecodeTokenAccountAmount(data []byte) (uint64, error) {
	var layout tokenAccountLayout
	if err := decodeLayout("token account", data, &layout); err != nil {
		return 0, err
	}
	return layout.Amount, nil
}

// DecodeMintDecimals returns the decimals of an SPL mint account.
func DecodeMintDecimals(data []byte) (uint8, error) {
	var layout mintLayout
	if err := decodeLayout("mint", data, &layout); err != nil {
		return 0, err
	}
	return layout.Decimals, nil
}

// Uint128LE converts a little-endian unsigned 128-bit value.
func Uint128LE(raw [16]byte) *big.Int {
	be := make([]byte, 16)
	for i := range raw {
		be[15-i] = raw[i]
	}
	return new(big.Int).SetBytes(be)
}

// Int128LE converts a little-endian two's complement 128-bit value.
func Int128LE(raw [16]byte) *big.Int {
	v := Uint128LE(raw)
	if raw[15]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

func q64ToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f / math.Exp2(64)
}
