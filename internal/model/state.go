package model

import "math/big"

// PoolState is a variant-specific raw snapshot of a pool.
type PoolState interface {
	Type() PoolType
	isPoolState()
}

// ReserveState is constant-product state in token base units.
type ReserveState struct {
	Pool     PoolType
	Reserve0 *big.Int
	Reserve1 *big.Int
	Token0   TokenMeta
	Token1   TokenMeta
}

// ConcentratedState is tick-based state. SqrtPrice is a fixed-point value with
// Resolution fractional bits (96 on EVM, 64 on Solana).
type ConcentratedState struct {
	Pool        PoolType
	SqrtPrice   *big.Int
	Resolution  uint
	CurrentTick int32
	Liquidity   *big.Int
	TickSpacing int32
	Token0      TokenMeta
	Token1      TokenMeta
}

// BinState is Meteora DLMM state.
type BinState struct {
	Pool        PoolType
	ActiveBinID int32
	BinStep     uint16
	Bins        []BinRecord
	Token0      TokenMeta
	Token1      TokenMeta
}

// BondingCurveState is PumpSwap curve state. Token0 is the launched token, Token1 SOL.
type BondingCurveState struct {
	Pool                 PoolType
	VirtualTokenReserves *big.Int
	VirtualSolReserves   *big.Int
	RealTokenReserves    *big.Int
	RealSolReserves      *big.Int
	Complete             bool
	Token0               TokenMeta
	Token1               TokenMeta
}

func (s ReserveState) Type() PoolType      { return s.Pool }
func (s ConcentratedState) Type() PoolType { return s.Pool }
func (s BinState) Type() PoolType          { return s.Pool }
func (s BondingCurveState) Type() PoolType { return s.Pool }

func (ReserveState) isPoolState()      {}
func (ConcentratedState) isPoolState() {}
func (BinState) isPoolState()          {}
func (BondingCurveState) isPoolState() {}

// Tokens returns the token metadata pair of any state.
func Tokens(state PoolState) (TokenMeta, TokenMeta) {
	switch s := state.(type) {
	case ReserveState:
		return s.Token0, s.Token1
	case ConcentratedState:
		return s.Token0, s.Token1
	case BinState:
		return s.Token0, s.Token1
	case BondingCurveState:
		return s.Token0, s.Token1
	default:
		return DefaultTokenMeta(""), DefaultTokenMeta("")
	}
}
