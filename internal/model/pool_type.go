package model

import "fmt"

// PoolType identifies the AMM variant that governs a pool.
type PoolType string

const (
	PoolTypeV2            PoolType = "v2"
	PoolTypeV3            PoolType = "v3"
	PoolTypeV4            PoolType = "v4"
	PoolTypeRaydiumAMM    PoolType = "raydium-amm"
	PoolTypeRaydiumCLMM   PoolType = "raydium-clmm"
	PoolTypeOrcaWhirlpool PoolType = "orca-whirlpool"
	PoolTypeMeteoraDLMM   PoolType = "meteora-dlmm"
	PoolTypeBondingCurve  PoolType = "pumpswap-bonding-curve"
	PoolTypeUnknown       PoolType = "unknown"
)

var poolTypes = []PoolType{
	PoolTypeV2,
	PoolTypeV3,
	PoolTypeV4,
	PoolTypeRaydiumAMM,
	PoolTypeRaydiumCLMM,
	PoolTypeOrcaWhirlpool,
	PoolTypeMeteoraDLMM,
	PoolTypeBondingCurve,
	PoolTypeUnknown,
}

// ParsePoolType converts a string into a PoolType.
func ParsePoolType(value string) (PoolType, error) {
	for _, pt := range poolTypes {
		if string(pt) == value {
			return pt, nil
		}
	}
	return PoolTypeUnknown, fmt.Errorf("unknown pool type %q", value)
}

func (p PoolType) String() string {
	return string(p)
}

// IsSolana reports whether the variant is a Solana program.
func (p PoolType) IsSolana() bool {
	switch p {
	case PoolTypeRaydiumAMM, PoolTypeRaydiumCLMM, PoolTypeOrcaWhirlpool, PoolTypeMeteoraDLMM, PoolTypeBondingCurve:
		return true
	default:
		return false
	}
}

// IsConcentrated reports whether the variant uses tick-based liquidity.
func (p PoolType) IsConcentrated() bool {
	switch p {
	case PoolTypeV3, PoolTypeV4, PoolTypeRaydiumCLMM, PoolTypeOrcaWhirlpool:
		return true
	default:
		return false
	}
}
