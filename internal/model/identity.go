package model

import (
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	ChainEthereum  = "ethereum"
	ChainBase      = "base"
	ChainBSC       = "bsc"
	ChainArbitrum  = "arbitrum"
	ChainPolygon   = "polygon"
	ChainOptimism  = "optimism"
	ChainAvalanche = "avalanche"
	ChainSolana    = "solana"
)

var supportedChains = map[string]bool{
	ChainEthereum:  true,
	ChainBase:      true,
	ChainBSC:       true,
	ChainArbitrum:  true,
	ChainPolygon:   true,
	ChainOptimism:  true,
	ChainAvalanche: true,
	ChainSolana:    true,
}

var (
	evmAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	v4PoolIDPattern   = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	solanaKeyPattern  = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// PoolIdentity names a pool on a chain.
type PoolIdentity struct {
	ChainID     string `json:"chain_id"`
	PoolAddress string `json:"pool_address"`
}

// SupportedChain reports whether chainID is known.
func SupportedChain(chainID string) bool {
	return supportedChains[chainID]
}

// ParsePoolIdentity validates the chain and address format. No state is read.
func ParsePoolIdentity(chainID, poolAddress string) (PoolIdentity, error) {
	chainID = strings.ToLower(strings.TrimSpace(chainID))
	poolAddress = strings.TrimSpace(poolAddress)

	if chainID == "" {
		return PoolIdentity{}, &ValidationError{Field: "chainId", Reason: "is required"}
	}
	if !SupportedChain(chainID) {
		return PoolIdentity{}, &ValidationError{Field: "chainId", Reason: "unsupported chain " + chainID}
	}
	if poolAddress == "" {
		return PoolIdentity{}, &ValidationError{Field: "poolAddress", Reason: "is required"}
	}

	if chainID == ChainSolana {
		if !solanaKeyPattern.MatchString(poolAddress) {
			return PoolIdentity{}, &ValidationError{Field: "poolAddress", Reason: "invalid solana address format"}
		}
		if _, err := solana.PublicKeyFromBase58(poolAddress); err != nil {
			return PoolIdentity{}, &ValidationError{Field: "poolAddress", Reason: "invalid solana public key"}
		}
		return PoolIdentity{ChainID: chainID, PoolAddress: poolAddress}, nil
	}

	if !evmAddressPattern.MatchString(poolAddress) && !v4PoolIDPattern.MatchString(poolAddress) {
		return PoolIdentity{}, &ValidationError{Field: "poolAddress", Reason: "expected 0x-prefixed 20-byte address or 32-byte pool id"}
	}
	return PoolIdentity{ChainID: chainID, PoolAddress: strings.ToLower(poolAddress)}, nil
}

// IsSolana reports whether the pool lives on Solana.
func (id PoolIdentity) IsSolana() bool {
	return id.ChainID == ChainSolana
}

// IsV4PoolID reports whether the address is a 32-byte singleton pool id.
func (id PoolIdentity) IsV4PoolID() bool {
	return !id.IsSolana() && v4PoolIDPattern.MatchString(id.PoolAddress)
}

// Key is the canonical cache key fragment for the pool.
func (id PoolIdentity) Key() string {
	return id.ChainID + ":" + id.PoolAddress
}
