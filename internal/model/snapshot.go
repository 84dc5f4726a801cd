package model

import (
	"time"

	"github.com/google/uuid"
)

// DepthSnapshot is a persisted depth result.
type DepthSnapshot struct {
	ID           uuid.UUID    `json:"id"`
	ChainID      string       `json:"chain_id"`
	PoolAddress  string       `json:"pool_address"`
	PoolType     PoolType     `json:"pool_type"`
	CurrentPrice float64      `json:"current_price"`
	PriceUsd     float64      `json:"price_usd"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	Partial      bool         `json:"partial,omitempty"`
	CapturedAt   time.Time    `json:"captured_at"`
}

// NewSnapshot captures result under a fresh id.
func NewSnapshot(id PoolIdentity, priceUsd float64, result DepthResult, at time.Time) DepthSnapshot {
	return DepthSnapshot{
		ID:           uuid.New(),
		ChainID:      id.ChainID,
		PoolAddress:  id.PoolAddress,
		PoolType:     result.PoolType,
		CurrentPrice: result.CurrentPrice,
		PriceUsd:     priceUsd,
		Bids:         result.Bids,
		Asks:         result.Asks,
		Partial:      result.Partial,
		CapturedAt:   at.UTC(),
	}
}

// Identity returns the pool the snapshot belongs to.
func (s DepthSnapshot) Identity() PoolIdentity {
	return PoolIdentity{ChainID: s.ChainID, PoolAddress: s.PoolAddress}
}

// RestoreSides sets the level sides dropped by the JSON encoding.
func (s *DepthSnapshot) RestoreSides() {
	for i := range s.Bids {
		s.Bids[i].Side = SideBid
	}
	for i := range s.Asks {
		s.Asks[i].Side = SideAsk
	}
}
