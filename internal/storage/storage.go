// Package storage persists depth snapshots.
package storage

import (
	"context"

	"liquidityDepth/internal/model"
)

// Storage defines a sink for depth snapshots.
type Storage interface {
	PutSnapshots(ctx context.Context, snapshots []model.DepthSnapshot) error
}

// LatestReader looks up the most recent snapshot of a pool.
type LatestReader interface {
	LatestSnapshot(ctx context.Context, id model.PoolIdentity) (model.DepthSnapshot, bool, error)
}
