package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityDepth/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id     TEXT NOT NULL,
	pool_address TEXT NOT NULL,
	pool_type    TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS depth_snapshots (
	id            UUID PRIMARY KEY,
	chain_id      TEXT NOT NULL,
	pool_address  TEXT NOT NULL,
	pool_type     TEXT NOT NULL,
	current_price DOUBLE PRECISION NOT NULL,
	price_usd     DOUBLE PRECISION NOT NULL,
	partial       BOOLEAN NOT NULL DEFAULT false,
	captured_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS depth_snapshots_pool_captured
	ON depth_snapshots (chain_id, pool_address, captured_at DESC);

CREATE TABLE IF NOT EXISTS depth_levels (
	snapshot_id   UUID NOT NULL REFERENCES depth_snapshots (id) ON DELETE CASCADE,
	side          TEXT NOT NULL,
	rank          INTEGER NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	liquidity_usd DOUBLE PRECISION NOT NULL,
	token0_amount DOUBLE PRECISION NOT NULL,
	token1_amount DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (snapshot_id, side, rank)
);
`

// Store provides Postgres persistence for depth snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPoolType records the detected type of a pool.
func (s *Store) UpsertPoolType(ctx context.Context, id model.PoolIdentity, poolType model.PoolType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (chain_id, pool_address, pool_type, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET pool_type = EXCLUDED.pool_type, updated_at = now()
	`, id.ChainID, id.PoolAddress, string(poolType))
	return err
}

// PutSnapshots inserts snapshots with their levels in one batch per call.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.DepthSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		queueSnapshot(batch, snap)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func queueSnapshot(batch *pgx.Batch, snap model.DepthSnapshot) {
	batch.Queue(`
		INSERT INTO depth_snapshots (
			id, chain_id, pool_address, pool_type, current_price, price_usd, partial, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		snap.ID,
		snap.ChainID,
		snap.PoolAddress,
		string(snap.PoolType),
		snap.CurrentPrice,
		snap.PriceUsd,
		snap.Partial,
		snap.CapturedAt,
	)
	queueLevels(batch, snap.ID, model.SideBid, snap.Bids)
	queueLevels(batch, snap.ID, model.SideAsk, snap.Asks)
}

func queueLevels(batch *pgx.Batch, id uuid.UUID, side model.Side, levels []model.DepthLevel) {
	for rank, level := range levels {
		batch.Queue(`
			INSERT INTO depth_levels (
				snapshot_id, side, rank, price, liquidity_usd, token0_amount, token1_amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			id,
			string(side),
			rank,
			level.Price,
			level.LiquidityUSD,
			level.Token0Amount,
			level.Token1Amount,
		)
	}
}

// LatestSnapshot returns the most recent snapshot of a pool.
func (s *Store) LatestSnapshot(ctx context.Context, id model.PoolIdentity) (model.DepthSnapshot, bool, error) {
	snap := model.DepthSnapshot{ChainID: id.ChainID, PoolAddress: id.PoolAddress}
	var poolType string
	row := s.pool.QueryRow(ctx, `
		SELECT id, pool_type, current_price, price_usd, partial, captured_at
		FROM depth_snapshots
		WHERE chain_id = $1 AND pool_address = $2
		ORDER BY captured_at DESC
		LIMIT 1
	`, id.ChainID, id.PoolAddress)
	if err := row.Scan(&snap.ID, &poolType, &snap.CurrentPrice, &snap.PriceUsd, &snap.Partial, &snap.CapturedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DepthSnapshot{}, false, nil
		}
		return model.DepthSnapshot{}, false, err
	}
	snap.PoolType = model.PoolType(poolType)

	rows, err := s.pool.Query(ctx, `
		SELECT side, price, liquidity_usd, token0_amount, token1_amount
		FROM depth_levels
		WHERE snapshot_id = $1
		ORDER BY side, rank
	`, snap.ID)
	if err != nil {
		return model.DepthSnapshot{}, false, fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	snap.Bids, snap.Asks = []model.DepthLevel{}, []model.DepthLevel{}
	for rows.Next() {
		var (
			side  string
			level model.DepthLevel
		)
		if err := rows.Scan(&side, &level.Price, &level.LiquidityUSD, &level.Token0Amount, &level.Token1Amount); err != nil {
			return model.DepthSnapshot{}, false, fmt.Errorf("scan level: %w", err)
		}
		level.Side = model.Side(side)
		if level.Side == model.SideBid {
			snap.Bids = append(snap.Bids, level)
		} else {
			snap.Asks = append(snap.Asks, level)
		}
	}
	if err := rows.Err(); err != nil {
		return model.DepthSnapshot{}, false, err
	}
	return snap, true, nil
}
