package reader

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
)

const DefaultTokenTTL = time.Hour

// TokenResolver memoizes ERC20 metadata in the injected cache.
type TokenResolver struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewTokenResolver(c cache.Cache, ttl time.Duration, logger *zap.Logger) *TokenResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenResolver{cache: c, ttl: ttl, logger: logger}
}

// Resolve returns token metadata, falling back to 18 decimals and an UNKNOWN
// symbol when the token cannot be read. Fallbacks are not cached.
func (r *TokenResolver) Resolve(ctx context.Context, chainID string, caller dex.ContractCaller, token common.Address) model.TokenMeta {
	key := "token:" + chainID + ":" + token.Hex()
	if r.cache != nil {
		var cached model.TokenMeta
		ok, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.Debug("token cache get failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return cached
		}
	}

	meta, err := dex.FetchTokenMeta(ctx, caller, token, r.logger)
	if err != nil {
		r.logger.Warn("token metadata fetch failed, using defaults",
			zap.String("chain", chainID),
			zap.String("token", token.Hex()),
			zap.String("stage", "read"),
			zap.Error(err),
		)
		return meta
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, meta, r.ttl); err != nil {
			r.logger.Debug("token cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return meta
}
