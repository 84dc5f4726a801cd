// Package detect classifies pools into the variants the depth engines serve.
package detect

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
)

const DefaultTTL = 24 * time.Hour

// Detector classifies EVM pools by probing their contract and Solana pools
// by a dex name hint. Known results are memoized; unknown ones are not.
type Detector struct {
	clients chain.Provider
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

func New(clients chain.Provider, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Detector{clients: clients, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(id model.PoolIdentity) string {
	return "pooltype:" + id.Key()
}

// Detect returns the pool type of id. It never fails: probe errors are
// logged and yield PoolTypeUnknown.
func (d *Detector) Detect(ctx context.Context, id model.PoolIdentity, dexHint string) model.PoolType {
	key := cacheKey(id)
	if d.cache != nil {
		var cached model.PoolType
		ok, err := d.cache.Get(ctx, key, &cached)
		if err != nil {
			d.logger.Debug("pool type cache get failed", zap.String("key", key), zap.Error(err))
		}
		if ok && cached != model.PoolTypeUnknown {
			return cached
		}
	}

	var poolType model.PoolType
	switch {
	case id.IsSolana():
		poolType = ClassifySolana(dexHint)
	case id.IsV4PoolID():
		poolType = model.PoolTypeV4
	default:
		poolType = d.probeEVM(ctx, id)
	}

	if poolType == model.PoolTypeUnknown {
		d.logger.Warn("pool type not detected",
			zap.String("chain", id.ChainID),
			zap.String("pool", id.PoolAddress),
			zap.String("stage", "detect"),
			zap.String("dex_hint", dexHint),
		)
		return poolType
	}
	if d.cache != nil {
		if err := d.cache.Set(ctx, key, poolType, d.ttl); err != nil {
			d.logger.Debug("pool type cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return poolType
}

// probeEVM checks for the V3 slot0/tickSpacing pair, then for V2 reserves.
func (d *Detector) probeEVM(ctx context.Context, id model.PoolIdentity) model.PoolType {
	caller, err := d.clients.EVM(ctx, id.ChainID)
	if err != nil {
		d.logger.Warn("detect client unavailable",
			zap.String("chain", id.ChainID),
			zap.String("pool", id.PoolAddress),
			zap.String("stage", "detect"),
			zap.Error(err),
		)
		return model.PoolTypeUnknown
	}
	pool := common.HexToAddress(id.PoolAddress)

	if ok := d.probeV3(ctx, caller, pool); ok {
		return model.PoolTypeV3
	}
	pairABI, err := dex.V2PairABI()
	if err != nil {
		return model.PoolTypeUnknown
	}
	if values, err := dex.Call(ctx, caller, pool, pairABI, "getReserves"); err == nil && len(values) >= 2 {
		return model.PoolTypeV2
	}
	return model.PoolTypeUnknown
}

func (d *Detector) probeV3(ctx context.Context, caller chain.EVMCaller, pool common.Address) bool {
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return false
	}
	methods := []string{"slot0", "tickSpacing"}
	msgs := make([]ethereum.CallMsg, 0, len(methods))
	for _, method := range methods {
		msg, err := dex.PackCall(poolABI, pool, method)
		if err != nil {
			return false
		}
		msgs = append(msgs, msg)
	}
	results, err := caller.BatchCallContract(ctx, msgs)
	if err != nil || len(results) != len(methods) {
		return false
	}
	for i, res := range results {
		if res.Err != nil {
			return false
		}
		if _, err := dex.Unpack(poolABI, methods[i], res.Data); err != nil {
			return false
		}
	}
	return true
}

// ClassifySolana maps a dex name hint to a Solana pool type. Matching is a
// case-insensitive substring check in priority order.
func ClassifySolana(dexHint string) model.PoolType {
	hint := strings.ToLower(strings.TrimSpace(dexHint))
	switch {
	case hint == "":
		return model.PoolTypeUnknown
	case strings.Contains(hint, "pump"):
		return model.PoolTypeBondingCurve
	case strings.Contains(hint, "raydium") && (strings.Contains(hint, "clmm") || strings.Contains(hint, "concentrated")):
		return model.PoolTypeRaydiumCLMM
	case strings.Contains(hint, "raydium"):
		return model.PoolTypeRaydiumAMM
	case strings.Contains(hint, "orca") || strings.Contains(hint, "whirlpool"):
		return model.PoolTypeOrcaWhirlpool
	case strings.Contains(hint, "meteora") || strings.Contains(hint, "dlmm"):
		return model.PoolTypeMeteoraDLMM
	default:
		return model.PoolTypeUnknown
	}
}
