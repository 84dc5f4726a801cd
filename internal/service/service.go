// Package service runs depth requests end to end: validate, detect, read,
// scan, compute, normalize.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/depth"
	"liquidityDepth/internal/model"
	"liquidityDepth/internal/reader"
	"liquidityDepth/internal/scanner"
)

const DefaultDepthTTL = 5 * time.Second

// PoolDetector classifies a pool.
type PoolDetector interface {
	Detect(ctx context.Context, id model.PoolIdentity, dexHint string) model.PoolType
}

// StateReader reads the state of a classified pool.
type StateReader interface {
	ReadState(ctx context.Context, id model.PoolIdentity, poolType model.PoolType, opts reader.Options) (model.PoolState, scanner.Source, error)
}

// Settings are the tunables applied to every request.
type Settings struct {
	TickRange     int32
	MergeDistance int32
	Range         float64
	LevelCount    int
	MaxLevels     int
	DepthTTL      time.Duration
}

// Request is one depth request. Zero values take the service defaults.
type Request struct {
	ChainID     string
	PoolAddress string
	PriceUsd    float64
	LevelCount  int
	Precision   float64
	DexHint     string
	// PoolType skips detection when set.
	PoolType    model.PoolType
	Token0      *model.TokenMeta
	Token1      *model.TokenMeta
	TickSpacing int32
}

// Service is safe for concurrent use when its collaborators are.
type Service struct {
	detector PoolDetector
	reader   StateReader
	cache    cache.Cache
	settings Settings
	logger   *zap.Logger
}

// New builds a Service. A nil cache disables result caching.
func New(detector PoolDetector, r StateReader, c cache.Cache, settings Settings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.TickRange <= 0 {
		settings.TickRange = depth.DefaultTickRange
	}
	if settings.Range <= 0 {
		settings.Range = depth.DefaultRange
	}
	if settings.LevelCount <= 0 {
		settings.LevelCount = depth.DefaultLevelCount
	}
	if settings.MaxLevels <= 0 {
		settings.MaxLevels = depth.DefaultMaxLevels
	}
	if settings.DepthTTL <= 0 {
		settings.DepthTTL = DefaultDepthTTL
	}
	return &Service{detector: detector, reader: r, cache: c, settings: settings, logger: logger}
}

// DetectPoolType validates the identity and classifies the pool.
func (s *Service) DetectPoolType(ctx context.Context, chainID, poolAddress, dexHint string) (model.PoolType, error) {
	id, err := model.ParsePoolIdentity(chainID, poolAddress)
	if err != nil {
		return model.PoolTypeUnknown, err
	}
	return s.detector.Detect(ctx, id, dexHint), nil
}

func (s *Service) validate(req Request) (model.PoolIdentity, error) {
	id, err := model.ParsePoolIdentity(req.ChainID, req.PoolAddress)
	if err != nil {
		return id, err
	}
	if err := depth.ValidatePrice(req.PriceUsd); err != nil {
		return id, err
	}
	if req.LevelCount < 0 {
		return id, &model.ValidationError{Field: "levelCount", Reason: "must not be negative"}
	}
	if math.IsNaN(req.Precision) || math.IsInf(req.Precision, 0) || req.Precision < 0 {
		return id, &model.ValidationError{Field: "precision", Reason: "must be a non-negative finite number"}
	}
	return id, nil
}

func (s *Service) poolType(ctx context.Context, id model.PoolIdentity, req Request) model.PoolType {
	if req.PoolType != "" {
		return req.PoolType
	}
	return s.detector.Detect(ctx, id, req.DexHint)
}

func (s *Service) levelCount(req Request) int {
	if req.LevelCount > 0 {
		return req.LevelCount
	}
	return s.settings.LevelCount
}

// snapshot is a read pool with its tick walk.
type snapshot struct {
	state   model.PoolState
	scan    *scanner.Result
	partial bool
}

// load reads state and scans ticks. Missing pools yield an empty snapshot and
// transport failures an empty snapshot with partial set; validation failures
// and cancellation are returned.
func (s *Service) load(ctx context.Context, id model.PoolIdentity, poolType model.PoolType, req Request, tickRange int32) (snapshot, error) {
	fields := []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress), zap.String("pool_type", poolType.String())}
	opts := reader.Options{DexHint: req.DexHint, Token0: req.Token0, Token1: req.Token1, TickSpacing: req.TickSpacing}

	state, src, err := s.reader.ReadState(ctx, id, poolType, opts)
	var snap snapshot
	switch {
	case err == nil:
	case model.IsPartialRead(err) && state != nil:
		snap.partial = true
		s.logger.Warn("pool state read partially", append(fields, zap.String("stage", "read"), zap.Error(err))...)
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return snapshot{}, ctxErr
		}
		var validation *model.ValidationError
		if errors.As(err, &validation) {
			return snapshot{}, err
		}
		if model.IsNotFound(err) {
			s.logger.Warn("pool state not found", append(fields, zap.String("stage", "read"), zap.Error(err))...)
			return snapshot{}, nil
		}
		s.logger.Error("pool state read failed", append(fields, zap.String("stage", "read"), zap.Error(err))...)
		return snapshot{partial: true}, nil
	}
	snap.state = state

	if cs, ok := state.(model.ConcentratedState); ok && src != nil {
		result, err := scanner.ScanAroundCurrent(ctx, scanner.Params{
			CurrentIndex:  cs.CurrentTick,
			Liquidity:     cs.Liquidity,
			RangeWidth:    tickRange,
			Spacing:       cs.TickSpacing,
			MergeDistance: s.settings.MergeDistance,
		}, src, s.logger.With(fields...))
		if err != nil {
			return snapshot{}, err
		}
		snap.scan = &result
		snap.partial = snap.partial || result.Partial
		s.logger.Debug("tick scan complete", append(fields,
			zap.String("stage", "scan"),
			zap.Int("ticks", len(result.Levels)),
			zap.Int("clusters", len(result.Clusters)),
		)...)
	}
	return snap, nil
}

// GetLiquidityDepth computes normalized depth for one pool. Unknown pools
// and failed reads return empty levels instead of an error.
func (s *Service) GetLiquidityDepth(ctx context.Context, req Request) (model.DepthResult, error) {
	id, err := s.validate(req)
	if err != nil {
		return model.DepthResult{}, err
	}
	levelCount := s.levelCount(req)
	key := depthKey(id, req, levelCount)
	if cached, ok := s.cachedDepth(ctx, key); ok {
		return cached, nil
	}

	poolType := s.poolType(ctx, id, req)
	if poolType == model.PoolTypeUnknown {
		return model.EmptyDepth(poolType), nil
	}
	fields := []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress), zap.String("pool_type", poolType.String())}

	snap, err := s.load(ctx, id, poolType, req, s.settings.TickRange)
	if err != nil {
		return model.DepthResult{}, err
	}
	if snap.state == nil {
		result := model.EmptyDepth(poolType)
		result.Partial = snap.partial
		return result, nil
	}

	in := depth.Input{
		State:      snap.state,
		Scan:       snap.scan,
		LevelCount: levelCount,
		Range:      s.settings.Range,
		TickRange:  s.settings.TickRange,
	}
	raw, err := depth.Compute(in)
	if err != nil {
		s.logger.Error("depth computation failed", append(fields, zap.String("stage", "compute"), zap.Error(err))...)
		return model.DepthResult{}, err
	}
	if req.Precision > 0 && raw.Cumulative && raw.CurrentPrice > 0 {
		// sample curve engines on the precision grid, expressed in token-ratio units
		in.Step = req.Precision / usdFactor(req.PriceUsd, raw.CurrentPrice)
		if raw, err = depth.Compute(in); err != nil {
			return model.DepthResult{}, err
		}
	}

	token0, token1 := model.Tokens(snap.state)
	normalized, err := depth.Normalize(raw, depth.Options{
		PriceUsd:       req.PriceUsd,
		Token0Decimals: token0.Decimals,
		Token1Decimals: token1.Decimals,
		MaxLevels:      s.settings.MaxLevels,
		Precision:      req.Precision,
	}, s.logger.With(fields...))
	if err != nil {
		return model.DepthResult{}, err
	}

	result := model.DepthResult{
		Bids:         normalized.Bids,
		Asks:         normalized.Asks,
		CurrentPrice: raw.CurrentPrice,
		PoolType:     poolType,
		Token0:       token0,
		Token1:       token1,
		Cumulative:   raw.Cumulative,
		Partial:      snap.partial,
		Clamped:      normalized.Clamped,
		Dropped:      normalized.Dropped,
	}
	s.logger.Debug("depth computed", append(fields,
		zap.String("stage", "normalize"),
		zap.Int("bids", len(result.Bids)),
		zap.Int("asks", len(result.Asks)),
		zap.Bool("partial", result.Partial),
	)...)
	if !result.Partial {
		s.storeDepth(ctx, key, result)
	}
	return result, nil
}

// depthKey covers every request input that changes the result.
func depthKey(id model.PoolIdentity, req Request, levelCount int) string {
	return fmt.Sprintf("depth:%s:%g:%d:%g:%s:%s:%d:%s:%s",
		id.Key(), req.PriceUsd, levelCount, req.Precision, req.PoolType,
		strings.ToLower(strings.TrimSpace(req.DexHint)), req.TickSpacing,
		tokenKey(req.Token0), tokenKey(req.Token1))
}

func tokenKey(meta *model.TokenMeta) string {
	if meta == nil {
		return "-"
	}
	return fmt.Sprintf("%s/%d/%s", strings.ToLower(meta.Address), meta.Decimals, meta.Symbol)
}

// usdFactor maps token-ratio prices to USD; 1 when no USD price is known.
func usdFactor(priceUsd, currentPrice float64) float64 {
	if priceUsd > 0 && currentPrice > 0 {
		return priceUsd / currentPrice
	}
	return 1
}
