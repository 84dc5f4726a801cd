package service

import (
	"context"

	"go.uber.org/zap"

	"liquidityDepth/internal/model"
)

// cachedDepth keeps the fields DepthResult leaves out of its JSON form.
type cachedDepth struct {
	Result     model.DepthResult `json:"result"`
	Token0     model.TokenMeta   `json:"token0"`
	Token1     model.TokenMeta   `json:"token1"`
	Cumulative bool              `json:"cumulative"`
	Clamped    int               `json:"clamped"`
	Dropped    int               `json:"dropped"`
}

func (s *Service) cachedDepth(ctx context.Context, key string) (model.DepthResult, bool) {
	if s.cache == nil {
		return model.DepthResult{}, false
	}
	var entry cachedDepth
	ok, err := s.cache.Get(ctx, key, &entry)
	if err != nil {
		s.logger.Debug("depth cache get failed", zap.String("key", key), zap.Error(err))
		return model.DepthResult{}, false
	}
	if !ok {
		return model.DepthResult{}, false
	}
	result := entry.Result
	for i := range result.Bids {
		result.Bids[i].Side = model.SideBid
	}
	for i := range result.Asks {
		result.Asks[i].Side = model.SideAsk
	}
	result.Token0, result.Token1 = entry.Token0, entry.Token1
	result.Cumulative = entry.Cumulative
	result.Clamped, result.Dropped = entry.Clamped, entry.Dropped
	return result, true
}

func (s *Service) storeDepth(ctx context.Context, key string, result model.DepthResult) {
	if s.cache == nil {
		return
	}
	entry := cachedDepth{
		Result:     result,
		Token0:     result.Token0,
		Token1:     result.Token1,
		Cumulative: result.Cumulative,
		Clamped:    result.Clamped,
		Dropped:    result.Dropped,
	}
	if err := s.cache.Set(ctx, key, entry, s.settings.DepthTTL); err != nil {
		s.logger.Debug("depth cache set failed", zap.String("key", key), zap.Error(err))
	}
}
