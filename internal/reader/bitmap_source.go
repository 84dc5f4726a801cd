package reader

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
	"liquidityDepth/internal/tickmath"
)

// bitmapSource answers initialized-tick queries from 256-bit tick bitmap
// words. V3 pools expose tickBitmap(int16)/ticks(int24) on the pool contract;
// V4 exposes getTickBitmap/getTickLiquidity on StateView keyed by pool id.
type bitmapSource struct {
	caller       chain.EVMCaller
	batcher      Batcher
	contract     common.Address
	abi          abi.ABI
	bitmapMethod string
	tickMethod   string
	// keyArgs are prepended to every call (the V4 pool id).
	keyArgs []interface{}
	spacing int32
	fields  []zap.Field
}

func (s *bitmapSource) args(extra interface{}) []interface{} {
	out := make([]interface{}, 0, len(s.keyArgs)+1)
	out = append(out, s.keyArgs...)
	return append(out, extra)
}

// InitializedIndices reads every bitmap word covering [lower, upper] in
// batched calls and decodes the flagged ticks.
func (s *bitmapSource) InitializedIndices(ctx context.Context, lower, upper int32) ([]int32, error) {
	words := tickmath.BitmapWords(lower, upper, s.spacing)
	msgs := make([]ethereum.CallMsg, 0, len(words))
	for _, word := range words {
		msg, err := dex.PackCall(s.abi, s.contract, s.bitmapMethod, s.args(word)...)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	results, batchErr := s.batcher.CallBatch(ctx, s.caller, msgs, "bitmap", s.fields...)
	if batchErr != nil && !model.IsPartialRead(batchErr) {
		return nil, batchErr
	}

	indices := make([]int32, 0)
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		values, err := dex.Unpack(s.abi, s.bitmapMethod, res.Data)
		if err != nil {
			s.batcher.logger().Debug("bitmap word decode failed", append(s.fields, zap.Error(err))...)
			continue
		}
		word, err := dex.AsBigInt(values[0])
		if err != nil {
			continue
		}
		for _, tick := range tickmath.InitializedTicks(word, words[i], s.spacing) {
			if tick >= lower && tick <= upper {
				indices = append(indices, tick)
			}
		}
	}
	return indices, batchErr
}

// Records reads liquidityGross/liquidityNet for each index in batched calls.
func (s *bitmapSource) Records(ctx context.Context, indices []int32) ([]model.TickRecord, error) {
	msgs := make([]ethereum.CallMsg, 0, len(indices))
	for _, idx := range indices {
		msg, err := dex.PackCall(s.abi, s.contract, s.tickMethod, s.args(big.NewInt(int64(idx)))...)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	results, batchErr := s.batcher.CallBatch(ctx, s.caller, msgs, "ticks", s.fields...)
	if batchErr != nil && !model.IsPartialRead(batchErr) {
		return nil, batchErr
	}

	records := make([]model.TickRecord, 0, len(indices))
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		values, err := dex.Unpack(s.abi, s.tickMethod, res.Data)
		if err != nil || len(values) < 2 {
			continue
		}
		gross, errGross := dex.AsBigInt(values[0])
		net, errNet := dex.AsBigInt(values[1])
		if errGross != nil || errNet != nil || gross.Sign() == 0 {
			continue
		}
		records = append(records, model.TickRecord{Index: indices[i], LiquidityNet: net, LiquidityGross: gross})
	}
	return records, batchErr
}
