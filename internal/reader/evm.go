package reader

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
	"liquidityDepth/internal/scanner"
)

// Options carries caller-supplied facts that cannot be read from chain.
type Options struct {
	DexHint     string
	Token0      *model.TokenMeta
	Token1      *model.TokenMeta
	TickSpacing int32
}

// EVMReader reads V2, V3 and V4 pool state.
type EVMReader struct {
	clients    chain.Provider
	batcher    Batcher
	tokens     *TokenResolver
	stateViews map[string]common.Address
	logger     *zap.Logger
}

func NewEVMReader(clients chain.Provider, batcher Batcher, tokens *TokenResolver, stateViews map[string]common.Address, logger *zap.Logger) *EVMReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batcher.Logger == nil {
		batcher.Logger = logger
	}
	return &EVMReader{clients: clients, batcher: batcher, tokens: tokens, stateViews: stateViews, logger: logger}
}

// callSet is a group of independent calls sent as one batch.
type callSet struct {
	methods []string
	msgs    []ethereum.CallMsg
}

func (c *callSet) add(msg ethereum.CallMsg, err error, method string) error {
	if err != nil {
		return err
	}
	c.methods = append(c.methods, method)
	c.msgs = append(c.msgs, msg)
	return nil
}

func (r *EVMReader) runCallSet(ctx context.Context, caller chain.EVMCaller, set *callSet, stage string, fields []zap.Field) (map[string][]byte, error) {
	results, err := r.batcher.CallBatch(ctx, caller, set.msgs, stage, fields...)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(results))
	for i, res := range results {
		if res.Err != nil {
			return nil, &model.ExternalServiceError{Service: "rpc", Op: set.methods[i], Err: res.Err}
		}
		out[set.methods[i]] = res.Data
	}
	return out, nil
}

func (r *EVMReader) resolveTokens(ctx context.Context, chainID string, caller chain.EVMCaller, token0, token1 common.Address, opts Options) (model.TokenMeta, model.TokenMeta) {
	var meta0, meta1 model.TokenMeta
	if opts.Token0 != nil {
		meta0 = *opts.Token0
	} else if r.tokens != nil {
		meta0 = r.tokens.Resolve(ctx, chainID, caller, token0)
	} else {
		meta0 = model.DefaultTokenMeta(token0.Hex())
	}
	if opts.Token1 != nil {
		meta1 = *opts.Token1
	} else if r.tokens != nil {
		meta1 = r.tokens.Resolve(ctx, chainID, caller, token1)
	} else {
		meta1 = model.DefaultTokenMeta(token1.Hex())
	}
	return meta0, meta1
}

func decodeAddress(raw []byte, method string) (common.Address, error) {
	parsed, err := dex.V2PairABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := dex.Unpack(parsed, method, raw)
	if err != nil {
		return common.Address{}, err
	}
	return dex.AsAddress(values[0])
}

// ReadV2 reads reserves and token metadata of a constant-product pair.
func (r *EVMReader) ReadV2(ctx context.Context, id model.PoolIdentity, opts Options) (model.ReserveState, error) {
	caller, err := r.clients.EVM(ctx, id.ChainID)
	if err != nil {
		return model.ReserveState{}, err
	}
	pairABI, err := dex.V2PairABI()
	if err != nil {
		return model.ReserveState{}, fmt.Errorf("parse pair abi: %w", err)
	}
	pool := common.HexToAddress(id.PoolAddress)
	fields := []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress)}

	set := &callSet{}
	for _, method := range []string{"token0", "token1", "getReserves"} {
		msg, err := dex.PackCall(pairABI, pool, method)
		if err := set.add(msg, err, method); err != nil {
			return model.ReserveState{}, err
		}
	}
	raw, err := r.runCallSet(ctx, caller, set, "v2 state", fields)
	if err != nil {
		return model.ReserveState{}, err
	}

	token0, err := decodeAddress(raw["token0"], "token0")
	if err != nil {
		return model.ReserveState{}, err
	}
	token1, err := decodeAddress(raw["token1"], "token1")
	if err != nil {
		return model.ReserveState{}, err
	}
	values, err := dex.Unpack(pairABI, "getReserves", raw["getReserves"])
	if err != nil {
		return model.ReserveState{}, err
	}
	reserve0, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.ReserveState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := dex.AsBigInt(values[1])
	if err != nil {
		return model.ReserveState{}, fmt.Errorf("reserve1: %w", err)
	}

	meta0, meta1 := r.resolveTokens(ctx, id.ChainID, caller, token0, token1, opts)
	return model.ReserveState{
		Pool:     model.PoolTypeV2,
		Reserve0: reserve0,
		Reserve1: reserve1,
		Token0:   meta0,
		Token1:   meta1,
	}, nil
}

// ReadV3 reads slot0, liquidity and tick spacing of a V3 pool and returns a
// bitmap-backed tick source for the scanner.
func (r *EVMReader) ReadV3(ctx context.Context, id model.PoolIdentity, opts Options) (model.ConcentratedState, scanner.Source, error) {
	caller, err := r.clients.EVM(ctx, id.ChainID)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("parse pool abi: %w", err)
	}
	pool := common.HexToAddress(id.PoolAddress)
	fields := []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress)}

	set := &callSet{}
	for _, method := range []string{"slot0", "liquidity", "tickSpacing", "token0", "token1"} {
		msg, err := dex.PackCall(poolABI, pool, method)
		if err := set.add(msg, err, method); err != nil {
			return model.ConcentratedState{}, nil, err
		}
	}
	raw, err := r.runCallSet(ctx, caller, set, "v3 state", fields)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}

	values, err := dex.Unpack(poolABI, "slot0", raw["slot0"])
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	sqrtPrice, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tick, err := dex.AsInt24(values[1])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("slot0 tick: %w", err)
	}

	values, err = dex.Unpack(poolABI, "liquidity", raw["liquidity"])
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	liquidity, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("liquidity: %w", err)
	}

	values, err = dex.Unpack(poolABI, "tickSpacing", raw["tickSpacing"])
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	spacing, err := dex.AsInt24(values[0])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("tick spacing: %w", err)
	}
	if opts.TickSpacing > 0 {
		spacing = opts.TickSpacing
	}

	token0, err := decodeAddress(raw["token0"], "token0")
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	token1, err := decodeAddress(raw["token1"], "token1")
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	meta0, meta1 := r.resolveTokens(ctx, id.ChainID, caller, token0, token1, opts)

	state := model.ConcentratedState{
		Pool:        model.PoolTypeV3,
		SqrtPrice:   sqrtPrice,
		Resolution:  96,
		CurrentTick: tick,
		Liquidity:   liquidity,
		TickSpacing: spacing,
		Token0:      meta0,
		Token1:      meta1,
	}
	source := &bitmapSource{
		caller:       caller,
		batcher:      r.batcher,
		contract:     pool,
		abi:          poolABI,
		bitmapMethod: "tickBitmap",
		tickMethod:   "ticks",
		spacing:      spacing,
		fields:       fields,
	}
	return state, source, nil
}

// V4TickSpacingForFee maps the standard fee tiers to their tick spacing.
func V4TickSpacingForFee(fee uint32) int32 {
	switch fee {
	case 100:
		return 1
	case 500:
		return 10
	case 3000:
		return 60
	case 10000:
		return 200
	default:
		return 60
	}
}

// ReadV4 reads pool state from the StateView lens. Token addresses are not
// derivable from the pool id, so token metadata comes from opts.
func (r *EVMReader) ReadV4(ctx context.Context, id model.PoolIdentity, opts Options) (model.ConcentratedState, scanner.Source, error) {
	stateView, ok := r.stateViews[id.ChainID]
	if !ok {
		return model.ConcentratedState{}, nil, &model.ValidationError{Field: "chainId", Reason: "no v4 state view configured for " + id.ChainID}
	}
	caller, err := r.clients.EVM(ctx, id.ChainID)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	viewABI, err := dex.V4StateViewABI()
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("parse state view abi: %w", err)
	}
	poolID := [32]byte(common.HexToHash(id.PoolAddress))
	fields := []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress)}

	set := &callSet{}
	for _, method := range []string{"getSlot0", "getLiquidity"} {
		msg, err := dex.PackCall(viewABI, stateView, method, poolID)
		if err := set.add(msg, err, method); err != nil {
			return model.ConcentratedState{}, nil, err
		}
	}
	raw, err := r.runCallSet(ctx, caller, set, "v4 state", fields)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}

	values, err := dex.Unpack(viewABI, "getSlot0", raw["getSlot0"])
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	sqrtPrice, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("getSlot0 sqrt price: %w", err)
	}
	tick, err := dex.AsInt24(values[1])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("getSlot0 tick: %w", err)
	}
	lpFee, err := dex.AsBigInt(values[3])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("getSlot0 lp fee: %w", err)
	}

	values, err = dex.Unpack(viewABI, "getLiquidity", raw["getLiquidity"])
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	liquidity, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.ConcentratedState{}, nil, fmt.Errorf("getLiquidity: %w", err)
	}

	spacing := opts.TickSpacing
	if spacing <= 0 {
		spacing = V4TickSpacingForFee(uint32(lpFee.Uint64()))
	}

	meta0 := model.DefaultTokenMeta("")
	if opts.Token0 != nil {
		meta0 = *opts.Token0
	}
	meta1 := model.DefaultTokenMeta("")
	if opts.Token1 != nil {
		meta1 = *opts.Token1
	}

	state := model.ConcentratedState{
		Pool:        model.PoolTypeV4,
		SqrtPrice:   sqrtPrice,
		Resolution:  96,
		CurrentTick: tick,
		Liquidity:   liquidity,
		TickSpacing: spacing,
		Token0:      meta0,
		Token1:      meta1,
	}
	source := &bitmapSource{
		caller:       caller,
		batcher:      r.batcher,
		contract:     stateView,
		abi:          viewABI,
		bitmapMethod: "getTickBitmap",
		tickMethod:   "getTickLiquidity",
		keyArgs:      []interface{}{poolID},
		spacing:      spacing,
		fields:       fields,
	}
	return state, source, nil
}
