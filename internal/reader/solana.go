package reader

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
)

// DLMMBinRange is how many bins on each side of the active bin are read.
const DLMMBinRange = 500

// SolanaReader reads Raydium, Orca, Meteora and PumpSwap pool accounts.
type SolanaReader struct {
	clients chain.Provider
	batcher Batcher
	logger  *zap.Logger
}

func NewSolanaReader(clients chain.Provider, batcher Batcher, logger *zap.Logger) *SolanaReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batcher.Logger == nil {
		batcher.Logger = logger
	}
	if batcher.Size <= 0 {
		batcher.Size = DefaultSolanaBatchSize
	}
	return &SolanaReader{clients: clients, batcher: batcher, logger: logger}
}

func solanaFields(id model.PoolIdentity) []zap.Field {
	return []zap.Field{zap.String("chain", id.ChainID), zap.String("pool", id.PoolAddress)}
}

// fetch reads keys and fails unless every account was returned.
func (r *SolanaReader) fetch(ctx context.Context, fetcher chain.AccountFetcher, keys []solana.PublicKey, stage string, fields []zap.Field) ([]*chain.Account, error) {
	accounts, err := r.batcher.FetchAccounts(ctx, fetcher, keys, stage, fields...)
	var partial *model.PartialReadError
	if errors.As(err, &partial) {
		return nil, partial.Err
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// poolAccount reads the pool account and checks that program owns it.
func (r *SolanaReader) poolAccount(ctx context.Context, id model.PoolIdentity, program solana.PublicKey, stage string) (chain.AccountFetcher, solana.PublicKey, *chain.Account, error) {
	key, err := solana.PublicKeyFromBase58(id.PoolAddress)
	if err != nil {
		return nil, key, nil, &model.ValidationError{Field: "poolAddress", Reason: err.Error()}
	}
	fetcher, err := r.clients.Solana(ctx)
	if err != nil {
		return nil, key, nil, err
	}
	accounts, err := r.fetch(ctx, fetcher, []solana.PublicKey{key}, stage, solanaFields(id))
	if err != nil {
		return nil, key, nil, err
	}
	account := accounts[0]
	if account == nil {
		return nil, key, nil, &model.NotFoundError{Resource: "pool account", Key: id.PoolAddress, Reason: "account does not exist"}
	}
	if !account.Owner.Equals(program) {
		return nil, key, nil, &model.NotFoundError{Resource: "pool account", Key: id.PoolAddress, Reason: "account is not owned by " + program.String()}
	}
	return fetcher, key, account, nil
}

func tokenMeta(hint *model.TokenMeta, mint solana.PublicKey, decimals uint8) model.TokenMeta {
	if hint != nil {
		return *hint
	}
	return model.TokenMeta{Address: mint.String(), Decimals: decimals, Symbol: model.UnknownTokenSymbol}
}

// mintDecimals reads the decimals of each mint. Unreadable mints keep the
// default decimals.
func (r *SolanaReader) mintDecimals(ctx context.Context, fetcher chain.AccountFetcher, mints []solana.PublicKey, fields []zap.Field) []uint8 {
	out := make([]uint8, len(mints))
	for i := range out {
		out[i] = model.DefaultTokenDecimals
	}
	accounts, err := r.batcher.FetchAccounts(ctx, fetcher, mints, "mints", fields...)
	if err != nil {
		r.logger.Warn("mint read failed, using default decimals", append(fields, zap.String("stage", "read"), zap.Error(err))...)
	}
	for i, account := range accounts {
		if account == nil {
			continue
		}
		decimals, err := dex.DecodeMintDecimals(account.Data)
		if err != nil {
			r.logger.Debug("mint decode failed", append(fields, zap.String("mint", mints[i].String()), zap.Error(err))...)
			continue
		}
		out[i] = decimals
	}
	return out
}

// ReadRaydiumAMM reads a Raydium AMM v4 pool. Reserves are vault balances
// less the pending PnL owed to the protocol.
func (r *SolanaReader) ReadRaydiumAMM(ctx context.Context, id model.PoolIdentity, opts Options) (model.ReserveState, error) {
	fetcher, _, account, err := r.poolAccount(ctx, id, dex.RaydiumAMMProgramID, "raydium amm state")
	if err != nil {
		return model.ReserveState{}, err
	}
	pool, err := dex.DecodeRaydiumAMM(account.Data)
	if err != nil {
		return model.ReserveState{}, err
	}
	fields := solanaFields(id)
	vaults, err := r.fetch(ctx, fetcher, []solana.PublicKey{pool.CoinVault, pool.PcVault}, "raydium amm vaults", fields)
	if err != nil {
		return model.ReserveState{}, err
	}
	reserves := make([]*big.Int, 2)
	pnl := []uint64{pool.NeedTakePnlCoin, pool.NeedTakePnlPc}
	for i, vault := range vaults {
		reserves[i] = new(big.Int)
		if vault == nil {
			continue
		}
		amount, err := dex.DecodeTokenAccountAmount(vault.Data)
		if err != nil {
			return model.ReserveState{}, err
		}
		if amount > pnl[i] {
			reserves[i].SetUint64(amount - pnl[i])
		}
	}
	return model.ReserveState{
		Pool:     model.PoolTypeRaydiumAMM,
		Reserve0: reserves[0],
		Reserve1: reserves[1],
		Token0:   tokenMeta(opts.Token0, pool.CoinMint, pool.CoinDecimals),
		Token1:   tokenMeta(opts.Token1, pool.PcMint, pool.PcDecimals),
	}, nil
}

// ReadRaydiumCLMM reads a Raydium concentrated pool and returns a source over
// its tick array accounts.
func (r *SolanaReader) ReadRaydiumCLMM(ctx context.Context, id model.PoolIdentity, opts Options) (model.ConcentratedState, *TickArraySource, error) {
	fetcher, key, account, err := r.poolAccount(ctx, id, dex.RaydiumCLMMProgramID, "raydium clmm state")
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	pool, err := dex.DecodeRaydiumCLMMPool(account.Data)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	state := model.ConcentratedState{
		Pool:        model.PoolTypeRaydiumCLMM,
		SqrtPrice:   pool.SqrtPriceX64,
		Resolution:  64,
		CurrentTick: pool.TickCurrent,
		Liquidity:   pool.Liquidity,
		TickSpacing: pool.TickSpacing,
		Token0:      tokenMeta(opts.Token0, pool.Mint0, pool.Decimals0),
		Token1:      tokenMeta(opts.Token1, pool.Mint1, pool.Decimals1),
	}
	source := &TickArraySource{
		fetcher: fetcher,
		batcher: r.batcher,
		spacing: pool.TickSpacing,
		size:    dex.RaydiumTickArraySize,
		address: func(start int32) (solana.PublicKey, error) { return dex.RaydiumTickArrayAddress(key, start) },
		decode:  func(data []byte) (dex.TickArray, error) { return dex.DecodeRaydiumTickArray(data) },
		fields:  solanaFields(id),
	}
	return state, source, nil
}

// ReadWhirlpool reads an Orca Whirlpool and returns a source over its tick
// array accounts. Token decimals come from the mint accounts.
func (r *SolanaReader) ReadWhirlpool(ctx context.Context, id model.PoolIdentity, opts Options) (model.ConcentratedState, *TickArraySource, error) {
	fetcher, key, account, err := r.poolAccount(ctx, id, dex.WhirlpoolProgramID, "whirlpool state")
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	pool, err := dex.DecodeWhirlpool(account.Data)
	if err != nil {
		return model.ConcentratedState{}, nil, err
	}
	fields := solanaFields(id)
	decimals := []uint8{model.DefaultTokenDecimals, model.DefaultTokenDecimals}
	if opts.Token0 == nil || opts.Token1 == nil {
		decimals = r.mintDecimals(ctx, fetcher, []solana.PublicKey{pool.MintA, pool.MintB}, fields)
	}
	spacing := pool.TickSpacing
	state := model.ConcentratedState{
		Pool:        model.PoolTypeOrcaWhirlpool,
		SqrtPrice:   pool.SqrtPrice,
		Resolution:  64,
		CurrentTick: pool.TickCurrentIndex,
		Liquidity:   pool.Liquidity,
		TickSpacing: spacing,
		Token0:      tokenMeta(opts.Token0, pool.MintA, decimals[0]),
		Token1:      tokenMeta(opts.Token1, pool.MintB, decimals[1]),
	}
	source := &TickArraySource{
		fetcher: fetcher,
		batcher: r.batcher,
		spacing: spacing,
		size:    dex.WhirlpoolTickArraySize,
		address: func(start int32) (solana.PublicKey, error) { return dex.WhirlpoolTickArrayAddress(key, start) },
		decode:  func(data []byte) (dex.TickArray, error) { return dex.DecodeWhirlpoolTickArray(data, spacing) },
		fields:  fields,
	}
	return state, source, nil
}

// ReadDLMM reads a Meteora DLMM pair and the non-empty bins within
// DLMMBinRange of the active bin. Failed bin arrays return the state read so
// far with a *model.PartialReadError.
func (r *SolanaReader) ReadDLMM(ctx context.Context, id model.PoolIdentity, opts Options) (model.BinState, error) {
	fetcher, key, account, err := r.poolAccount(ctx, id, dex.MeteoraDLMMProgramID, "dlmm state")
	if err != nil {
		return model.BinState{}, err
	}
	pair, err := dex.DecodeLbPair(account.Data)
	if err != nil {
		return model.BinState{}, err
	}
	fields := solanaFields(id)
	decimals := []uint8{model.DefaultTokenDecimals, model.DefaultTokenDecimals}
	if opts.Token0 == nil || opts.Token1 == nil {
		decimals = r.mintDecimals(ctx, fetcher, []solana.PublicKey{pair.TokenXMint, pair.TokenYMint}, fields)
	}

	lowBin, highBin := pair.ActiveID-DLMMBinRange, pair.ActiveID+DLMMBinRange
	first, last := dex.BinArrayIndex(lowBin), dex.BinArrayIndex(highBin)
	keys := make([]solana.PublicKey, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		address, err := dex.DLMMBinArrayAddress(key, idx)
		if err != nil {
			return model.BinState{}, err
		}
		keys = append(keys, address)
	}
	accounts, readErr := r.batcher.FetchAccounts(ctx, fetcher, keys, "dlmm bins", fields...)
	if readErr != nil && !model.IsPartialRead(readErr) {
		return model.BinState{}, readErr
	}

	bins := make([]model.BinRecord, 0)
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		array, err := dex.DecodeBinArray(acc.Data)
		if err != nil {
			r.logger.Debug("bin array decode failed", append(fields, zap.Error(err))...)
			continue
		}
		for _, bin := range array.Bins {
			if bin.BinID >= lowBin && bin.BinID <= highBin {
				bins = append(bins, bin)
			}
		}
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].BinID < bins[j].BinID })

	state := model.BinState{
		Pool:        model.PoolTypeMeteoraDLMM,
		ActiveBinID: pair.ActiveID,
		BinStep:     pair.BinStep,
		Bins:        bins,
		Token0:      tokenMeta(opts.Token0, pair.TokenXMint, decimals[0]),
		Token1:      tokenMeta(opts.Token1, pair.TokenYMint, decimals[1]),
	}
	return state, readErr
}

// ReadBondingCurve reads a PumpSwap bonding curve. Token0 is the launched
// token and token1 is SOL.
func (r *SolanaReader) ReadBondingCurve(ctx context.Context, id model.PoolIdentity, opts Options) (model.BondingCurveState, error) {
	_, _, account, err := r.poolAccount(ctx, id, dex.PumpBondingProgramID, "bonding curve state")
	if err != nil {
		return model.BondingCurveState{}, err
	}
	curve, err := dex.DecodeBondingCurve(account.Data)
	if err != nil {
		return model.BondingCurveState{}, err
	}
	token0 := model.TokenMeta{Address: id.PoolAddress, Decimals: dex.PumpTokenDecimals, Symbol: model.UnknownTokenSymbol}
	if opts.Token0 != nil {
		token0 = *opts.Token0
	}
	token1 := model.TokenMeta{Address: dex.WrappedSolMint.String(), Decimals: dex.SolDecimals, Symbol: "SOL", Name: "Wrapped SOL"}
	if opts.Token1 != nil {
		token1 = *opts.Token1
	}
	return model.BondingCurveState{
		Pool:                 model.PoolTypeBondingCurve,
		VirtualTokenReserves: new(big.Int).SetUint64(curve.VirtualTokenReserves),
		VirtualSolReserves:   new(big.Int).SetUint64(curve.VirtualSolReserves),
		RealTokenReserves:    new(big.Int).SetUint64(curve.RealTokenReserves),
		RealSolReserves:      new(big.Int).SetUint64(curve.RealSolReserves),
		Complete:             curve.Complete,
		Token0:               token0,
		Token1:               token1,
	}, nil
}

// TickArraySource answers tick queries from fixed-size tick array accounts.
// Arrays are fetched once per range and their ticks kept for Records.
type TickArraySource struct {
	fetcher chain.AccountFetcher
	batcher Batcher
	spacing int32
	size    int32
	address func(start int32) (solana.PublicKey, error)
	decode  func(data []byte) (dex.TickArray, error)
	fields  []zap.Field

	mu      sync.Mutex
	records map[int32]model.TickRecord
}

// InitializedIndices fetches every tick array covering [lower, upper].
// Missing arrays hold no initialized ticks.
func (s *TickArraySource) InitializedIndices(ctx context.Context, lower, upper int32) ([]int32, error) {
	starts := dex.TickArrayStarts(lower, upper, s.spacing, s.size)
	keys := make([]solana.PublicKey, 0, len(starts))
	for _, start := range starts {
		key, err := s.address(start)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	accounts, readErr := s.batcher.FetchAccounts(ctx, s.fetcher, keys, "tick arrays", s.fields...)
	if readErr != nil && !model.IsPartialRead(readErr) {
		return nil, readErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[int32]model.TickRecord)
	}
	seen := make(map[int32]bool)
	indices := make([]int32, 0)
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		array, err := s.decode(acc.Data)
		if err != nil {
			s.batcher.logger().Debug("tick array decode failed", append(s.fields, zap.Error(err))...)
			continue
		}
		for _, tick := range array.Ticks {
			if tick.Index < lower || tick.Index > upper {
				continue
			}
			if !seen[tick.Index] {
				seen[tick.Index] = true
				indices = append(indices, tick.Index)
			}
			s.records[tick.Index] = tick
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices, readErr
}

// Records returns the ticks loaded by InitializedIndices.
func (s *TickArraySource) Records(_ context.Context, indices []int32) ([]model.TickRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TickRecord, 0, len(indices))
	for _, idx := range indices {
		if rec, ok := s.records[idx]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
