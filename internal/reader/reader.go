// Package reader fetches pool state from EVM JSON-RPC and Solana account
// endpoints. Independent reads are batched and run concurrently; a failed
// batch degrades its result instead of failing the whole read.
package reader

import (
	"context"
	"fmt"

	"liquidityDepth/internal/model"
	"liquidityDepth/internal/scanner"
)

// Reader routes a pool to the reader for its type.
type Reader struct {
	evm    *EVMReader
	solana *SolanaReader
}

func New(evm *EVMReader, solana *SolanaReader) *Reader {
	return &Reader{evm: evm, solana: solana}
}

// ReadState returns the pool state and, for tick-based pools, the source
// the scanner walks. A *model.PartialReadError may accompany a usable state.
func (r *Reader) ReadState(ctx context.Context, id model.PoolIdentity, poolType model.PoolType, opts Options) (model.PoolState, scanner.Source, error) {
	if poolType.IsSolana() && r.solana == nil || !poolType.IsSolana() && r.evm == nil {
		return nil, nil, fmt.Errorf("no reader configured for %s", poolType)
	}
	switch poolType {
	case model.PoolTypeV2:
		state, err := r.evm.ReadV2(ctx, id, opts)
		return stateOrNil(state, err)
	case model.PoolTypeV3:
		state, src, err := r.evm.ReadV3(ctx, id, opts)
		if err != nil {
			return nil, nil, err
		}
		return state, src, nil
	case model.PoolTypeV4:
		state, src, err := r.evm.ReadV4(ctx, id, opts)
		if err != nil {
			return nil, nil, err
		}
		return state, src, nil
	case model.PoolTypeRaydiumAMM:
		state, err := r.solana.ReadRaydiumAMM(ctx, id, opts)
		return stateOrNil(state, err)
	case model.PoolTypeRaydiumCLMM:
		state, src, err := r.solana.ReadRaydiumCLMM(ctx, id, opts)
		if err != nil {
			return nil, nil, err
		}
		return state, src, nil
	case model.PoolTypeOrcaWhirlpool:
		state, src, err := r.solana.ReadWhirlpool(ctx, id, opts)
		if err != nil {
			return nil, nil, err
		}
		return state, src, nil
	case model.PoolTypeMeteoraDLMM:
		state, err := r.solana.ReadDLMM(ctx, id, opts)
		if err != nil && !model.IsPartialRead(err) {
			return nil, nil, err
		}
		return state, nil, err
	case model.PoolTypeBondingCurve:
		state, err := r.solana.ReadBondingCurve(ctx, id, opts)
		return stateOrNil(state, err)
	default:
		return nil, nil, &model.ValidationError{Field: "poolType", Reason: "unsupported pool type " + poolType.String()}
	}
}

func stateOrNil(state model.PoolState, err error) (model.PoolState, scanner.Source, error) {
	if err != nil {
		return nil, nil, err
	}
	return state, nil, nil
}
