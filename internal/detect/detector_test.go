package detect

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"liquidityDepth/internal/cache"
	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/dex"
	"liquidityDepth/internal/model"
)

// fakePool answers calls for the methods it was given and reverts the rest.
type fakePool struct {
	parsed  []abi.ABI
	outputs map[string][]interface{}
	calls   int
}

func (f *fakePool) answer(msg ethereum.CallMsg) ([]byte, error) {
	f.calls++
	for _, parsed := range f.parsed {
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		values, ok := f.outputs[method.Name]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return method.Outputs.Pack(values...)
	}
	return nil, fmt.Errorf("execution reverted")
}

func (f *fakePool) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return f.answer(msg)
}

func (f *fakePool) BatchCallContract(_ context.Context, msgs []ethereum.CallMsg) ([]chain.CallResult, error) {
	out := make([]chain.CallResult, len(msgs))
	for i, msg := range msgs {
		data, err := f.answer(msg)
		out[i] = chain.CallResult{Data: data, Err: err}
	}
	return out, nil
}

type fakeProvider struct {
	evm chain.EVMCaller
}

func (p fakeProvider) EVM(context.Context, string) (chain.EVMCaller, error) {
	if p.evm == nil {
		return nil, fmt.Errorf("no client")
	}
	return p.evm, nil
}

func (p fakeProvider) Solana(context.Context) (chain.AccountFetcher, error) {
	return nil, fmt.Errorf("no solana client")
}

func newFakePool(t *testing.T, outputs map[string][]interface{}) *fakePool {
	t.Helper()
	v2, err := dex.V2PairABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	v3, err := dex.V3PoolABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return &fakePool{parsed: []abi.ABI{v3, v2}, outputs: outputs}
}

var evmPool = model.PoolIdentity{ChainID: model.ChainEthereum, PoolAddress: "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"}

func TestDetectV4WithoutCalls(t *testing.T) {
	pool := newFakePool(t, nil)
	d := New(fakeProvider{evm: pool}, nil, 0, nil)
	id := model.PoolIdentity{ChainID: model.ChainBase, PoolAddress: "0x21c67e77068de97969ba93d4aab21826d33ca12bb9f565d8496e8fda8a82ca27"}

	if got := d.Detect(context.Background(), id, ""); got != model.PoolTypeV4 {
		t.Fatalf("got %s, want v4", got)
	}
	if pool.calls != 0 {
		t.Fatalf("expected no contract calls, got %d", pool.calls)
	}
}

func TestDetectV3(t *testing.T) {
	pool := newFakePool(t, map[string][]interface{}{
		"slot0":       {big.NewInt(1), big.NewInt(0), uint16(0), uint16(0), uint16(0), uint8(0), true},
		"tickSpacing": {big.NewInt(60)},
	})
	d := New(fakeProvider{evm: pool}, nil, 0, nil)
	if got := d.Detect(context.Background(), evmPool, ""); got != model.PoolTypeV3 {
		t.Fatalf("got %s, want v3", got)
	}
}

func TestDetectV2(t *testing.T) {
	pool := newFakePool(t, map[string][]interface{}{
		"getReserves": {big.NewInt(10), big.NewInt(20), uint32(0)},
	})
	d := New(fakeProvider{evm: pool}, nil, 0, nil)
	if got := d.Detect(context.Background(), evmPool, ""); got != model.PoolTypeV2 {
		t.Fatalf("got %s, want v2", got)
	}
}

func TestDetectUnknownIsNotCached(t *testing.T) {
	mem := cache.NewMemory(10, time.Hour)
	d := New(fakeProvider{evm: newFakePool(t, nil)}, mem, time.Hour, nil)
	if got := d.Detect(context.Background(), evmPool, ""); got != model.PoolTypeUnknown {
		t.Fatalf("got %s, want unknown", got)
	}
	if mem.Stats().Size != 0 {
		t.Fatalf("unknown must not be cached")
	}
}

func TestDetectUsesCache(t *testing.T) {
	mem := cache.NewMemory(10, time.Hour)
	pool := newFakePool(t, map[string][]interface{}{
		"getReserves": {big.NewInt(10), big.NewInt(20), uint32(0)},
	})
	d := New(fakeProvider{evm: pool}, mem, time.Hour, nil)

	first := d.Detect(context.Background(), evmPool, "")
	calls := pool.calls
	second := d.Detect(context.Background(), evmPool, "")
	if first != model.PoolTypeV2 || second != first {
		t.Fatalf("detection not deterministic: %s then %s", first, second)
	}
	if pool.calls != calls {
		t.Fatalf("cached detection issued %d extra calls", pool.calls-calls)
	}
}

func TestDetectClientFailure(t *testing.T) {
	d := New(fakeProvider{}, nil, 0, nil)
	if got := d.Detect(context.Background(), evmPool, ""); got != model.PoolTypeUnknown {
		t.Fatalf("got %s, want unknown", got)
	}
}

func TestClassifySolana(t *testing.T) {
	cases := map[string]model.PoolType{
		"pump.fun":             model.PoolTypeBondingCurve,
		"PumpSwap":             model.PoolTypeBondingCurve,
		"Raydium CLMM":         model.PoolTypeRaydiumCLMM,
		"raydium-concentrated": model.PoolTypeRaydiumCLMM,
		"Raydium":              model.PoolTypeRaydiumAMM,
		"Orca":                 model.PoolTypeOrcaWhirlpool,
		"whirlpool":            model.PoolTypeOrcaWhirlpool,
		"Meteora DLMM":         model.PoolTypeMeteoraDLMM,
		"dlmm":                 model.PoolTypeMeteoraDLMM,
		"jupiter":              model.PoolTypeUnknown,
		"":                     model.PoolTypeUnknown,
	}
	for hint, want := range cases {
		if got := ClassifySolana(hint); got != want {
			t.Fatalf("ClassifySolana(%q) = %s, want %s", hint, got, want)
		}
	}
}

func TestDetectSolanaHint(t *testing.T) {
	d := New(fakeProvider{}, nil, 0, nil)
	id := model.PoolIdentity{ChainID: model.ChainSolana, PoolAddress: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"}
	if got := d.Detect(context.Background(), id, "Raydium"); got != model.PoolTypeRaydiumAMM {
		t.Fatalf("got %s, want raydium-amm", got)
	}
}
