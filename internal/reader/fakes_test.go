package reader

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/gagliardetto/solana-go"

	"liquidityDepth/internal/chain"
)

// handler returns the output values for one decoded call.
type handler func(args []interface{}) ([]interface{}, error)

type fakeEVM struct {
	parsed   abi.ABI
	handlers map[string]handler

	mu      sync.Mutex
	batches int
	calls   map[string]int
}

func newFakeEVM(parsed abi.ABI) *fakeEVM {
	return &fakeEVM{parsed: parsed, handlers: make(map[string]handler), calls: make(map[string]int)}
}

func (f *fakeEVM) on(method string, h handler) *fakeEVM {
	f.handlers[method] = h
	return f
}

func (f *fakeEVM) answer(msg ethereum.CallMsg) ([]byte, error) {
	method, err := f.parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[method.Name]++
	f.mu.Unlock()
	h, ok := f.handlers[method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted: %s", method.Name)
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	values, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

func (f *fakeEVM) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return f.answer(msg)
}

func (f *fakeEVM) BatchCallContract(_ context.Context, msgs []ethereum.CallMsg) ([]chain.CallResult, error) {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	out := make([]chain.CallResult, len(msgs))
	for i, msg := range msgs {
		data, err := f.answer(msg)
		out[i] = chain.CallResult{Data: data, Err: err}
	}
	return out, nil
}

func (f *fakeEVM) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

type fakeFetcher struct {
	accounts map[solana.PublicKey]*chain.Account
	fail     bool
	// failKeys fails any request containing one of these keys.
	failKeys map[solana.PublicKey]bool

	mu        sync.Mutex
	requested map[solana.PublicKey]int
}

func (f *fakeFetcher) GetMultipleAccounts(_ context.Context, keys []solana.PublicKey) ([]*chain.Account, error) {
	f.mu.Lock()
	if f.requested == nil {
		f.requested = make(map[solana.PublicKey]int)
	}
	for _, key := range keys {
		f.requested[key]++
	}
	f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("node unavailable")
	}
	for _, key := range keys {
		if f.failKeys[key] {
			return nil, fmt.Errorf("node unavailable for %s", key)
		}
	}
	out := make([]*chain.Account, len(keys))
	for i, key := range keys {
		out[i] = f.accounts[key]
	}
	return out, nil
}

func (f *fakeFetcher) requestCount(key solana.PublicKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[key]
}

type fakeProvider struct {
	evm    chain.EVMCaller
	solana chain.AccountFetcher
}

func (p fakeProvider) EVM(_ context.Context, chainID string) (chain.EVMCaller, error) {
	if p.evm == nil {
		return nil, fmt.Errorf("no client for %s", chainID)
	}
	return p.evm, nil
}

func (p fakeProvider) Solana(_ context.Context) (chain.AccountFetcher, error) {
	if p.solana == nil {
		return nil, fmt.Errorf("no solana client")
	}
	return p.solana, nil
}
