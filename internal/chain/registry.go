package chain

import (
	"context"
	"fmt"
	"sync"
)

// Provider hands out per-chain clients.
type Provider interface {
	EVM(ctx context.Context, chainID string) (EVMCaller, error)
	Solana(ctx context.Context) (AccountFetcher, error)
}

// Registry dials chain clients lazily from a chain -> RPC URL map.
type Registry struct {
	urls map[string]string

	mu     sync.Mutex
	evm    map[string]*Client
	solana *SolanaClient
}

func NewRegistry(urls map[string]string) *Registry {
	copied := make(map[string]string, len(urls))
	for k, v := range urls {
		copied[k] = v
	}
	return &Registry{urls: copied, evm: make(map[string]*Client)}
}

// EVM returns the client for an EVM chain, dialing it on first use.
func (r *Registry) EVM(ctx context.Context, chainID string) (EVMCaller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.evm[chainID]; ok {
		return client, nil
	}
	url := r.urls[chainID]
	if url == "" {
		return nil, fmt.Errorf("rpc url for %s is not configured", chainID)
	}
	client, err := NewClient(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s rpc: %w", chainID, err)
	}
	r.evm[chainID] = client
	return client, nil
}

// Solana returns the Solana client.
func (r *Registry) Solana(_ context.Context) (AccountFetcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.solana != nil {
		return r.solana, nil
	}
	url := r.urls["solana"]
	if url == "" {
		return nil, fmt.Errorf("rpc url for solana is not configured")
	}
	r.solana = NewSolanaClient(url)
	return r.solana, nil
}

// Close closes every dialed EVM client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, client := range r.evm {
		client.Close()
	}
	r.evm = make(map[string]*Client)
}
