package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Account is the raw content of one Solana account.
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

// AccountFetcher reads several Solana accounts in one request. Missing
// accounts are returned as nil entries at their position.
type AccountFetcher interface {
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error)
}

// SolanaClient wraps the solana-go JSON-RPC client.
type SolanaClient struct {
	rpcClient *rpc.Client
}

func NewSolanaClient(endpoint string) *SolanaClient {
	return &SolanaClient{rpcClient: rpc.New(endpoint)}
}

// GetMultipleAccounts returns the accounts for keys in order.
func (c *SolanaClient) GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out, err := c.rpcClient.GetMultipleAccounts(ctx, keys...)
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, len(keys))
	for i, info := range out.Value {
		if i >= len(accounts) {
			break
		}
		if info == nil || info.Data == nil {
			continue
		}
		accounts[i] = &Account{Owner: info.Owner, Data: info.Data.GetBinary()}
	}
	return accounts, nil
}
