package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityDepth/internal/chain"
	"liquidityDepth/internal/model"
)

const (
	DefaultBatchSize       = 256
	DefaultSolanaBatchSize = 100
	DefaultConcurrency     = 4
)

var errNotFetched = errors.New("batch not fetched")

// Range is an inclusive item range.
type Range struct {
	From int
	To   int
}

// Len is the number of items in the range.
func (r Range) Len() int {
	return r.To - r.From + 1
}

// SplitRange splits the inclusive range [from, to] into batches of size batchSize.
func SplitRange(from, to, batchSize int) ([]Range, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end must be >= range start")
	}

	ranges := make([]Range, 0, (to-from)/batchSize+1)
	for start := from; start <= to; start += batchSize {
		end := start + batchSize - 1
		if end > to {
			end = to
		}
		ranges = append(ranges, Range{From: start, To: end})
	}
	return ranges, nil
}

// Batcher runs independent batched reads concurrently with bounded retries.
type Batcher struct {
	Size        int
	Concurrency int
	Retry       RetryPolicy
	// Timeout bounds each attempt of a batch; zero leaves it to the caller context.
	Timeout time.Duration
	Logger  *zap.Logger
}

func (b Batcher) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// Run splits n items into batches and calls fn for each. A batch that still
// fails after retries is logged and skipped; the remaining batches complete
// and a *model.PartialReadError is returned. Cancellation aborts.
func (b Batcher) Run(ctx context.Context, n int, stage string, fn func(context.Context, Range) error, fields ...zap.Field) error {
	if n <= 0 {
		return nil
	}
	size := b.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	ranges, err := SplitRange(0, n-1, size)
	if err != nil {
		return err
	}
	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := b.logger().With(append(fields, zap.String("stage", stage))...)

	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			err := withRetry(gctx, b.Retry, func(ctx context.Context) error {
				if b.Timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, b.Timeout)
					defer cancel()
				}
				return fn(ctx, r)
			}, func(attempt int, err error) {
				logger.Warn("batch read failed, retrying",
					zap.Int("attempt", attempt),
					zap.Int("from", r.From),
					zap.Int("to", r.To),
					zap.Error(err),
				)
			})
			if err == nil {
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			logger.Warn("batch read exhausted retries",
				zap.Int("from", r.From),
				zap.Int("to", r.To),
				zap.Error(err),
			)
			mu.Lock()
			failed++
			lastErr = err
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return &model.PartialReadError{
			Stage:  stage,
			Failed: failed,
			Total:  len(ranges),
			Err:    &model.ExternalServiceError{Service: "rpc", Op: stage, Err: lastErr},
		}
	}
	return nil
}

// CallBatch executes msgs as batched eth_calls. Calls in failed batches carry
// an error result; the returned error is a *model.PartialReadError in that case.
func (b Batcher) CallBatch(ctx context.Context, caller chain.EVMCaller, msgs []ethereum.CallMsg, stage string, fields ...zap.Field) ([]chain.CallResult, error) {
	results := make([]chain.CallResult, len(msgs))
	for i := range results {
		results[i].Err = errNotFetched
	}
	err := b.Run(ctx, len(msgs), stage, func(ctx context.Context, r Range) error {
		out, err := caller.BatchCallContract(ctx, msgs[r.From:r.To+1])
		if err != nil {
			return err
		}
		if len(out) != r.Len() {
			return fmt.Errorf("batch returned %d results for %d calls", len(out), r.Len())
		}
		copy(results[r.From:], out)
		return nil
	}, fields...)
	return results, err
}

// FetchAccounts reads keys with getMultipleAccounts in batches. Accounts in
// failed batches are nil.
func (b Batcher) FetchAccounts(ctx context.Context, fetcher chain.AccountFetcher, keys []solana.PublicKey, stage string, fields ...zap.Field) ([]*chain.Account, error) {
	accounts := make([]*chain.Account, len(keys))
	err := b.Run(ctx, len(keys), stage, func(ctx context.Context, r Range) error {
		out, err := fetcher.GetMultipleAccounts(ctx, keys[r.From:r.To+1])
		if err != nil {
			return err
		}
		if len(out) != r.Len() {
			return fmt.Errorf("batch returned %d accounts for %d keys", len(out), r.Len())
		}
		copy(accounts[r.From:], out)
		return nil
	}, fields...)
	return accounts, err
}
