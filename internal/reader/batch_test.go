package reader

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"liquidityDepth/internal/model"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Range{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Range{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	var attempts int
	var retries []int
	err := withRetry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("timeout")
		}
		return nil
	}, func(attempt int, err error) {
		retries = append(retries, attempt)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if !reflect.DeepEqual(retries, []int{1, 2}) {
		t.Fatalf("retries = %v", retries)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	var attempts int
	err := withRetry(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return errors.New("boom")
	}, nil)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Second}, func(context.Context) error {
		return errors.New("boom")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatcherRunPartialFailure(t *testing.T) {
	b := Batcher{Size: 2, Concurrency: 2, Retry: RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}}
	var done int32
	err := b.Run(context.Background(), 10, "test", func(_ context.Context, r Range) error {
		if r.From == 4 {
			return errors.New("rate limited")
		}
		atomic.AddInt32(&done, int32(r.Len()))
		return nil
	})

	var partial *model.PartialReadError
	if !errors.As(err, &partial) {
		t.Fatalf("expected partial read error, got %v", err)
	}
	if partial.Failed != 1 || partial.Total != 5 || partial.Stage != "test" {
		t.Fatalf("unexpected partial error: %+v", partial)
	}
	var external *model.ExternalServiceError
	if !errors.As(err, &external) {
		t.Fatalf("expected wrapped external service error")
	}
	if done != 8 {
		t.Fatalf("completed items = %d, want 8", done)
	}
}

func TestBatcherRunEmpty(t *testing.T) {
	b := Batcher{}
	called := false
	err := b.Run(context.Background(), 0, "test", func(context.Context, Range) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Fatalf("expected no-op, got err=%v called=%v", err, called)
	}
}
