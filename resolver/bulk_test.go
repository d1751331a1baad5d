// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/provider"
	"github.com/stocksift/stocksift/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBulkStore keeps population progress and the retry queue in maps,
// mirroring the promotion rule the real store applies in SQL.
type fakeBulkStore struct {
	fakeStore

	batchStatus map[int]string
	failed      map[string]*store.FailedTicker
	retryLimit  int
}

func newFakeBulkStore() *fakeBulkStore {
	return &fakeBulkStore{
		fakeStore:   fakeStore{records: map[string]*data.Fundamentals{}},
		batchStatus: map[int]string{},
		failed:      map[string]*store.FailedTicker{},
	}
}

func (myStore *fakeBulkStore) StartBatch(_ context.Context, batchNumber int, _ []string) error {
	myStore.batchStatus[batchNumber] = store.BatchInProgress
	return nil
}

func (myStore *fakeBulkStore) CompleteBatch(_ context.Context, batchNumber int, _ int) error {
	myStore.batchStatus[batchNumber] = store.BatchCompleted
	return nil
}

func (myStore *fakeBulkStore) FailBatch(_ context.Context, batchNumber int, _ string) error {
	myStore.batchStatus[batchNumber] = store.BatchFailed
	return nil
}

func (myStore *fakeBulkStore) CompletedBatches(_ context.Context) (map[int]bool, error) {
	completed := map[int]bool{}
	for batchNumber, status := range myStore.batchStatus {
		if status == store.BatchCompleted {
			completed[batchNumber] = true
		}
	}
	return completed, nil
}

func (myStore *fakeBulkStore) RecordFailedTicker(_ context.Context, symbol string, batchNumber int, message string, retryLimit int) error {
	myStore.retryLimit = retryLimit

	entry, ok := myStore.failed[symbol]
	if !ok {
		myStore.failed[symbol] = &store.FailedTicker{
			Ticker:       symbol,
			BatchNumber:  batchNumber,
			ErrorMessage: message,
			Status:       store.FailurePending,
		}
		return nil
	}

	entry.RetryCount++
	entry.ErrorMessage = message
	if entry.RetryCount >= retryLimit {
		entry.Status = store.FailurePermanent
	} else {
		entry.Status = store.FailureRetrying
	}
	return nil
}

func (myStore *fakeBulkStore) ClearFailedTicker(_ context.Context, symbol string) error {
	delete(myStore.failed, symbol)
	return nil
}

func (myStore *fakeBulkStore) PendingFailedTickers(_ context.Context, limit int) ([]*store.FailedTicker, error) {
	pending := make([]*store.FailedTicker, 0, len(myStore.failed))
	for _, entry := range myStore.failed {
		if entry.Status == store.FailurePermanent {
			continue
		}
		pending = append(pending, entry)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// selectiveFetcher fails the symbols in the bad set and succeeds otherwise.
type selectiveFetcher struct {
	bad     map[string]bool
	fetches int
}

func (fetcher *selectiveFetcher) Name() string {
	return "selective"
}

func (fetcher *selectiveFetcher) FetchFundamentals(_ context.Context, symbol string) (*data.Fundamentals, error) {
	fetcher.fetches++
	if fetcher.bad[symbol] {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnavailable, symbol)
	}
	return testRecord(symbol, time.Time{}), nil
}

func (fetcher *selectiveFetcher) FetchPriceBars(_ context.Context, _ string, _ time.Time, _ time.Time) ([]data.PriceBar, error) {
	return nil, provider.ErrUnavailable
}

func newTestBulk(myStore BulkStore, fetcher provider.Fetcher) (*BulkRefresher, *kvcache.Memory) {
	cache := kvcache.NewMemoryWithClock(func() time.Time { return testNow })
	bulk := NewBulkRefresher(myStore, cache, fetcher, BulkOptions{
		BatchSize:     2,
		RatePerMinute: 1_000_000, // effectively unthrottled
		RetryLimit:    3,
		Now:           func() time.Time { return testNow },
	})
	return bulk, cache
}

func TestBulkRunBatchAccounting(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	fetcher := &selectiveFetcher{}
	bulk, _ := newTestBulk(myStore, fetcher)

	summary, err := bulk.Run(ctx, []string{"AAPL", "MSFT", "GOOG", "AMZN", "META"}, false)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalTickers)
	assert.Equal(t, 3, summary.TotalBatches)
	assert.Equal(t, 3, summary.CompletedBatches)
	assert.Zero(t, summary.SkippedBatches)
	assert.Zero(t, summary.FailedBatches)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.True(t, summary.EndTime.Equal(summary.StartTime) || summary.EndTime.After(summary.StartTime))

	assert.Len(t, myStore.records, 5)
	assert.Equal(t, testNow, myStore.records["AAPL"].LastUpdated)
}

func TestBulkRunRecordsFailures(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	fetcher := &selectiveFetcher{bad: map[string]bool{"MSFT": true}}
	bulk, _ := newTestBulk(myStore, fetcher)

	summary, err := bulk.Run(ctx, []string{"AAPL", "MSFT"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.CompletedBatches)

	require.Contains(t, myStore.failed, "MSFT")
	assert.Equal(t, store.FailurePending, myStore.failed["MSFT"].Status)
	assert.NotContains(t, myStore.failed, "AAPL")
}

func TestBulkRunFailsBatchWithNoSuccesses(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	fetcher := &selectiveFetcher{bad: map[string]bool{"AAPL": true, "MSFT": true}}
	bulk, _ := newTestBulk(myStore, fetcher)

	summary, err := bulk.Run(ctx, []string{"AAPL", "MSFT"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedBatches)
	assert.Zero(t, summary.CompletedBatches)
	assert.Equal(t, store.BatchFailed, myStore.batchStatus[1])
}

func TestBulkRunResumeSkipsCompletedBatches(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	myStore.batchStatus[1] = store.BatchCompleted

	fetcher := &selectiveFetcher{}
	bulk, _ := newTestBulk(myStore, fetcher)

	summary, err := bulk.Run(ctx, []string{"AAPL", "MSFT", "GOOG"}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedBatches)
	assert.Equal(t, 1, summary.CompletedBatches)
	assert.Equal(t, 1, summary.Succeeded)
	// only the second batch's single ticker was fetched
	assert.Equal(t, 1, fetcher.fetches)
}

func TestBulkRunInvalidatesScreenCache(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	bulk, cache := newTestBulk(myStore, &selectiveFetcher{})

	cache.Set(ctx, kvcache.ScreenPrefix+"abc", []byte("{}"), time.Hour)

	_, err := bulk.Run(ctx, []string{"AAPL"}, false)
	require.NoError(t, err)

	_, ok := cache.Get(ctx, kvcache.ScreenPrefix+"abc")
	assert.False(t, ok)
}

func TestBulkRunPingsOnCompletion(t *testing.T) {
	myStore := newFakeBulkStore()
	cache := kvcache.NewMemoryWithClock(func() time.Time { return testNow })

	pinged := false
	bulk := NewBulkRefresher(myStore, cache, &selectiveFetcher{}, BulkOptions{
		RatePerMinute: 1_000_000,
		Ping:          func() { pinged = true },
		Now:           func() time.Time { return testNow },
	})

	_, err := bulk.Run(context.Background(), []string{"AAPL"}, false)
	require.NoError(t, err)
	assert.True(t, pinged)
}

func TestRetryFailedDrainsQueue(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	myStore.failed["MSFT"] = &store.FailedTicker{Ticker: "MSFT", BatchNumber: 2, Status: store.FailurePending}
	myStore.failed["GOOG"] = &store.FailedTicker{Ticker: "GOOG", BatchNumber: 3, Status: store.FailureRetrying, RetryCount: 1}

	bulk, _ := newTestBulk(myStore, &selectiveFetcher{})

	succeeded, failed, err := bulk.RetryFailed(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, succeeded)
	assert.Zero(t, failed)
	assert.Empty(t, myStore.failed)
	assert.Len(t, myStore.records, 2)
}

func TestRetryFailedPromotesToPermanent(t *testing.T) {
	ctx := context.Background()
	myStore := newFakeBulkStore()
	myStore.failed["MSFT"] = &store.FailedTicker{Ticker: "MSFT", BatchNumber: 2, Status: store.FailureRetrying, RetryCount: 2}

	fetcher := &selectiveFetcher{bad: map[string]bool{"MSFT": true}}
	bulk, _ := newTestBulk(myStore, fetcher)

	succeeded, failed, err := bulk.RetryFailed(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, store.FailurePermanent, myStore.failed["MSFT"].Status)

	// permanently failed tickers leave the pending queue
	pending, err := myStore.PendingFailedTickers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBatchTickers(t *testing.T) {
	tests := []struct {
		name    string
		tickers []string
		size    int
		want    [][]string
	}{
		{"empty", nil, 100, [][]string{}},
		{"single partial batch", []string{"A", "B"}, 100, [][]string{{"A", "B"}}},
		{"exact multiple", []string{"A", "B", "C", "D"}, 2, [][]string{{"A", "B"}, {"C", "D"}}},
		{"trailing partial", []string{"A", "B", "C"}, 2, [][]string{{"A", "B"}, {"C"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchTickers(tt.tickers, tt.size))
		})
	}
}
