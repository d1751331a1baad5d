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
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/provider"
	"github.com/stocksift/stocksift/store"
	"golang.org/x/time/rate"
)

// BulkStore extends the resolver's store slice with the durable progress and
// retry queues the population job checkpoints through.
type BulkStore interface {
	Store

	StartBatch(ctx context.Context, batchNumber int, tickers []string) error
	CompleteBatch(ctx context.Context, batchNumber int, recordsInserted int) error
	FailBatch(ctx context.Context, batchNumber int, message string) error
	CompletedBatches(ctx context.Context) (map[int]bool, error)

	RecordFailedTicker(ctx context.Context, symbol string, batchNumber int, message string, retryLimit int) error
	ClearFailedTicker(ctx context.Context, symbol string) error
	PendingFailedTickers(ctx context.Context, limit int) ([]*store.FailedTicker, error)
}

// BulkOptions tune a population run.
type BulkOptions struct {
	// BatchSize is the number of tickers per checkpointed batch; defaults
	// to 100.
	BatchSize int

	// RatePerMinute is the target upstream throughput; defaults to 50.
	RatePerMinute int

	// RetryLimit is the number of failures before a ticker moves to
	// permanent_failure; defaults to 3.
	RetryLimit int

	// FetchTimeout bounds each upstream call; defaults to 30s.
	FetchTimeout time.Duration

	// Ping, when set, is called after the run completes. The populate
	// command wires it to a healthchecks.io slot.
	Ping func()

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (opts BulkOptions) withDefaults() BulkOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 50
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 3
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// RunSummary reports the outcome of one population run.
type RunSummary struct {
	RunID            uuid.UUID
	StartTime        time.Time
	EndTime          time.Time
	TotalTickers     int
	TotalBatches     int
	CompletedBatches int
	SkippedBatches   int
	FailedBatches    int
	Succeeded        int
	Failed           int
}

// BulkRefresher applies the resolver's refresh path (fetch, upsert,
// invalidate) to a whole ticker universe at a bounded throughput, recording
// per-batch progress so an interrupted run can resume.
type BulkRefresher struct {
	store   BulkStore
	cache   kvcache.Cache
	fetcher provider.Fetcher
	opts    BulkOptions
}

func NewBulkRefresher(myStore BulkStore, cache kvcache.Cache, fetcher provider.Fetcher, opts BulkOptions) *BulkRefresher {
	return &BulkRefresher{
		store:   myStore,
		cache:   cache,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
	}
}

// Run refreshes fundamentals for every ticker in the list. With resume set,
// batches recorded as completed by an earlier run are skipped. Individual
// ticker failures land in the retry queue and do not abort the run; the
// returned summary carries the success and failure counts.
func (bulk *BulkRefresher) Run(ctx context.Context, tickers []string, resume bool) (RunSummary, error) {
	summary := RunSummary{
		RunID:        uuid.New(),
		StartTime:    bulk.opts.Now(),
		TotalTickers: len(tickers),
	}

	defer func() {
		summary.EndTime = bulk.opts.Now()
		if bulk.opts.Ping != nil {
			bulk.opts.Ping()
		}
	}()

	batches := batchTickers(tickers, bulk.opts.BatchSize)
	summary.TotalBatches = len(batches)

	completed := map[int]bool{}
	if resume {
		var err error
		if completed, err = bulk.store.CompletedBatches(ctx); err != nil {
			return summary, fmt.Errorf("load population checkpoint: %w", err)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(float64(bulk.opts.RatePerMinute)/float64(61)), 1)

	runLogger := log.With().Str("RunID", summary.RunID.String()).Logger()
	runLogger.Info().Int("NumTickers", len(tickers)).Int("NumBatches", len(batches)).
		Bool("Resume", resume).Msg("bulk refresh started")

	for batchIdx, batch := range batches {
		batchNumber := batchIdx + 1

		if completed[batchNumber] {
			summary.SkippedBatches++
			runLogger.Debug().Int("Batch", batchNumber).Msg("batch already completed; skipping")
			continue
		}

		if err := bulk.store.StartBatch(ctx, batchNumber, batch); err != nil {
			return summary, err
		}

		succeeded := 0
		for _, symbol := range batch {
			if err := limiter.Wait(ctx); err != nil {
				// context cancelled mid-run; leave the batch in_progress for
				// the next resume
				return summary, err
			}

			if err := bulk.refreshOne(ctx, symbol, batchNumber); err != nil {
				summary.Failed++
				runLogger.Warn().Err(err).Str("Ticker", symbol).Int("Batch", batchNumber).Msg("ticker refresh failed")
				continue
			}

			succeeded++
			summary.Succeeded++
		}

		if succeeded == 0 {
			summary.FailedBatches++
			if err := bulk.store.FailBatch(ctx, batchNumber, "no tickers refreshed"); err != nil {
				return summary, err
			}
			continue
		}

		summary.CompletedBatches++
		if err := bulk.store.CompleteBatch(ctx, batchNumber, succeeded); err != nil {
			return summary, err
		}

		runLogger.Info().Int("Batch", batchNumber).Int("NumBatches", len(batches)).
			Int("Succeeded", succeeded).Msg("batch complete")
	}

	// One coarse invalidation per run; per-ticker invalidation would churn
	// the screen cache thousands of times for the same effect.
	bulk.cache.InvalidateMatching(ctx, kvcache.ScreenPrefix)

	runLogger.Info().Int("Succeeded", summary.Succeeded).Int("Failed", summary.Failed).
		Msg("bulk refresh finished")

	return summary, nil
}

// RetryFailed drains up to limit pending entries from the retry queue
// through the same refresh path. Tickers that fail again have their retry
// count incremented and move to permanent_failure at the limit.
func (bulk *BulkRefresher) RetryFailed(ctx context.Context, limit int) (succeeded int, failed int, err error) {
	pending, err := bulk.store.PendingFailedTickers(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	limiter := rate.NewLimiter(rate.Limit(float64(bulk.opts.RatePerMinute)/float64(61)), 1)

	for _, entry := range pending {
		if err := limiter.Wait(ctx); err != nil {
			return succeeded, failed, err
		}

		if refreshErr := bulk.refreshOne(ctx, entry.Ticker, entry.BatchNumber); refreshErr != nil {
			failed++
			log.Warn().Err(refreshErr).Str("Ticker", entry.Ticker).Int("RetryCount", entry.RetryCount).Msg("retry failed")
			continue
		}

		succeeded++
	}

	if succeeded > 0 {
		bulk.cache.InvalidateMatching(ctx, kvcache.ScreenPrefix)
	}

	return succeeded, failed, nil
}

func (bulk *BulkRefresher) refreshOne(ctx context.Context, symbol string, batchNumber int) error {
	symbol = data.NormalizeSymbol(symbol)

	fetchCtx, cancel := context.WithTimeout(ctx, bulk.opts.FetchTimeout)
	fetched, err := bulk.fetcher.FetchFundamentals(fetchCtx, symbol)
	cancel()
	if err != nil {
		if recordErr := bulk.store.RecordFailedTicker(ctx, symbol, batchNumber, err.Error(), bulk.opts.RetryLimit); recordErr != nil {
			log.Error().Err(recordErr).Str("Ticker", symbol).Msg("cannot record failed ticker")
		}
		return err
	}

	fetched.Symbol = symbol
	fetched.LastUpdated = bulk.opts.Now()

	if err := bulk.store.UpsertFundamentals(ctx, fetched); err != nil {
		if recordErr := bulk.store.RecordFailedTicker(ctx, symbol, batchNumber, err.Error(), bulk.opts.RetryLimit); recordErr != nil {
			log.Error().Err(recordErr).Str("Ticker", symbol).Msg("cannot record failed ticker")
		}
		return err
	}

	if err := bulk.store.ClearFailedTicker(ctx, symbol); err != nil {
		log.Error().Err(err).Str("Ticker", symbol).Msg("cannot clear retry queue entry")
	}

	bulk.cache.Delete(ctx, kvcache.FundamentalsKey(symbol))

	return nil
}

func batchTickers(tickers []string, size int) [][]string {
	batches := make([][]string, 0, (len(tickers)+size-1)/size)
	for start := 0; start < len(tickers); start += size {
		end := min(start+size, len(tickers))
		batches = append(batches, tickers[start:end])
	}
	return batches
}
