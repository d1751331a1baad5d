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

// Package resolver answers the question "what are the fundamentals for this
// ticker right now" by walking cache, database, and upstream provider in
// order. It also hosts the bulk refresh job the scheduled loader invokes.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/provider"
	"github.com/stocksift/stocksift/store"
)

// ErrNotFound is returned when a ticker has no fundamentals in the cache,
// the store, or upstream. It is an outcome, not a failure; store
// connectivity problems surface as ordinary wrapped errors instead.
var ErrNotFound = errors.New("ticker not found")

// Store is the slice of the persistence layer a single-ticker resolution
// needs.
type Store interface {
	GetFundamentals(ctx context.Context, symbol string) (*data.Fundamentals, error)
	UpsertFundamentals(ctx context.Context, record *data.Fundamentals) error
}

// Options tune a Resolver. Zero values select the defaults noted on each
// field.
type Options struct {
	// StaleThreshold is the maximum record age before a refresh; defaults
	// to DefaultStaleThreshold.
	StaleThreshold time.Duration

	// CacheTTL bounds how long a resolved record is served from cache
	// without consulting the store; defaults to 24h.
	CacheTTL time.Duration

	// FetchTimeout bounds each upstream call; defaults to 30s.
	FetchTimeout time.Duration

	// Now is the clock; defaults to time.Now. Tests fix it.
	Now func() time.Time
}

func (opts Options) withDefaults() Options {
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Resolver coordinates cache, store, freshness policy, and upstream fetch
// for single-ticker lookups. Construct one explicitly and share it between
// request handlers; it holds no mutable state of its own.
type Resolver struct {
	store   Store
	cache   kvcache.Cache
	fetcher provider.Fetcher
	opts    Options
}

func New(myStore Store, cache kvcache.Cache, fetcher provider.Fetcher, opts Options) *Resolver {
	return &Resolver{
		store:   myStore,
		cache:   cache,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
	}
}

// Resolve returns the fundamentals record for a ticker.
//
// The walk is: cache (served even if stale, bounded by the cache TTL), then
// store guarded by the freshness policy, then a single upstream fetch. A
// fetch failure with a stale row on hand serves the stale row rather than
// failing; a fetch failure with nothing on hand is ErrNotFound. At most one
// upstream fetch happens per call regardless of which paths are taken.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (*data.Fundamentals, error) {
	symbol = data.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNotFound)
	}

	cacheKey := kvcache.FundamentalsKey(symbol)

	if raw, ok := r.cache.Get(ctx, cacheKey); ok {
		record := &data.Fundamentals{}
		if err := json.Unmarshal(raw, record); err == nil {
			return record, nil
		}
		// Undecodable entries are dropped and resolved as a miss.
		r.cache.Delete(ctx, cacheKey)
	}

	stored, err := r.store.GetFundamentals(ctx, symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("read fundamentals for %s: %w", symbol, err)
	}

	if stored != nil && !IsStale(stored.LastUpdated, r.opts.StaleThreshold, r.opts.Now()) {
		r.cacheRecord(ctx, cacheKey, stored)
		return stored, nil
	}

	// Row absent or stale: one upstream fetch.
	fetched, fetchErr := r.fetch(ctx, symbol)
	if fetchErr != nil {
		if stored != nil {
			// Serve the stale row rather than failing the request. The row
			// is deliberately not cached so the next resolution retries the
			// refresh.
			log.Warn().Err(fetchErr).Str("Ticker", symbol).Msg("upstream fetch failed; serving stale fundamentals")
			return stored, nil
		}

		if provider.IsTransient(fetchErr) || errors.Is(fetchErr, provider.ErrUnknownTicker) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, fetchErr
	}

	fetched.Symbol = symbol
	fetched.LastUpdated = r.opts.Now()

	if err := r.store.UpsertFundamentals(ctx, fetched); err != nil {
		return nil, fmt.Errorf("persist fundamentals for %s: %w", symbol, err)
	}

	r.cacheRecord(ctx, cacheKey, fetched)

	// Screen pages may now contain outdated values for this ticker. Dropping
	// every screen entry is coarse but correctness is bounded by the TTL
	// either way.
	r.cache.InvalidateMatching(ctx, kvcache.ScreenPrefix)

	return fetched, nil
}

func (r *Resolver) fetch(ctx context.Context, symbol string) (*data.Fundamentals, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	return r.fetcher.FetchFundamentals(fetchCtx, symbol)
}

func (r *Resolver) cacheRecord(ctx context.Context, key string, record *data.Fundamentals) {
	encoded, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("Ticker", record.Symbol).Msg("cannot encode fundamentals for cache")
		return
	}

	r.cache.Set(ctx, key, encoded, r.opts.CacheTTL)
}
