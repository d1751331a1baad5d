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

// Package screener turns a structured filter into one bounded, sorted,
// paginated query over the ticker universe, memoizing whole result pages by
// the canonical form of the filter. Screening reads whatever the store
// holds; it never triggers upstream refreshes, so a screen is cheap even
// when half the universe is stale.
package screener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
)

// ErrInvalidFilter is returned for filter input that cannot be safely
// normalized, such as an unknown facet field.
var ErrInvalidFilter = errors.New("invalid filter")

// Facet fields the engine can list distinct values for.
const (
	FacetSector   = "sector"
	FacetIndustry = "industry"
)

// Store is the slice of the persistence layer screening needs.
type Store interface {
	QueryFundamentals(ctx context.Context, spec data.FilterSpec) ([]*data.Fundamentals, int, error)
	DistinctValues(ctx context.Context, field string) ([]string, error)
}

// Options tune an Engine. Zero values select the noted defaults.
type Options struct {
	// ResultTTL is the cache lifetime of a screen page; defaults to 1h.
	ResultTTL time.Duration

	// FacetTTL is the cache lifetime of a facet listing; defaults to 24h.
	// Facet values change only when new sectors or industries appear, so
	// they outlive screen pages.
	FacetTTL time.Duration
}

func (opts Options) withDefaults() Options {
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = time.Hour
	}
	if opts.FacetTTL <= 0 {
		opts.FacetTTL = 24 * time.Hour
	}
	return opts
}

// Engine executes screens against the store with page-level memoization.
type Engine struct {
	store Store
	cache kvcache.Cache
	opts  Options
}

func New(myStore Store, cache kvcache.Cache, opts Options) *Engine {
	return &Engine{
		store: myStore,
		cache: cache,
		opts:  opts.withDefaults(),
	}
}

// Screen returns one page of tickers matching the filter along with the
// total number of matches before pagination. The filter is canonicalized
// first, so logically identical filters share a cache entry regardless of
// how their predicate lists were ordered. An empty result set is a valid
// page, and an offset past the end returns an empty page with the correct
// total.
func (engine *Engine) Screen(ctx context.Context, spec data.FilterSpec) (*data.ScreenResult, error) {
	canonical := spec.Canonicalize()
	cacheKey := canonical.CacheKey()

	if raw, ok := engine.cache.Get(ctx, cacheKey); ok {
		result := &data.ScreenResult{}
		if err := json.Unmarshal(raw, result); err == nil {
			return result, nil
		}
		engine.cache.Delete(ctx, cacheKey)
	}

	page, total, err := engine.store.QueryFundamentals(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("screen query: %w", err)
	}

	result := &data.ScreenResult{
		Page:  page,
		Total: total,
	}

	engine.cacheResult(ctx, cacheKey, result, engine.opts.ResultTTL)

	return result, nil
}

// Facets returns the distinct non-null values of sector or industry, sorted
// lexicographically, for populating filter choices.
func (engine *Engine) Facets(ctx context.Context, field string) ([]string, error) {
	if field != FacetSector && field != FacetIndustry {
		return nil, fmt.Errorf("%w: unknown facet field %q", ErrInvalidFilter, field)
	}

	cacheKey := kvcache.FacetsKey(field)

	if raw, ok := engine.cache.Get(ctx, cacheKey); ok {
		values := []string{}
		if err := json.Unmarshal(raw, &values); err == nil {
			return values, nil
		}
		engine.cache.Delete(ctx, cacheKey)
	}

	values, err := engine.store.DistinctValues(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("facet query for %s: %w", field, err)
	}

	encoded, err := json.Marshal(values)
	if err == nil {
		engine.cache.Set(ctx, cacheKey, encoded, engine.opts.FacetTTL)
	}

	return values, nil
}

func (engine *Engine) cacheResult(ctx context.Context, key string, result *data.ScreenResult, ttl time.Duration) {
	encoded, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("cannot encode screen result for cache")
		return
	}

	engine.cache.Set(ctx, key, encoded, ttl)
}
