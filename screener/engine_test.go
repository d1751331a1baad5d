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
package screener

import (
	"context"
	"testing"
	"time"

	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	universe []*data.Fundamentals
	facets   map[string][]string

	queries      int
	facetQueries int
	lastSpec     data.FilterSpec
}

func (myStore *fakeStore) QueryFundamentals(_ context.Context, spec data.FilterSpec) ([]*data.Fundamentals, int, error) {
	myStore.queries++
	myStore.lastSpec = spec

	total := len(myStore.universe)
	if spec.Offset >= total {
		return []*data.Fundamentals{}, total, nil
	}

	end := min(spec.Offset+spec.Limit, total)
	return myStore.universe[spec.Offset:end], total, nil
}

func (myStore *fakeStore) DistinctValues(_ context.Context, field string) ([]string, error) {
	myStore.facetQueries++
	return myStore.facets[field], nil
}

func makeUniverse(symbols ...string) []*data.Fundamentals {
	universe := make([]*data.Fundamentals, 0, len(symbols))
	for _, symbol := range symbols {
		universe = append(universe, &data.Fundamentals{Symbol: symbol})
	}
	return universe
}

func newTestEngine(myStore Store) (*Engine, *kvcache.Memory) {
	cache := kvcache.NewMemory()
	return New(myStore, cache, Options{}), cache
}

func TestScreenReturnsPageAndTotal(t *testing.T) {
	myStore := &fakeStore{universe: makeUniverse("AAPL", "MSFT", "GOOG")}
	engine, _ := newTestEngine(myStore)

	result, err := engine.Screen(context.Background(), data.FilterSpec{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Page, 2)
	assert.Equal(t, "AAPL", result.Page[0].Symbol)
}

func TestScreenCanonicalizesBeforeQuerying(t *testing.T) {
	myStore := &fakeStore{universe: makeUniverse("AAPL")}
	engine, _ := newTestEngine(myStore)

	_, err := engine.Screen(context.Background(), data.FilterSpec{
		Sectors: []string{"Technology", "Energy", "Technology"},
		Limit:   -5,
		SortBy:  "bogus",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Energy", "Technology"}, myStore.lastSpec.Sectors)
	assert.Equal(t, data.DefaultPageSize, myStore.lastSpec.Limit)
	assert.Equal(t, data.DefaultSortField, myStore.lastSpec.SortBy)
}

func TestScreenMemoizesResultPages(t *testing.T) {
	ctx := context.Background()
	myStore := &fakeStore{universe: makeUniverse("AAPL", "MSFT")}
	engine, _ := newTestEngine(myStore)

	first, err := engine.Screen(ctx, data.FilterSpec{Sectors: []string{"Energy", "Technology"}})
	require.NoError(t, err)
	require.Equal(t, 1, myStore.queries)

	// a logically identical filter with a different list ordering shares the
	// cached page
	second, err := engine.Screen(ctx, data.FilterSpec{Sectors: []string{"Technology", "Energy"}})
	require.NoError(t, err)
	assert.Equal(t, 1, myStore.queries)
	assert.Equal(t, first.Total, second.Total)
	assert.Len(t, second.Page, len(first.Page))
}

func TestScreenEmptyPagePastEnd(t *testing.T) {
	myStore := &fakeStore{universe: makeUniverse("AAPL", "MSFT")}
	engine, _ := newTestEngine(myStore)

	result, err := engine.Screen(context.Background(), data.FilterSpec{Offset: 100})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Empty(t, result.Page)
}

func TestScreenDropsCorruptCacheEntry(t *testing.T) {
	ctx := context.Background()
	myStore := &fakeStore{universe: makeUniverse("AAPL")}
	engine, cache := newTestEngine(myStore)

	spec := data.FilterSpec{}
	cache.Set(ctx, spec.CacheKey(), []byte("not json"), time.Hour)

	result, err := engine.Screen(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, myStore.queries)
}

func TestFacets(t *testing.T) {
	myStore := &fakeStore{facets: map[string][]string{
		FacetSector:   {"Energy", "Technology"},
		FacetIndustry: {"Banks", "Software"},
	}}
	engine, _ := newTestEngine(myStore)

	sectors, err := engine.Facets(context.Background(), FacetSector)
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy", "Technology"}, sectors)

	industries, err := engine.Facets(context.Background(), FacetIndustry)
	require.NoError(t, err)
	assert.Equal(t, []string{"Banks", "Software"}, industries)
}

func TestFacetsMemoized(t *testing.T) {
	ctx := context.Background()
	myStore := &fakeStore{facets: map[string][]string{FacetSector: {"Energy"}}}
	engine, _ := newTestEngine(myStore)

	_, err := engine.Facets(ctx, FacetSector)
	require.NoError(t, err)

	_, err = engine.Facets(ctx, FacetSector)
	require.NoError(t, err)
	assert.Equal(t, 1, myStore.facetQueries)
}

func TestFacetsUnknownField(t *testing.T) {
	engine, _ := newTestEngine(&fakeStore{})

	_, err := engine.Facets(context.Background(), "ceo_name")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
