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
package data

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/goccy/go-json"
)

const (
	// MaxPageSize caps the limit of a single screen page.
	MaxPageSize = 500

	// DefaultPageSize is used when a filter does not set a limit.
	DefaultPageSize = 50

	DefaultSortField = "market_cap"
	SortAsc          = "asc"
	SortDesc         = "desc"
)

// sortFields is the whitelist of columns a screen may order by. A sort field
// outside this list falls back to DefaultSortField rather than erroring.
var sortFields = []string{
	"market_cap",
	"pe_ratio",
	"dividend_yield",
	"current_price",
	"ticker",
}

// SortFieldAllowed reports whether field is a valid screen sort column.
func SortFieldAllowed(field string) bool {
	return slices.Contains(sortFields, field)
}

// FilterSpec describes a stock screen: inclusive range predicates over
// numeric fundamentals, set-membership predicates over sector and industry,
// a sort column and direction, and a pagination window. Absent (nil)
// predicates impose no constraint.
type FilterSpec struct {
	MinPE        *float64 `json:"min_pe"`
	MaxPE        *float64 `json:"max_pe"`
	MinMarketCap *int64   `json:"min_market_cap"`
	MaxMarketCap *int64   `json:"max_market_cap"`

	Sectors    []string `json:"sectors"`
	Industries []string `json:"industries"`

	MinDividendYield *float64 `json:"min_dividend_yield"`
	MaxDebtToEquity  *float64 `json:"max_debt_to_equity"`

	MinPrice *float64 `json:"min_price"`
	MaxPrice *float64 `json:"max_price"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`

	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// Canonicalize returns a normalized copy of the filter suitable for use as a
// cache key and as a query input. Set-membership lists are sorted and
// de-duplicated so that logically identical filters submitted with different
// list orderings compare equal. Inverted ranges are swapped, the limit is
// clamped into [1, MaxPageSize], negative offsets are floored at zero, and
// sort settings outside the whitelist fall back to the defaults. The receiver
// is not modified.
func (spec FilterSpec) Canonicalize() FilterSpec {
	canonical := spec

	canonical.Sectors = normalizeSet(spec.Sectors)
	canonical.Industries = normalizeSet(spec.Industries)

	if canonical.MinPE != nil && canonical.MaxPE != nil && *canonical.MinPE > *canonical.MaxPE {
		canonical.MinPE, canonical.MaxPE = canonical.MaxPE, canonical.MinPE
	}
	if canonical.MinMarketCap != nil && canonical.MaxMarketCap != nil && *canonical.MinMarketCap > *canonical.MaxMarketCap {
		canonical.MinMarketCap, canonical.MaxMarketCap = canonical.MaxMarketCap, canonical.MinMarketCap
	}
	if canonical.MinPrice != nil && canonical.MaxPrice != nil && *canonical.MinPrice > *canonical.MaxPrice {
		canonical.MinPrice, canonical.MaxPrice = canonical.MaxPrice, canonical.MinPrice
	}

	if canonical.Limit < 1 {
		canonical.Limit = DefaultPageSize
	}
	if canonical.Limit > MaxPageSize {
		canonical.Limit = MaxPageSize
	}
	if canonical.Offset < 0 {
		canonical.Offset = 0
	}

	if !SortFieldAllowed(canonical.SortBy) {
		canonical.SortBy = DefaultSortField
	}
	if canonical.SortOrder != SortAsc && canonical.SortOrder != SortDesc {
		canonical.SortOrder = SortDesc
	}

	return canonical
}

// CacheKey returns a deterministic key for the canonical form of the filter.
// Two filters that canonicalize to the same value always produce the same
// key.
func (spec FilterSpec) CacheKey() string {
	canonical := spec.Canonicalize()

	encoded, err := json.Marshal(canonical)
	if err != nil {
		// FilterSpec contains only marshalable fields
		panic(err)
	}

	sum := sha256.Sum256(encoded)
	return "screen:" + hex.EncodeToString(sum[:16])
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, len(values))
	copy(out, values)
	slices.Sort(out)
	return slices.Compact(out)
}
