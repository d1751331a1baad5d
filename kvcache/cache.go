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

// Package kvcache provides the expiring key/value cache that fronts the
// fundamentals store and memoizes screen results. The cache is a disposable
// accelerator: implementations never surface errors to callers. A failed read
// behaves as a miss and a failed write is dropped, so the system stays
// correct with the cache degraded or absent.
package kvcache

import (
	"context"
	"time"
)

// Key prefixes shared by the resolver and the screening engine. Screen pages
// are invalidated coarsely by prefix whenever fundamentals change.
const (
	FundamentalsPrefix = "fundamentals:"
	ScreenPrefix       = "screen:"
	FacetsPrefix       = "facets:"
)

// FundamentalsKey returns the cache key for a canonical ticker symbol.
func FundamentalsKey(symbol string) string {
	return FundamentalsPrefix + symbol
}

// FacetsKey returns the cache key for a facet field listing.
func FacetsKey(field string) string {
	return FacetsPrefix + field
}

// Cache is an expiring key/value store. Entries past their TTL read as
// misses; an expired entry is indistinguishable from an absent one.
type Cache interface {
	// Get returns the value stored at key, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores value at key, overwriting any existing entry and resetting
	// its TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes key if present.
	Delete(ctx context.Context, key string)

	// InvalidateMatching removes every entry whose key begins with prefix.
	InvalidateMatching(ctx context.Context, prefix string)

	// Close releases any connections held by the cache.
	Close()
}
