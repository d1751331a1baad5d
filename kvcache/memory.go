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
package kvcache

import (
	"context"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache used when no redis server is configured and
// by tests. Expiry is checked on read; expired entries are removed lazily.
type Memory struct {
	entries *haxmap.Map[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: haxmap.New[string, memoryEntry](),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates an in-process cache that reads time from clock.
// Tests use a fixed clock to exercise expiry deterministically.
func NewMemoryWithClock(clock func() time.Time) *Memory {
	cache := NewMemory()
	cache.now = clock
	return cache
}

func (cache *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := cache.entries.Get(key)
	if !ok {
		return nil, false
	}

	if cache.now().After(entry.expiresAt) {
		cache.entries.Del(key)
		return nil, false
	}

	return entry.value, true
}

func (cache *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	cache.entries.Set(key, memoryEntry{
		value:     value,
		expiresAt: cache.now().Add(ttl),
	})
}

func (cache *Memory) Delete(_ context.Context, key string) {
	cache.entries.Del(key)
}

func (cache *Memory) InvalidateMatching(_ context.Context, prefix string) {
	stale := make([]string, 0, 16)
	cache.entries.ForEach(func(key string, _ memoryEntry) bool {
		if strings.HasPrefix(key, prefix) {
			stale = append(stale, key)
		}
		return true
	})

	if len(stale) > 0 {
		cache.entries.Del(stale...)
	}
}

func (cache *Memory) Close() {}

// Len returns the number of entries currently stored, including entries past
// their TTL that have not been read since expiring.
func (cache *Memory) Len() int {
	return int(cache.entries.Len())
}
