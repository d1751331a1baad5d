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
package store

import (
	"testing"

	"github.com/stocksift/stocksift/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestBuildScreenWhereNoConditions(t *testing.T) {
	where, args := buildScreenWhere(data.FilterSpec{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildScreenWhereSinglePredicate(t *testing.T) {
	where, args := buildScreenWhere(data.FilterSpec{MinPE: float64Ptr(5)})
	assert.Equal(t, " WHERE f.pe_ratio >= $1", where)
	assert.Equal(t, []any{5.0}, args)
}

func TestBuildScreenWhereCombinesWithAnd(t *testing.T) {
	where, args := buildScreenWhere(data.FilterSpec{
		MinPE:        float64Ptr(5),
		MaxPE:        float64Ptr(30),
		MinMarketCap: int64Ptr(1_000_000_000),
		Sectors:      []string{"Energy", "Technology"},
	})

	assert.Equal(t,
		" WHERE f.pe_ratio >= $1 AND f.pe_ratio <= $2 AND f.market_cap >= $3 AND f.sector = ANY($4)",
		where)
	require.Len(t, args, 4)
	assert.Equal(t, []string{"Energy", "Technology"}, args[3])
}

func TestBuildScreenWhereAllPredicates(t *testing.T) {
	where, args := buildScreenWhere(data.FilterSpec{
		MinPE:            float64Ptr(5),
		MaxPE:            float64Ptr(30),
		MinMarketCap:     int64Ptr(1),
		MaxMarketCap:     int64Ptr(2),
		Sectors:          []string{"Energy"},
		Industries:       []string{"Banks"},
		MinDividendYield: float64Ptr(0.01),
		MaxDebtToEquity:  float64Ptr(1.5),
		MinPrice:         float64Ptr(1),
		MaxPrice:         float64Ptr(500),
	})

	assert.Contains(t, where, "f.industry = ANY($6)")
	assert.Contains(t, where, "f.dividend_yield >= $7")
	assert.Contains(t, where, "f.debt_to_equity <= $8")
	assert.Contains(t, where, "f.current_price >= $9")
	assert.Contains(t, where, "f.current_price <= $10")
	assert.Len(t, args, 10)
}

func TestBuildScreenOrder(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		want      string
	}{
		{"default descending", "market_cap", data.SortDesc, " ORDER BY f.market_cap DESC NULLS LAST, t.symbol ASC"},
		{"ascending", "pe_ratio", data.SortAsc, " ORDER BY f.pe_ratio ASC NULLS LAST, t.symbol ASC"},
		{"symbol sort has no tiebreak", "ticker", data.SortAsc, " ORDER BY t.symbol ASC"},
		{"unknown column falls back", "nonsense", data.SortDesc, " ORDER BY f.market_cap DESC NULLS LAST, t.symbol ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause := buildScreenOrder(data.FilterSpec{SortBy: tt.sortBy, SortOrder: tt.sortOrder})
			assert.Equal(t, tt.want, clause)
		})
	}
}
