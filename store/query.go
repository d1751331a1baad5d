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
	"context"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/stocksift/stocksift/data"
)

// sortColumns maps whitelisted sort fields to their SQL columns. The
// canonicalized FilterSpec only carries whitelisted fields, but the map is
// consulted again here so a raw spec cannot inject an arbitrary column.
var sortColumns = map[string]string{
	"market_cap":     "f.market_cap",
	"pe_ratio":       "f.pe_ratio",
	"dividend_yield": "f.dividend_yield",
	"current_price":  "f.current_price",
	"ticker":         "t.symbol",
}

// facetColumns maps facet field names to their SQL columns.
var facetColumns = map[string]string{
	"sector":   "sector",
	"industry": "industry",
}

// buildScreenWhere AND-combines every present predicate into a WHERE clause
// with numbered placeholders. Range predicates are inclusive on both bounds.
// SQL comparison semantics exclude NULL metric values from every range and
// membership predicate, matching the rule that an unknown value never
// matches a filter.
func buildScreenWhere(spec data.FilterSpec) (string, []any) {
	conditions := make([]string, 0, 10)
	args := make([]any, 0, 10)

	addCondition := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if spec.MinPE != nil {
		addCondition("f.pe_ratio >= $%d", *spec.MinPE)
	}
	if spec.MaxPE != nil {
		addCondition("f.pe_ratio <= $%d", *spec.MaxPE)
	}
	if spec.MinMarketCap != nil {
		addCondition("f.market_cap >= $%d", *spec.MinMarketCap)
	}
	if spec.MaxMarketCap != nil {
		addCondition("f.market_cap <= $%d", *spec.MaxMarketCap)
	}
	if len(spec.Sectors) > 0 {
		addCondition("f.sector = ANY($%d)", spec.Sectors)
	}
	if len(spec.Industries) > 0 {
		addCondition("f.industry = ANY($%d)", spec.Industries)
	}
	if spec.MinDividendYield != nil {
		addCondition("f.dividend_yield >= $%d", *spec.MinDividendYield)
	}
	if spec.MaxDebtToEquity != nil {
		addCondition("f.debt_to_equity <= $%d", *spec.MaxDebtToEquity)
	}
	if spec.MinPrice != nil {
		addCondition("f.current_price >= $%d", *spec.MinPrice)
	}
	if spec.MaxPrice != nil {
		addCondition("f.current_price <= $%d", *spec.MaxPrice)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildScreenOrder returns the ORDER BY clause for a canonical spec. Rows
// with a NULL sort value sort last regardless of direction, and the symbol
// breaks ties so pagination is stable.
func buildScreenOrder(spec data.FilterSpec) string {
	column, ok := sortColumns[spec.SortBy]
	if !ok {
		column = sortColumns[data.DefaultSortField]
	}

	direction := "DESC"
	if spec.SortOrder == data.SortAsc {
		direction = "ASC"
	}

	if column == "t.symbol" {
		return fmt.Sprintf(" ORDER BY t.symbol %s", direction)
	}

	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, t.symbol ASC", column, direction)
}

// QueryFundamentals runs a screen against the store: a count of every row
// matching the spec's predicates, then the requested page in the requested
// order. The spec must already be canonical. Both statements share a query
// timeout; an offset past the end of the result set yields an empty page
// with the correct total.
func (myStore *Store) QueryFundamentals(ctx context.Context, spec data.FilterSpec) ([]*data.Fundamentals, int, error) {
	ctx, cancel := context.WithTimeout(ctx, myStore.queryTimeout())
	defer cancel()

	where, args := buildScreenWhere(spec)

	total := 0
	countSQL := "SELECT count(*) FROM stock_fundamentals f JOIN tickers t ON t.id = f.ticker_id" + where
	if err := myStore.Pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count screen rows: %w", err)
	}

	if total == 0 || spec.Offset >= total {
		return []*data.Fundamentals{}, total, nil
	}

	pageSQL := fmt.Sprintf(`SELECT %s FROM stock_fundamentals f
JOIN tickers t ON t.id = f.ticker_id%s%s OFFSET %d LIMIT %d`,
		fundamentalsColumns, where, buildScreenOrder(spec), spec.Offset, spec.Limit)

	page := make([]*data.Fundamentals, 0, spec.Limit)
	if err := pgxscan.Select(ctx, myStore.Pool, &page, pageSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("select screen page: %w", err)
	}

	return page, total, nil
}

// DistinctValues returns the sorted distinct non-null values of a facet
// field. Only sector and industry are valid facet fields.
func (myStore *Store) DistinctValues(ctx context.Context, field string) ([]string, error) {
	column, ok := facetColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	ctx, cancel := context.WithTimeout(ctx, myStore.queryTimeout())
	defer cancel()

	sql := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM stock_fundamentals
WHERE %[1]s IS NOT NULL ORDER BY %[1]s`, column)

	values := make([]string, 0, 16)
	if err := pgxscan.Select(ctx, myStore.Pool, &values, sql); err != nil {
		return nil, fmt.Errorf("distinct %s values: %w", field, err)
	}

	return values, nil
}
