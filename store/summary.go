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
	"time"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NumTickers returns the total count of tickers in the store.
func (myStore *Store) NumTickers(ctx context.Context) (int, error) {
	count := 0
	err := myStore.Pool.QueryRow(ctx, "SELECT count(*) FROM tickers").Scan(&count)
	return count, err
}

// NumFundamentals returns the count of tickers with a fundamentals record.
func (myStore *Store) NumFundamentals(ctx context.Context) (int, error) {
	count := 0
	err := myStore.Pool.QueryRow(ctx, "SELECT count(*) FROM stock_fundamentals").Scan(&count)
	return count, err
}

// NumPriceBars returns the total count of daily bars in the store.
func (myStore *Store) NumPriceBars(ctx context.Context) (int, error) {
	count := 0
	err := myStore.Pool.QueryRow(ctx, "SELECT count(*) FROM daily_ohlcv").Scan(&count)
	return count, err
}

// LastUpdated returns the most recent fundamentals refresh time across all
// tickers.
func (myStore *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	var lastUpdated time.Time
	err := myStore.Pool.QueryRow(ctx,
		"SELECT coalesce(max(last_updated), '0001-01-01'::timestamptz) FROM stock_fundamentals").Scan(&lastUpdated)
	if err != nil {
		return time.Time{}, err
	}
	return lastUpdated, nil
}

// Summary returns a description of the store contents in markdown
func (myStore *Store) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString("# stocksift library\n## Details\n\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString(fmt.Sprintf("Database: %s\n\n", myStore.DBUrl)); err != nil {
		return "", err
	}

	numTickers, err := myStore.NumTickers(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Tickers Tracked: %d\n", numTickers)); err != nil {
		return "", err
	}

	numFundamentals, err := myStore.NumFundamentals(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Fundamentals Records: %d\n", numFundamentals)); err != nil {
		return "", err
	}

	numBars, err := myStore.NumPriceBars(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Price Bars: %d\n\n", numBars)); err != nil {
		return "", err
	}

	lastUpdated, err := myStore.LastUpdated(ctx)
	if err != nil {
		return "", err
	}

	if lastUpdated.Year() > 1 {
		if _, err := builder.WriteString(fmt.Sprintf("Last updated: %s\n", timeago.English.Format(lastUpdated))); err != nil {
			return "", err
		}
	} else {
		if _, err := builder.WriteString("Last updated: never\n"); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}
