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
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
)

// UpsertPriceBars writes a batch of daily bars for a ticker. (ticker, date)
// is the primary key, so refetching an existing range overwrites in place
// instead of duplicating rows. The ticker row is created if it does not
// exist.
func (myStore *Store) UpsertPriceBars(ctx context.Context, symbol string, bars []data.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := myStore.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error().Err(err).Msg("error committing price bar transaction to database")
		}
	}()

	var tickerID int16
	err = tx.QueryRow(ctx, `INSERT INTO tickers ("symbol") VALUES ($1)
ON CONFLICT (symbol) DO UPDATE SET symbol = EXCLUDED.symbol
RETURNING id`, symbol).Scan(&tickerID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("upsert ticker %s: %w", symbol, err)
	}

	sql := `INSERT INTO daily_ohlcv (
		"ticker_id",
		"event_date",
		"open",
		"high",
		"low",
		"close",
		"volume"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	) ON CONFLICT (ticker_id, event_date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume`

	for _, bar := range bars {
		if _, err := tx.Exec(ctx, sql, tickerID, bar.Date, bar.Open, bar.High,
			bar.Low, bar.Close, bar.Volume); err != nil {
			_ = tx.Rollback(ctx)
			log.Error().Err(err).Str("Ticker", symbol).Time("Date", bar.Date).Msg("error saving price bar to database")
			return fmt.Errorf("upsert price bar for %s: %w", symbol, err)
		}
	}

	return nil
}

// GetPriceBars returns the stored daily bars for a ticker between from and
// to inclusive, ordered by date.
func (myStore *Store) GetPriceBars(ctx context.Context, symbol string, from time.Time, to time.Time) ([]data.PriceBar, error) {
	bars := make([]data.PriceBar, 0, 256)

	err := pgxscan.Select(ctx, myStore.Pool, &bars,
		`SELECT p.event_date, p.open, p.high, p.low, p.close, p.volume
FROM daily_ohlcv p
JOIN tickers t ON t.id = p.ticker_id
WHERE t.symbol = $1 AND p.event_date >= $2 AND p.event_date <= $3
ORDER BY p.event_date`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get price bars for %s: %w", symbol, err)
	}

	return bars, nil
}

// LatestPriceBarDate returns the date of the most recent stored bar for a
// ticker, or ErrNotFound when no bars exist. Callers use it to decide
// whether a price refresh is due.
func (myStore *Store) LatestPriceBarDate(ctx context.Context, symbol string) (time.Time, error) {
	var latest time.Time

	err := myStore.Pool.QueryRow(ctx,
		`SELECT p.event_date FROM daily_ohlcv p
JOIN tickers t ON t.id = p.ticker_id
WHERE t.symbol = $1
ORDER BY p.event_date DESC LIMIT 1`, symbol).Scan(&latest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("latest price bar for %s: %w", symbol, err)
	}

	return latest, nil
}
