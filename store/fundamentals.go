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

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
)

const fundamentalsColumns = `t.symbol, coalesce(t.name, '') AS name,
f.pe_ratio, f.forward_pe, f.peg_ratio, f.price_to_book, f.price_to_sales, f.ev_to_ebitda,
f.eps, f.profit_margin, f.operating_margin, f.roe, f.roa,
f.revenue_growth, f.earnings_growth,
f.debt_to_equity, f.current_ratio, f.quick_ratio,
f.dividend_yield, f.dividend_rate, f.payout_ratio,
f.market_cap, f.volume, f.avg_volume, f.beta,
f.current_price, f.day_change_percent, f.fifty_two_week_high, f.fifty_two_week_low,
f.sector, f.industry, f.additional_data, f.last_updated`

// ListTickers returns every ticker the store knows about, ordered by symbol.
func (myStore *Store) ListTickers(ctx context.Context) ([]*data.Ticker, error) {
	tickers := make([]*data.Ticker, 0, 256)

	err := pgxscan.Select(ctx, myStore.Pool, &tickers,
		`SELECT symbol, coalesce(name, '') AS name, coalesce(exchange, '') AS exchange, created_at
FROM tickers ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	return tickers, nil
}

// GetFundamentals returns the fundamentals row for a canonical ticker symbol,
// or ErrNotFound when the ticker has never been stored.
func (myStore *Store) GetFundamentals(ctx context.Context, symbol string) (*data.Fundamentals, error) {
	record := &data.Fundamentals{}

	sql := fmt.Sprintf(`SELECT %s FROM stock_fundamentals f
JOIN tickers t ON t.id = f.ticker_id
WHERE t.symbol = $1`, fundamentalsColumns)

	err := pgxscan.Get(ctx, myStore.Pool, record, sql, symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get fundamentals for %s: %w", symbol, err)
	}

	return record, nil
}

// UpsertFundamentals writes a fundamentals record, creating the ticker row if
// necessary. Every scalar column and the additional-data bag are overwritten
// on conflict; concurrent upserts for the same ticker resolve atomically at
// the database with the last writer winning.
func (myStore *Store) UpsertFundamentals(ctx context.Context, record *data.Fundamentals) error {
	tx, err := myStore.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error().Err(err).Msg("error committing fundamentals transaction to database")
		}
	}()

	var tickerID int16
	err = tx.QueryRow(ctx, `INSERT INTO tickers ("symbol", "name") VALUES ($1, $2)
ON CONFLICT (symbol) DO UPDATE SET
	name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE tickers.name END
RETURNING id`, record.Symbol, record.Name).Scan(&tickerID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("upsert ticker %s: %w", record.Symbol, err)
	}

	sql := `INSERT INTO stock_fundamentals (
		"ticker_id",
		"pe_ratio",
		"forward_pe",
		"peg_ratio",
		"price_to_book",
		"price_to_sales",
		"ev_to_ebitda",
		"eps",
		"profit_margin",
		"operating_margin",
		"roe",
		"roa",
		"revenue_growth",
		"earnings_growth",
		"debt_to_equity",
		"current_ratio",
		"quick_ratio",
		"dividend_yield",
		"dividend_rate",
		"payout_ratio",
		"market_cap",
		"volume",
		"avg_volume",
		"beta",
		"current_price",
		"day_change_percent",
		"fifty_two_week_high",
		"fifty_two_week_low",
		"sector",
		"industry",
		"additional_data",
		"last_updated"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		$31, $32
	) ON CONFLICT (ticker_id) DO UPDATE SET
		pe_ratio = EXCLUDED.pe_ratio,
		forward_pe = EXCLUDED.forward_pe,
		peg_ratio = EXCLUDED.peg_ratio,
		price_to_book = EXCLUDED.price_to_book,
		price_to_sales = EXCLUDED.price_to_sales,
		ev_to_ebitda = EXCLUDED.ev_to_ebitda,
		eps = EXCLUDED.eps,
		profit_margin = EXCLUDED.profit_margin,
		operating_margin = EXCLUDED.operating_margin,
		roe = EXCLUDED.roe,
		roa = EXCLUDED.roa,
		revenue_growth = EXCLUDED.revenue_growth,
		earnings_growth = EXCLUDED.earnings_growth,
		debt_to_equity = EXCLUDED.debt_to_equity,
		current_ratio = EXCLUDED.current_ratio,
		quick_ratio = EXCLUDED.quick_ratio,
		dividend_yield = EXCLUDED.dividend_yield,
		dividend_rate = EXCLUDED.dividend_rate,
		payout_ratio = EXCLUDED.payout_ratio,
		market_cap = EXCLUDED.market_cap,
		volume = EXCLUDED.volume,
		avg_volume = EXCLUDED.avg_volume,
		beta = EXCLUDED.beta,
		current_price = EXCLUDED.current_price,
		day_change_percent = EXCLUDED.day_change_percent,
		fifty_two_week_high = EXCLUDED.fifty_two_week_high,
		fifty_two_week_low = EXCLUDED.fifty_two_week_low,
		sector = EXCLUDED.sector,
		industry = EXCLUDED.industry,
		additional_data = EXCLUDED.additional_data,
		last_updated = EXCLUDED.last_updated`

	_, err = tx.Exec(ctx, sql,
		tickerID,
		record.PERatio,
		record.ForwardPE,
		record.PEGRatio,
		record.PriceToBook,
		record.PriceToSales,
		record.EVToEBITDA,
		record.EPS,
		record.ProfitMargin,
		record.OperatingMargin,
		record.ROE,
		record.ROA,
		record.RevenueGrowth,
		record.EarningsGrowth,
		record.DebtToEquity,
		record.CurrentRatio,
		record.QuickRatio,
		record.DividendYield,
		record.DividendRate,
		record.PayoutRatio,
		record.MarketCap,
		record.Volume,
		record.AvgVolume,
		record.Beta,
		record.CurrentPrice,
		record.DayChangePercent,
		record.FiftyTwoWeekHigh,
		record.FiftyTwoWeekLow,
		record.Sector,
		record.Industry,
		record.AdditionalData,
		record.LastUpdated,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		log.Error().Err(err).Str("Ticker", record.Symbol).Msg("save fundamentals to DB failed")
		return fmt.Errorf("upsert fundamentals for %s: %w", record.Symbol, err)
	}

	return nil
}
