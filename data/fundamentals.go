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

import "time"

// Fundamentals is a one-per-ticker snapshot of scalar financial metrics.
// Metric fields are pointers because the upstream provider frequently omits
// values; a nil metric is stored as NULL and never matches a screen
// predicate. Provider fields that have no dedicated column land in
// AdditionalData, which is persisted as a JSONB bag.
type Fundamentals struct {
	Symbol string `json:"symbol" db:"symbol"`
	Name   string `json:"name" db:"name"`

	// Valuation
	PERatio      *float64 `json:"pe_ratio" db:"pe_ratio"`
	ForwardPE    *float64 `json:"forward_pe" db:"forward_pe"`
	PEGRatio     *float64 `json:"peg_ratio" db:"peg_ratio"`
	PriceToBook  *float64 `json:"price_to_book" db:"price_to_book"`
	PriceToSales *float64 `json:"price_to_sales" db:"price_to_sales"`
	EVToEBITDA   *float64 `json:"ev_to_ebitda" db:"ev_to_ebitda"`

	// Profitability
	EPS             *float64 `json:"eps" db:"eps"`
	ProfitMargin    *float64 `json:"profit_margin" db:"profit_margin"`
	OperatingMargin *float64 `json:"operating_margin" db:"operating_margin"`
	ROE             *float64 `json:"roe" db:"roe"`
	ROA             *float64 `json:"roa" db:"roa"`

	// Growth
	RevenueGrowth  *float64 `json:"revenue_growth" db:"revenue_growth"`
	EarningsGrowth *float64 `json:"earnings_growth" db:"earnings_growth"`

	// Financial health
	DebtToEquity *float64 `json:"debt_to_equity" db:"debt_to_equity"`
	CurrentRatio *float64 `json:"current_ratio" db:"current_ratio"`
	QuickRatio   *float64 `json:"quick_ratio" db:"quick_ratio"`

	// Dividends
	DividendYield *float64 `json:"dividend_yield" db:"dividend_yield"`
	DividendRate  *float64 `json:"dividend_rate" db:"dividend_rate"`
	PayoutRatio   *float64 `json:"payout_ratio" db:"payout_ratio"`

	// Size and trading
	MarketCap        *int64   `json:"market_cap" db:"market_cap"`
	Volume           *int64   `json:"volume" db:"volume"`
	AvgVolume        *int64   `json:"avg_volume" db:"avg_volume"`
	Beta             *float64 `json:"beta" db:"beta"`
	CurrentPrice     *float64 `json:"current_price" db:"current_price"`
	DayChangePercent *float64 `json:"day_change_percent" db:"day_change_percent"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high" db:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low" db:"fifty_two_week_low"`

	// Classification
	Sector   *string `json:"sector" db:"sector"`
	Industry *string `json:"industry" db:"industry"`

	// Open-ended provider fields without a dedicated column
	AdditionalData map[string]any `json:"additional_data" db:"additional_data"`

	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// PriceBar is one day of OHLCV data for a ticker. (ticker, date) is unique;
// refetching the same date upserts instead of duplicating.
type PriceBar struct {
	Date   time.Time `json:"date" db:"event_date"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume int64     `json:"volume" db:"volume"`
}

// ScreenResult is one page of screening output along with the count of all
// rows matching the filter before pagination.
type ScreenResult struct {
	Page  []*Fundamentals `json:"results"`
	Total int             `json:"total"`
}
