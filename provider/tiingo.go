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
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/stocksift/stocksift/data"
	"golang.org/x/time/rate"
)

const tiingoBaseURL = "https://api.tiingo.com"

// Tiingo fetches fundamentals and end-of-day prices from the tiingo.com REST
// API. Requests are throttled with a shared limiter sized from the account's
// requests-per-minute allowance.
type Tiingo struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewTiingo creates a Tiingo client. rateLimit is the maximum number of
// requests per minute; values <= 0 fall back to the free-tier allowance.
func NewTiingo(apiKey string, rateLimit int) *Tiingo {
	if rateLimit <= 0 {
		rateLimit = 50
	}

	return &Tiingo{
		client: resty.New().
			SetBaseURL(tiingoBaseURL).
			SetQueryParam("token", apiKey),
		limiter: rate.NewLimiter(rate.Limit(float64(rateLimit)/float64(61)), 1),
	}
}

func (tiingo *Tiingo) Name() string {
	return "tiingo"
}

type tiingoMeta struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	ExchangeCode string `json:"exchangeCode"`
	Description  string `json:"description"`
}

type tiingoDailyMetrics struct {
	Date           string   `json:"date"`
	MarketCap      *float64 `json:"marketCap"`
	EnterpriseVal  *float64 `json:"enterpriseVal"`
	PERatio        *float64 `json:"peRatio"`
	PBRatio        *float64 `json:"pbRatio"`
	TrailingPEG1Y  *float64 `json:"trailingPEG1Y"`
	EPS            *float64 `json:"epsDil"`
	ProfitMargin   *float64 `json:"profitMargin"`
	ROE            *float64 `json:"roe"`
	ROA            *float64 `json:"roa"`
	DebtToEquity   *float64 `json:"debtEquity"`
	CurrentRatio   *float64 `json:"currentRatio"`
	DividendYield  *float64 `json:"divYield"`
	PayoutRatio    *float64 `json:"payoutRatio"`
	RevenueGrowth  *float64 `json:"revenueQoQ"`
	EarningsGrowth *float64 `json:"epsQoQ"`
	Beta           *float64 `json:"beta"`
	Sector         *string  `json:"sector"`
	Industry       *string  `json:"industry"`
}

type tiingoEod struct {
	Date   string  `json:"date"`
	Open   float64 `json:"adjOpen"`
	High   float64 `json:"adjHigh"`
	Low    float64 `json:"adjLow"`
	Close  float64 `json:"adjClose"`
	Volume int64   `json:"adjVolume"`
}

// FetchFundamentals retrieves ticker metadata plus the most recent daily
// fundamentals row and normalizes them into a Fundamentals record. Metrics
// tiingo does not publish are left nil.
func (tiingo *Tiingo) FetchFundamentals(ctx context.Context, symbol string) (*data.Fundamentals, error) {
	if err := tiingo.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	meta := tiingoMeta{}
	resp, err := tiingo.client.R().
		SetContext(ctx).
		SetResult(&meta).
		Get(fmt.Sprintf("/tiingo/daily/%s", symbol))
	if err != nil {
		return nil, classifyRestyError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, symbol)
	}
	if resp.StatusCode() >= 300 {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("Ticker", symbol).Msg("tiingo returned an invalid HTTP response for ticker metadata")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	if err := tiingo.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	metrics := make([]tiingoDailyMetrics, 0, 1)
	resp, err = tiingo.client.R().
		SetContext(ctx).
		SetResult(&metrics).
		Get(fmt.Sprintf("/tiingo/fundamentals/%s/daily", symbol))
	if err != nil {
		return nil, classifyRestyError(err)
	}
	if resp.StatusCode() >= 300 && resp.StatusCode() != http.StatusNotFound {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("Ticker", symbol).Msg("tiingo returned an invalid HTTP response for daily fundamentals")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	if meta.Ticker == "" {
		return nil, fmt.Errorf("%w: empty metadata payload for %s", ErrMalformed, symbol)
	}

	record := &data.Fundamentals{
		Symbol: data.NormalizeSymbol(meta.Ticker),
		Name:   meta.Name,
		AdditionalData: map[string]any{
			"exchange":    meta.ExchangeCode,
			"description": meta.Description,
		},
	}

	if len(metrics) > 0 {
		// rows arrive oldest first
		latest := metrics[len(metrics)-1]

		record.PERatio = latest.PERatio
		record.PriceToBook = latest.PBRatio
		record.PEGRatio = latest.TrailingPEG1Y
		record.EPS = latest.EPS
		record.ProfitMargin = latest.ProfitMargin
		record.ROE = latest.ROE
		record.ROA = latest.ROA
		record.DebtToEquity = latest.DebtToEquity
		record.CurrentRatio = latest.CurrentRatio
		record.DividendYield = latest.DividendYield
		record.PayoutRatio = latest.PayoutRatio
		record.RevenueGrowth = latest.RevenueGrowth
		record.EarningsGrowth = latest.EarningsGrowth
		record.Beta = latest.Beta
		record.Sector = latest.Sector
		record.Industry = latest.Industry

		if latest.MarketCap != nil {
			marketCap := int64(*latest.MarketCap)
			record.MarketCap = &marketCap
		}
		if latest.EnterpriseVal != nil {
			record.AdditionalData["enterprise_value"] = *latest.EnterpriseVal
		}
		record.AdditionalData["metrics_date"] = latest.Date
	}

	return record, nil
}

// FetchPriceBars retrieves adjusted daily OHLCV bars for the symbol between
// from and to inclusive.
func (tiingo *Tiingo) FetchPriceBars(ctx context.Context, symbol string, from time.Time, to time.Time) ([]data.PriceBar, error) {
	if err := tiingo.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	quotes := make([]tiingoEod, 0, 256)
	resp, err := tiingo.client.R().
		SetContext(ctx).
		SetResult(&quotes).
		SetQueryParam("startDate", from.Format("2006-01-02")).
		SetQueryParam("endDate", to.Format("2006-01-02")).
		Get(fmt.Sprintf("/tiingo/daily/%s/prices", symbol))
	if err != nil {
		return nil, classifyRestyError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, symbol)
	}
	if resp.StatusCode() >= 300 {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("Ticker", symbol).Msg("tiingo returned an invalid HTTP response for EOD prices")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	bars := make([]data.PriceBar, 0, len(quotes))
	for _, quote := range quotes {
		date, err := time.Parse(time.RFC3339, quote.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse date %q", ErrMalformed, quote.Date)
		}

		bars = append(bars, data.PriceBar{
			Date:   date.UTC().Truncate(24 * time.Hour),
			Open:   quote.Open,
			High:   quote.High,
			Low:    quote.Low,
			Close:  quote.Close,
			Volume: quote.Volume,
		})
	}

	return bars, nil
}

// classifyRestyError tags a transport-level failure as ErrUnavailable while
// preserving the underlying error chain, so context deadline expiry is still
// visible through errors.Is.
func classifyRestyError(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
