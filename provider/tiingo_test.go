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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestTiingo(serverURL string) *Tiingo {
	return &Tiingo{
		client:  resty.New().SetBaseURL(serverURL).SetQueryParam("token", "test-token"),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func jsonResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestFetchFundamentals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tiingo/daily/AAPL":
			jsonResponse(w, `{"ticker": "aapl", "name": "Apple Inc", "exchangeCode": "NASDAQ", "description": "Consumer electronics"}`)
		case "/tiingo/fundamentals/AAPL/daily":
			jsonResponse(w, `[
				{"date": "2024-06-13", "peRatio": 31.0, "marketCap": 2.9e12},
				{"date": "2024-06-14", "peRatio": 32.5, "marketCap": 3.0e12,
				 "pbRatio": 48.1, "divYield": 0.0045, "debtEquity": 1.8,
				 "sector": "Technology", "industry": "Consumer Electronics"}
			]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	record, err := tiingo.FetchFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", record.Symbol)
	assert.Equal(t, "Apple Inc", record.Name)

	// the most recent metrics row wins
	require.NotNil(t, record.PERatio)
	assert.Equal(t, 32.5, *record.PERatio)
	require.NotNil(t, record.MarketCap)
	assert.Equal(t, int64(3.0e12), *record.MarketCap)
	require.NotNil(t, record.Sector)
	assert.Equal(t, "Technology", *record.Sector)
	require.NotNil(t, record.DebtToEquity)
	assert.Equal(t, 1.8, *record.DebtToEquity)

	// metrics tiingo does not publish stay nil
	assert.Nil(t, record.EPS)

	assert.Equal(t, "NASDAQ", record.AdditionalData["exchange"])
	assert.Equal(t, "2024-06-14", record.AdditionalData["metrics_date"])
}

func TestFetchFundamentalsUnknownTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	_, err := tiingo.FetchFundamentals(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownTicker)
	assert.False(t, IsTransient(err))
}

func TestFetchFundamentalsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	_, err := tiingo.FetchFundamentals(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsTransient(err))
}

func TestFetchFundamentalsEmptyMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tiingo/daily/AAPL" {
			jsonResponse(w, `{}`)
			return
		}
		jsonResponse(w, `[]`)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	_, err := tiingo.FetchFundamentals(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, IsTransient(err))
}

func TestFetchFundamentalsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		jsonResponse(w, `{}`)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tiingo.FetchFundamentals(ctx, "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTransient(err))
}

func TestFetchPriceBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tiingo/daily/AAPL/prices", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-06-14", r.URL.Query().Get("endDate"))

		jsonResponse(w, `[
			{"date": "2024-06-13T00:00:00.000Z", "adjOpen": 214.7, "adjHigh": 216.8, "adjLow": 211.6, "adjClose": 214.2, "adjVolume": 97862700},
			{"date": "2024-06-14T00:00:00.000Z", "adjOpen": 213.9, "adjHigh": 215.2, "adjLow": 211.3, "adjClose": 212.5, "adjVolume": 70122700}
		]`)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	bars, err := tiingo.FetchPriceBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 214.7, bars[0].Open)
	assert.Equal(t, int64(97862700), bars[0].Volume)
	assert.Equal(t, 212.5, bars[1].Close)
}

func TestFetchPriceBarsMalformedDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `[{"date": "June 14th", "adjClose": 212.5}]`)
	}))
	defer server.Close()

	tiingo := newTestTiingo(server.URL)

	_, err := tiingo.FetchPriceBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, ErrMalformed)
}
