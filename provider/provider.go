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

// Package provider contains clients for upstream market-data services. A
// provider is an opaque fetch-by-ticker capability: rate limited, bounded by
// the caller's context deadline, and allowed to fail. Failures are typed so
// callers can distinguish a ticker the provider does not know from a provider
// that is temporarily unreachable, though the resolver collapses both into
// its serve-stale fallback.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/stocksift/stocksift/data"
)

var (
	// ErrUnavailable indicates a transient upstream failure: network error,
	// rate limiting, or a server-side error status.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrMalformed indicates the provider responded but the payload was
	// empty or could not be decoded.
	ErrMalformed = errors.New("malformed provider response")

	// ErrUnknownTicker indicates the provider does not track the requested
	// symbol.
	ErrUnknownTicker = errors.New("unknown ticker")
)

// Fetcher retrieves normalized market data for a single ticker. Calls block
// until the response arrives, the context deadline passes, or the rate
// limiter rejects the wait. Implementations must tolerate concurrent calls
// for the same ticker.
type Fetcher interface {
	Name() string

	// FetchFundamentals returns a normalized fundamentals record for the
	// symbol. The record's LastUpdated field is left zero; the caller stamps
	// it when persisting.
	FetchFundamentals(ctx context.Context, symbol string) (*data.Fundamentals, error)

	// FetchPriceBars returns daily bars for the symbol between from and to
	// inclusive.
	FetchPriceBars(ctx context.Context, symbol string, from time.Time, to time.Time) ([]data.PriceBar, error)
}

// IsTransient reports whether err is a failure the caller should treat as
// retryable: unavailability, timeout, or a malformed payload. Every failure
// in this class triggers the same serve-stale-or-not-found fallback.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, context.DeadlineExceeded)
}
