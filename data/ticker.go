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

import (
	"strings"
	"time"
)

// Ticker identifies a tradeable security. The symbol is the natural key;
// the database assigns a small surrogate id for foreign keys but that id
// never crosses the store boundary.
type Ticker struct {
	Symbol    string    `json:"symbol" db:"symbol"`
	Name      string    `json:"name" db:"name"`
	Exchange  string    `json:"exchange" db:"exchange"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NormalizeSymbol converts a ticker symbol to its canonical form: upper-case
// with surrounding whitespace removed. Every entry point normalizes before
// touching the cache or the database so that "aapl" and "AAPL" resolve to the
// same row and the same cache key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
