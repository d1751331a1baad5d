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

// Package store is the PostgreSQL persistence layer. It owns the durable
// copy of tickers, fundamentals, and price history, and the durable queues
// used by the bulk population job. Tickers are keyed internally by a smallint
// surrogate id to shrink foreign keys; every exported method accepts and
// returns plain symbols.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownField is returned when a caller names a column outside the
	// whitelist for the operation.
	ErrUnknownField = errors.New("unknown field")
)

// DefaultQueryTimeout bounds screening queries so pathological predicate
// combinations over a large ticker universe cannot run unbounded.
const DefaultQueryTimeout = 30 * time.Second

type Store struct {
	DBUrl string

	// QueryTimeout bounds screen and facet queries. Zero means
	// DefaultQueryTimeout.
	QueryTimeout time.Duration

	Pool *pgxpool.Pool
}

// Connect opens the connection pool if it is not already open. Every
// connection carries a server-side statement timeout matching the query
// timeout, so a runaway screen is cancelled in postgres as well as at the
// client.
func (myStore *Store) Connect(ctx context.Context) error {
	if myStore.Pool != nil {
		return nil
	}

	cfg, err := pgxpool.ParseConfig(myStore.DBUrl)
	if err != nil {
		return err
	}
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(myStore.queryTimeout().Milliseconds(), 10)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	myStore.Pool = pool

	return nil
}

// Close the database pool
func (myStore *Store) Close() {
	myStore.Pool.Close()
}

// New creates a store and verifies the database is reachable.
func New(ctx context.Context, dbURL string) (*Store, error) {
	myStore := &Store{DBUrl: dbURL}
	if err := myStore.Connect(ctx); err != nil {
		return nil, err
	}

	if err := myStore.Pool.Ping(ctx); err != nil {
		return nil, err
	}

	return myStore, nil
}

func (myStore *Store) queryTimeout() time.Duration {
	if myStore.QueryTimeout > 0 {
		return myStore.QueryTimeout
	}
	return DefaultQueryTimeout
}
