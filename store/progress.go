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
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// Batch statuses recorded in population_progress.
const (
	BatchInProgress = "in_progress"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// Failed ticker statuses. A pending ticker is eligible for automatic retry;
// a permanent failure is excluded until manually reset.
const (
	FailurePending   = "pending"
	FailureRetrying  = "retrying"
	FailurePermanent = "permanent_failure"
)

// FailedTicker is one entry in the retry queue maintained by the bulk
// population job.
type FailedTicker struct {
	Ticker       string    `db:"ticker"`
	BatchNumber  int       `db:"batch_number"`
	ErrorMessage string    `db:"error_message"`
	RetryCount   int       `db:"retry_count"`
	LastAttempt  time.Time `db:"last_attempt"`
	Status       string    `db:"status"`
}

// StartBatch records that a population batch is in progress. Restarting a
// batch resets its status and timestamps.
func (myStore *Store) StartBatch(ctx context.Context, batchNumber int, tickers []string) error {
	_, err := myStore.Pool.Exec(ctx, `INSERT INTO population_progress (
		"batch_number", "ticker_list", "start_time", "status"
	) VALUES ($1, $2, now(), $3)
	ON CONFLICT (batch_number) DO UPDATE SET
		ticker_list = EXCLUDED.ticker_list,
		start_time = EXCLUDED.start_time,
		end_time = NULL,
		status = EXCLUDED.status,
		error_message = NULL,
		records_inserted = 0`, batchNumber, tickers, BatchInProgress)
	if err != nil {
		return fmt.Errorf("start batch %d: %w", batchNumber, err)
	}
	return nil
}

// CompleteBatch marks a population batch as finished.
func (myStore *Store) CompleteBatch(ctx context.Context, batchNumber int, recordsInserted int) error {
	_, err := myStore.Pool.Exec(ctx, `UPDATE population_progress SET
		status = $2, end_time = now(), records_inserted = $3
	WHERE batch_number = $1`, batchNumber, BatchCompleted, recordsInserted)
	if err != nil {
		return fmt.Errorf("complete batch %d: %w", batchNumber, err)
	}
	return nil
}

// FailBatch marks a population batch as failed with its error message.
func (myStore *Store) FailBatch(ctx context.Context, batchNumber int, message string) error {
	_, err := myStore.Pool.Exec(ctx, `UPDATE population_progress SET
		status = $2, end_time = now(), error_message = $3
	WHERE batch_number = $1`, batchNumber, BatchFailed, message)
	if err != nil {
		return fmt.Errorf("fail batch %d: %w", batchNumber, err)
	}
	return nil
}

// CompletedBatches returns the batch numbers that finished successfully so a
// restarted population run can skip them.
func (myStore *Store) CompletedBatches(ctx context.Context) (map[int]bool, error) {
	numbers := make([]int, 0, 64)
	err := pgxscan.Select(ctx, myStore.Pool, &numbers,
		`SELECT batch_number FROM population_progress WHERE status = $1`, BatchCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed batches: %w", err)
	}

	completed := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		completed[n] = true
	}
	return completed, nil
}

// RecordFailedTicker adds a ticker to the retry queue or increments its retry
// count. Once the count reaches retryLimit the ticker moves to
// permanent_failure and is no longer returned by PendingFailedTickers.
func (myStore *Store) RecordFailedTicker(ctx context.Context, symbol string, batchNumber int, message string, retryLimit int) error {
	_, err := myStore.Pool.Exec(ctx, `INSERT INTO failed_tickers (
		"ticker", "batch_number", "error_message", "retry_count", "last_attempt", "status"
	) VALUES ($1, $2, $3, 0, now(), $4)
	ON CONFLICT (ticker) DO UPDATE SET
		batch_number = EXCLUDED.batch_number,
		error_message = EXCLUDED.error_message,
		retry_count = failed_tickers.retry_count + 1,
		last_attempt = now(),
		status = CASE WHEN failed_tickers.retry_count + 1 >= $5
			THEN '`+FailurePermanent+`' ELSE '`+FailurePending+`' END`,
		symbol, batchNumber, message, FailurePending, retryLimit)
	if err != nil {
		return fmt.Errorf("record failed ticker %s: %w", symbol, err)
	}
	return nil
}

// ClearFailedTicker removes a ticker from the retry queue after a successful
// refresh.
func (myStore *Store) ClearFailedTicker(ctx context.Context, symbol string) error {
	_, err := myStore.Pool.Exec(ctx, `DELETE FROM failed_tickers WHERE ticker = $1`, symbol)
	if err != nil {
		return fmt.Errorf("clear failed ticker %s: %w", symbol, err)
	}
	return nil
}

// PendingFailedTickers returns retry-queue entries that have not been
// promoted to permanent failure, oldest attempt first.
func (myStore *Store) PendingFailedTickers(ctx context.Context, limit int) ([]*FailedTicker, error) {
	failed := make([]*FailedTicker, 0, limit)
	err := pgxscan.Select(ctx, myStore.Pool, &failed,
		`SELECT ticker, batch_number, coalesce(error_message, '') AS error_message,
retry_count, last_attempt, status
FROM failed_tickers WHERE status = $1
ORDER BY last_attempt ASC LIMIT $2`, FailurePending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending failed tickers: %w", err)
	}
	return failed, nil
}

// ResetFailedTicker moves a permanently failed ticker back to pending with a
// zero retry count. This is the manual escape hatch for tickers that failed
// past the retry limit.
func (myStore *Store) ResetFailedTicker(ctx context.Context, symbol string) error {
	tag, err := myStore.Pool.Exec(ctx, `UPDATE failed_tickers SET
		status = $2, retry_count = 0
	WHERE ticker = $1`, symbol, FailurePending)
	if err != nil {
		return fmt.Errorf("reset failed ticker %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
