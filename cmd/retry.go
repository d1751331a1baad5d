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
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/resolver"
	"github.com/stocksift/stocksift/store"
)

var (
	retryLimit int
	retryList  bool
	retryReset string
)

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Drain the failed-ticker queue through the refresh path",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myStore := openStore(ctx)
		defer myStore.Close()

		if retryReset != "" {
			symbol := data.NormalizeSymbol(retryReset)
			if err := myStore.ResetFailedTicker(ctx, symbol); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "%s: not in the retry queue\n", symbol)
					os.Exit(1)
				}
				log.Fatal().Err(err).Str("Ticker", symbol).Msg("cannot reset retry queue entry")
			}
			log.Info().Str("Ticker", symbol).Msg("retry queue entry reset to pending")
			return
		}

		if retryList {
			pending, err := myStore.PendingFailedTickers(ctx, retryLimit)
			if err != nil {
				log.Fatal().Err(err).Msg("cannot read retry queue")
			}

			if len(pending) == 0 {
				fmt.Println("retry queue is empty")
				return
			}

			fmt.Printf("%-10s %-6s %-10s %s\n", "Ticker", "Batch", "Retries", "Error")
			for _, entry := range pending {
				fmt.Printf("%-10s %-6d %-10d %s\n", entry.Ticker, entry.BatchNumber, entry.RetryCount, entry.ErrorMessage)
			}
			return
		}

		cache := openCache(ctx)
		defer cache.Close()

		bulk := resolver.NewBulkRefresher(myStore, cache, newFetcher(), resolver.BulkOptions{
			RatePerMinute: viper.GetInt("tiingo.rate_limit"),
			RetryLimit:    viper.GetInt("refresh.retry_limit"),
		})

		succeeded, failed, err := bulk.RetryFailed(ctx, retryLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("retry run aborted")
		}

		log.Info().Int("Succeeded", succeeded).Int("Failed", failed).Msg("retry run complete")
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)

	retryCmd.Flags().IntVar(&retryLimit, "limit", 100, "maximum queue entries to process")
	retryCmd.Flags().BoolVar(&retryList, "list", false, "list pending queue entries instead of retrying them")
	retryCmd.Flags().StringVar(&retryReset, "reset", "", "move the given ticker back to pending, clearing its retry count")
}
