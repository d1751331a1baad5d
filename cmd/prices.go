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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/provider"
	"github.com/stocksift/stocksift/store"
)

var (
	pricesDays    int
	pricesRefresh bool
)

// needsPriceRefresh reports whether the stored history for symbol is missing
// the most recent trading sessions. Weekends produce no bars, so a history
// whose latest bar is within three days of now is considered current.
func needsPriceRefresh(ctx context.Context, myStore *store.Store, symbol string, now time.Time) bool {
	latest, err := myStore.LatestPriceBarDate(ctx, symbol)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("Ticker", symbol).Msg("cannot read latest price bar date")
		}
		return true
	}

	return now.Sub(latest) > 72*time.Hour
}

// pricesCmd represents the prices command
var pricesCmd = &cobra.Command{
	Use:   "prices ticker",
	Short: "Show daily price history for a ticker, refreshing it from upstream when out of date",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		symbol := data.NormalizeSymbol(args[0])

		myStore := openStore(ctx)
		defer myStore.Close()

		now := time.Now()
		from := now.AddDate(0, 0, -pricesDays)

		if pricesRefresh || needsPriceRefresh(ctx, myStore, symbol, now) {
			fetcher := newFetcher()

			bars, err := fetcher.FetchPriceBars(ctx, symbol, from, now)
			if err != nil {
				if errors.Is(err, provider.ErrUnknownTicker) {
					fmt.Fprintf(os.Stderr, "%s: not found\n", symbol)
					os.Exit(1)
				}
				log.Fatal().Err(err).Str("Ticker", symbol).Msg("cannot fetch price history")
			}

			if err := myStore.UpsertPriceBars(ctx, symbol, bars); err != nil {
				log.Fatal().Err(err).Str("Ticker", symbol).Msg("cannot save price history")
			}

			log.Info().Str("Ticker", symbol).Int("NumBars", len(bars)).Msg("refreshed price history")
		}

		bars, err := myStore.GetPriceBars(ctx, symbol, from, now)
		if err != nil {
			log.Fatal().Err(err).Str("Ticker", symbol).Msg("cannot read price history")
		}

		if len(bars) == 0 {
			fmt.Fprintf(os.Stderr, "%s: no price history\n", symbol)
			os.Exit(1)
		}

		fmt.Printf("%-12s %10s %10s %10s %10s %12s\n", "Date", "Open", "High", "Low", "Close", "Volume")
		for _, bar := range bars {
			fmt.Printf("%-12s %10.2f %10.2f %10.2f %10.2f %12d\n",
				bar.Date.Format("2006-01-02"), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		}
	},
}

func init() {
	rootCmd.AddCommand(pricesCmd)

	pricesCmd.Flags().IntVar(&pricesDays, "days", 90, "number of calendar days of history to show")
	pricesCmd.Flags().BoolVar(&pricesRefresh, "refresh", false, "fetch from upstream even if the stored history looks current")
}
