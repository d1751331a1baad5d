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
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/healthcheck"
	"github.com/stocksift/stocksift/resolver"
)

var (
	populateResume     bool
	populateBatchSize  int
	populateCreateMon  bool
	populateSchedule   string
	populatePauseCheck bool
)

// universeRow is one line of the ticker universe CSV. Only the ticker column
// is required; extra columns are ignored.
type universeRow struct {
	Ticker string `csv:"ticker"`
	Name   string `csv:"name,omitempty"`
}

func loadUniverse(fn string) []string {
	fh, err := os.Open(fn)
	if err != nil {
		log.Fatal().Err(err).Str("FileName", fn).Msg("cannot open ticker universe")
	}
	defer fh.Close()

	rows := []*universeRow{}
	if err := gocsv.UnmarshalFile(fh, &rows); err != nil {
		log.Fatal().Err(err).Str("FileName", fn).Msg("cannot parse ticker universe")
	}

	seen := map[string]bool{}
	tickers := make([]string, 0, len(rows))
	for _, row := range rows {
		symbol := data.NormalizeSymbol(row.Ticker)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		tickers = append(tickers, symbol)
	}

	return tickers
}

// healthcheckPing returns a completion callback for the configured
// healthchecks.io slot, or nil when none is configured.
func healthcheckPing(checkID string) func() {
	if checkID == "" {
		return nil
	}

	return func() {
		if err := healthcheck.Ping(checkID); err != nil {
			log.Error().Err(err).Str("CheckID", checkID).Msg("healthcheck ping failed")
		}
	}
}

// populateCmd represents the populate command
var populateCmd = &cobra.Command{
	Use:   "populate [universe.csv]",
	Short: "Bulk load fundamentals for a ticker universe",
	Long: `Populate fetches fundamentals for every ticker in the universe file and
saves them to the database. Without a universe file, the tickers already in
the database are refreshed instead. Progress is checkpointed in batches so an
interrupted run can be resumed with --resume. Tickers that fail land in a
retry queue drained by the retry command.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		checkID := viper.GetString("healthchecks.populate_check_id")

		if populatePauseCheck {
			if checkID == "" {
				log.Fatal().Msg("no healthchecks.io monitor is configured")
			}
			if err := healthcheck.Pause(checkID); err != nil {
				log.Fatal().Err(err).Str("CheckID", checkID).Msg("cannot pause healthcheck monitor")
			}
			log.Info().Str("CheckID", checkID).Msg("healthcheck monitor paused")
			return
		}

		if populateCreateMon && checkID == "" {
			var err error
			checkID, err = healthcheck.Create("stocksift populate", []string{"stocksift"}, populateSchedule)
			if err != nil {
				log.Fatal().Err(err).Msg("cannot create healthcheck monitor")
			}
			log.Info().Str("CheckID", checkID).Msg("created healthcheck monitor; save it as healthchecks.populate_check_id in the config file")
		}

		myStore := openStore(ctx)
		defer myStore.Close()

		var tickers []string
		if len(args) == 1 {
			tickers = loadUniverse(args[0])
		} else {
			known, err := myStore.ListTickers(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("cannot list tickers")
			}
			for _, ticker := range known {
				tickers = append(tickers, ticker.Symbol)
			}
		}

		if len(tickers) == 0 {
			log.Fatal().Msg("ticker universe is empty")
		}

		cache := openCache(ctx)
		defer cache.Close()

		bulk := resolver.NewBulkRefresher(myStore, cache, newFetcher(), resolver.BulkOptions{
			BatchSize:     populateBatchSize,
			RatePerMinute: viper.GetInt("tiingo.rate_limit"),
			RetryLimit:    viper.GetInt("refresh.retry_limit"),
			Ping:          healthcheckPing(checkID),
		})

		summary, err := bulk.Run(ctx, tickers, populateResume)
		if err != nil {
			log.Fatal().Err(err).Str("RunID", summary.RunID.String()).Msg("population run aborted")
		}

		log.Info().
			Str("RunID", summary.RunID.String()).
			Dur("Elapsed", summary.EndTime.Sub(summary.StartTime)).
			Int("TotalTickers", summary.TotalTickers).
			Int("CompletedBatches", summary.CompletedBatches).
			Int("SkippedBatches", summary.SkippedBatches).
			Int("FailedBatches", summary.FailedBatches).
			Int("Succeeded", summary.Succeeded).
			Int("Failed", summary.Failed).
			Msg("population run complete")
	},
}

func init() {
	rootCmd.AddCommand(populateCmd)

	populateCmd.Flags().BoolVar(&populateResume, "resume", false, "skip batches completed by an earlier run")
	populateCmd.Flags().IntVar(&populateBatchSize, "batch-size", 100, "tickers per checkpointed batch")
	populateCmd.Flags().BoolVar(&populateCreateMon, "create-check", false, "create a healthchecks.io monitor for this job if none is configured")
	populateCmd.Flags().StringVar(&populateSchedule, "check-schedule", "0 22 * * 1-5", "cron schedule reported to the healthchecks.io monitor")
	populateCmd.Flags().BoolVar(&populatePauseCheck, "pause-check", false, "pause the configured healthchecks.io monitor and exit")
}
