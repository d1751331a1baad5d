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

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/provider"
	"github.com/stocksift/stocksift/resolver"
	"github.com/stocksift/stocksift/store"
)

func newFetcher() provider.Fetcher {
	return provider.NewTiingo(viper.GetString("tiingo.api_key"), viper.GetInt("tiingo.rate_limit"))
}

func newResolver(myStore *store.Store, cache kvcache.Cache) *resolver.Resolver {
	return resolver.New(myStore, cache, newFetcher(), resolver.Options{
		StaleThreshold: viper.GetDuration("refresh.stale_threshold"),
		CacheTTL:       viper.GetDuration("cache.fundamentals_ttl"),
	})
}

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve ticker...",
	Short: "Look up fundamentals for one or more tickers, refreshing stale records from upstream",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myStore := openStore(ctx)
		defer myStore.Close()

		cache := openCache(ctx)
		defer cache.Close()

		myResolver := newResolver(myStore, cache)

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		exitCode := 0
		for _, symbol := range args {
			record, err := myResolver.Resolve(ctx, symbol)
			if err != nil {
				if errors.Is(err, resolver.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "%s: not found\n", symbol)
					exitCode = 1
					continue
				}
				log.Fatal().Err(err).Str("Ticker", symbol).Msg("resolve failed")
			}

			if err := encoder.Encode(record); err != nil {
				log.Fatal().Err(err).Msg("cannot encode fundamentals")
			}
		}

		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
