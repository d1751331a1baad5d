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
	"github.com/stocksift/stocksift/data"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/screener"
	"github.com/stocksift/stocksift/store"
)

var (
	screenMinPE         float64
	screenMaxPE         float64
	screenMinMarketCap  int64
	screenMaxMarketCap  int64
	screenSectors       []string
	screenIndustries    []string
	screenMinDivYield   float64
	screenMaxDebtEquity float64
	screenMinPrice      float64
	screenMaxPrice      float64
	screenOffset        int
	screenLimit         int
	screenSortBy        string
	screenSortOrder     string
)

func newEngine(myStore *store.Store, cache kvcache.Cache) *screener.Engine {
	return screener.New(myStore, cache, screener.Options{
		ResultTTL: viper.GetDuration("cache.screen_ttl"),
		FacetTTL:  viper.GetDuration("cache.facet_ttl"),
	})
}

// screenFilter assembles a FilterSpec from the flags the user actually set;
// an untouched flag leaves its predicate absent.
func screenFilter(cmd *cobra.Command) data.FilterSpec {
	spec := data.FilterSpec{
		Sectors:    screenSectors,
		Industries: screenIndustries,
		Offset:     screenOffset,
		Limit:      screenLimit,
		SortBy:     screenSortBy,
		SortOrder:  screenSortOrder,
	}

	flags := cmd.Flags()
	if flags.Changed("min-pe") {
		spec.MinPE = &screenMinPE
	}
	if flags.Changed("max-pe") {
		spec.MaxPE = &screenMaxPE
	}
	if flags.Changed("min-market-cap") {
		spec.MinMarketCap = &screenMinMarketCap
	}
	if flags.Changed("max-market-cap") {
		spec.MaxMarketCap = &screenMaxMarketCap
	}
	if flags.Changed("min-dividend-yield") {
		spec.MinDividendYield = &screenMinDivYield
	}
	if flags.Changed("max-debt-to-equity") {
		spec.MaxDebtToEquity = &screenMaxDebtEquity
	}
	if flags.Changed("min-price") {
		spec.MinPrice = &screenMinPrice
	}
	if flags.Changed("max-price") {
		spec.MaxPrice = &screenMaxPrice
	}

	return spec
}

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Filter the stock universe by fundamental criteria",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myStore := openStore(ctx)
		defer myStore.Close()

		cache := openCache(ctx)
		defer cache.Close()

		engine := newEngine(myStore, cache)

		result, err := engine.Screen(ctx, screenFilter(cmd))
		if err != nil {
			if errors.Is(err, screener.ErrInvalidFilter) {
				fmt.Fprintf(os.Stderr, "invalid filter: %s\n", err.Error())
				os.Exit(1)
			}
			log.Fatal().Err(err).Msg("screen failed")
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			log.Fatal().Err(err).Msg("cannot encode screen result")
		}
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().Float64Var(&screenMinPE, "min-pe", 0, "minimum trailing P/E ratio")
	screenCmd.Flags().Float64Var(&screenMaxPE, "max-pe", 0, "maximum trailing P/E ratio")
	screenCmd.Flags().Int64Var(&screenMinMarketCap, "min-market-cap", 0, "minimum market capitalization in dollars")
	screenCmd.Flags().Int64Var(&screenMaxMarketCap, "max-market-cap", 0, "maximum market capitalization in dollars")
	screenCmd.Flags().StringSliceVar(&screenSectors, "sector", nil, "sectors to include (repeatable)")
	screenCmd.Flags().StringSliceVar(&screenIndustries, "industry", nil, "industries to include (repeatable)")
	screenCmd.Flags().Float64Var(&screenMinDivYield, "min-dividend-yield", 0, "minimum dividend yield")
	screenCmd.Flags().Float64Var(&screenMaxDebtEquity, "max-debt-to-equity", 0, "maximum debt to equity ratio")
	screenCmd.Flags().Float64Var(&screenMinPrice, "min-price", 0, "minimum share price")
	screenCmd.Flags().Float64Var(&screenMaxPrice, "max-price", 0, "maximum share price")
	screenCmd.Flags().IntVar(&screenOffset, "offset", 0, "number of matching rows to skip")
	screenCmd.Flags().IntVar(&screenLimit, "limit", data.DefaultPageSize, "maximum rows to return")
	screenCmd.Flags().StringVar(&screenSortBy, "sort-by", data.DefaultSortField, "column to order results by")
	screenCmd.Flags().StringVar(&screenSortOrder, "sort-order", data.SortDesc, "sort direction (asc or desc)")
}
