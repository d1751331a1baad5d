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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stocksift/stocksift/kvcache"
	"github.com/stocksift/stocksift/store"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stocksift",
	Short: "stocksift maintains and screens a database of stock fundamentals",
	Long: `stocksift is a command line utility for building, refreshing, and
screening a database of stock fundamentals and daily price history.

Fundamentals are fetched on demand from an upstream market-data provider and
cached aggressively: a record younger than the configured staleness threshold
is served from the local database, and repeated lookups within the cache TTL
never touch the database at all. Screens filter the whole ticker universe by
valuation, profitability, dividend, and leverage metrics with full result
pages memoized per filter.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stocksift.toml)")
	rootCmd.PersistentFlags().String("dbUrl", "", "database connection string")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("dbUrl")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for dbUrl failed")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".stocksift" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".stocksift")
	}

	viper.AutomaticEnv() // read in environment variables that match

	viper.SetDefault("tiingo.rate_limit", 50)
	viper.SetDefault("refresh.stale_threshold", "24h")
	viper.SetDefault("refresh.retry_limit", 3)
	viper.SetDefault("cache.fundamentals_ttl", "24h")
	viper.SetDefault("cache.screen_ttl", "1h")
	viper.SetDefault("cache.facet_ttl", "24h")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

// openStore connects to the configured database or exits.
func openStore(ctx context.Context) *store.Store {
	myStore, err := store.New(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	return myStore
}

// openCache connects to the configured redis server, or falls back to the
// in-process cache when none is configured or the server is unreachable.
// The cache is an accelerator; running without one is slower, not wrong.
func openCache(ctx context.Context) kvcache.Cache {
	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return kvcache.NewMemory()
	}

	cache, err := kvcache.NewRedis(ctx, redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unreachable; falling back to in-process cache")
		return kvcache.NewMemory()
	}

	return cache
}
