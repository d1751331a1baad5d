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
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/stocksift/stocksift/db"
)

type initSettings struct {
	DB struct {
		URL string `toml:"url"`
	} `toml:"db"`
	Cache struct {
		RedisURL string `toml:"redis_url"`
	} `toml:"cache"`
	Tiingo struct {
		APIKey    string `toml:"api_key"`
		RateLimit int    `toml:"rate_limit"`
	} `toml:"tiingo"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		settings := initSettings{}
		settings.Tiingo.RateLimit = 50

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&settings.DB.URL).
					Validate(func(dsn string) error {
						_, err := pgx.ParseConfig(dsn)
						return err
					}),

				huh.NewInput().
					Title("Provide a redis URL for caching, or leave blank to run without redis (redis://[user[:password]@]host:port[/db])").
					Value(&settings.Cache.RedisURL),
			),

			huh.NewGroup(
				huh.NewInput().
					Title("Enter your tiingo API key:").
					Value(&settings.Tiingo.APIKey),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering database settings")
		}

		log.Info().Msg("creating database tables")

		// run migration
		dbURL := strings.Replace(settings.DB.URL, "postgres://", "pgx5://", -1)
		err = db.Migrate(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("database tables created")

		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configFN := filepath.Join(home, ".stocksift.toml")

		configData, err := toml.Marshal(settings)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal settings to TOML")
		}

		if err := os.WriteFile(configFN, configData, 0600); err != nil {
			log.Fatal().Err(err).Str("ConfigFN", configFN).Msg("could not write config file")
		}

		log.Info().Str("ConfigFN", configFN).Msg("wrote configuration file")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
