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
	"github.com/stocksift/stocksift/screener"
)

// facetsCmd represents the facets command
var facetsCmd = &cobra.Command{
	Use:       "facets [sector|industry]",
	Short:     "List the distinct values of a classification field",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{screener.FacetSector, screener.FacetIndustry},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myStore := openStore(ctx)
		defer myStore.Close()

		cache := openCache(ctx)
		defer cache.Close()

		engine := newEngine(myStore, cache)

		values, err := engine.Facets(ctx, args[0])
		if err != nil {
			if errors.Is(err, screener.ErrInvalidFilter) {
				fmt.Fprintf(os.Stderr, "%s\n", err.Error())
				os.Exit(1)
			}
			log.Fatal().Err(err).Str("Field", args[0]).Msg("facet listing failed")
		}

		for _, value := range values {
			fmt.Println(value)
		}
	},
}

func init() {
	rootCmd.AddCommand(facetsCmd)
}
