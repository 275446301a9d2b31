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
	"strconv"

	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var lastYearWorkingCapital string

var addYearCmd = &cobra.Command{
	Use:   "add-year company-id source",
	Short: "Add a new fiscal year (and refreshed TTM) to a stored company",
	Long: `The add-year sub-command extends a company that is already stored by one annual
period, optionally together with a refreshed trailing-twelve-month period. Metrics
are recomputed over the stored history plus the new periods. When the prior year's
working capital is not stored, pass it with --last-year-working-capital.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		companyID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Str("CompanyID", args[0]).Msg("company id must be an integer")
		}

		submissions, err := loadSubmissions(ctx, args[1])
		if err != nil {
			log.Fatal().Err(err).Str("Source", args[1]).Msg("could not load source")
		}

		if len(submissions) != 1 {
			log.Fatal().Int("NumCompanies", len(submissions)).Msg("add-year expects a single company")
		}

		var baseline *float64
		if lastYearWorkingCapital != "" {
			v := metrics.ParseNumber(lastYearWorkingCapital)
			if !metrics.IsFinite(v) {
				log.Fatal().Str("Value", lastYearWorkingCapital).Msg("could not parse last year working capital")
			}
			baseline = &v
		} else {
			baseline = submissions[0].LastYearWorkingCapital
		}

		_, pipeline, closeAll := openPipeline(ctx)
		defer closeAll()

		if _, err := pipeline.AddYear(ctx, companyID, submissions[0].Periods, baseline); err != nil {
			logSubmitError(err, submissions[0])
			closeAll()
			log.Fatal().Int64("CompanyID", companyID).Msg("year not added")
		}

		log.Info().Int64("CompanyID", companyID).Msg("year added")
	},
}

func init() {
	rootCmd.AddCommand(addYearCmd)

	addSourceFlags(addYearCmd)
	addYearCmd.Flags().StringVar(&lastYearWorkingCapital, "last-year-working-capital", "", "working capital of the year before the new one")
}
