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
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/penny-vault/pvmetrics/validate"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var asJSON bool

type scoreReport struct {
	Ticker    string                        `json:"ticker"`
	Variant   string                        `json:"variant"`
	Score     float64                       `json:"score"`
	Aggregate *data.CompanyAggregateMetrics `json:"aggregate"`
	Periods   []*metrics.PeriodReport       `json:"periods"`
}

var scoreCmd = &cobra.Command{
	Use:   "score source",
	Short: "Compute metrics and the score for a company without saving them",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		submissions, err := loadSubmissions(ctx, args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Source", args[0]).Msg("could not load source")
		}

		reports := make([]*scoreReport, 0, len(submissions))
		for _, submission := range submissions {
			if err := validate.Submission(submission); err != nil {
				logSubmitError(err, submission)
				os.Exit(1)
			}

			assembly, err := metrics.Assemble(submission.Periods, metrics.Options{
				Variant:                metrics.SelectVariant(submission.Sector),
				FcfDefinition:          fcfDefinition(),
				WorkingCapitalBaseline: submission.LastYearWorkingCapital,
			})
			if err != nil {
				log.Fatal().Err(err).Str("Ticker", submission.Ticker).Msg("could not compute metrics")
			}

			if !asJSON {
				printAssembly(submission.Ticker, assembly)
				continue
			}

			aggregate := metrics.Sanitized(assembly.Aggregate)
			reports = append(reports, &scoreReport{
				Ticker:    submission.Ticker,
				Variant:   assembly.Variant.String(),
				Score:     aggregate.Score,
				Aggregate: aggregate,
				Periods:   assembly.Report(),
			})
		}

		if asJSON {
			out, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode report")
			}
			fmt.Println(string(out))
		}
	},
}

func printAssembly(ticker string, assembly *metrics.Assembly) {
	headline := lipgloss.NewStyle().
		Bold(true).
		Foreground(scoreColor(assembly.Aggregate.Score)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 2).
		Render(fmt.Sprintf("%s  score %.2f", ticker, metrics.Round2(assembly.Aggregate.Score)))
	fmt.Println(headline)

	r, _ := glamour.NewTermRenderer(
		// detect background color and pick either the default dark or light theme
		glamour.WithAutoStyle(),
		// wrap output at specific width (default is 80)
		glamour.WithWordWrap(100),
	)

	out, err := r.Render(library.RenderAssembly(ticker, assembly))
	if err != nil {
		log.Fatal().Err(err).Msg("could not render report")
	}

	fmt.Print(out)
}

func scoreColor(score float64) lipgloss.Color {
	switch {
	case score >= 75:
		return lipgloss.Color("42")
	case score >= 40:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("196")
	}
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	addSourceFlags(scoreCmd)
	scoreCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
}
