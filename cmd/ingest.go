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
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/healthcheck"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/provider"
	"github.com/penny-vault/pvmetrics/telemetry"
	"github.com/penny-vault/pvmetrics/validate"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	inputFormat string
	ticker      string
	sector      string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest source...",
	Short: "Compute and save metrics for the companies in each source",
	Long: `The ingest sub-command reads statement facts from each source (a file, "-" for
stdin, or an http(s) URL), computes every metric and saves the results. Companies
are saved concurrently; a company that fails validation or cannot be saved does
not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		checkID := viper.GetString("healthchecks.check_id")
		if err := healthcheck.Start(ctx, checkID); err != nil {
			log.Warn().Err(err).Msg("healthcheck start ping failed")
		}

		if addr := viper.GetString("metrics.addr"); addr != "" {
			telemetry.Serve(ctx, addr)
		}

		myLibrary, pipeline, closeAll := openPipeline(ctx)
		defer closeAll()

		var submissions []*data.Submission
		for _, source := range args {
			loaded, err := loadSubmissions(ctx, source)
			if err != nil {
				log.Fatal().Err(err).Str("Source", source).Msg("could not load source")
			}
			submissions = append(submissions, loaded...)
		}

		concurrency := viper.GetInt("ingest.concurrency")
		if concurrency <= 0 {
			concurrency = myLibrary.MaxConns()
		}

		limiter := rate.NewLimiter(rate.Limit(viper.GetFloat64("ingest.rate")), 1)

		var saved, failed atomic.Int64
		startTime := time.Now()

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(concurrency)

		for _, submission := range submissions {
			group.Go(func() error {
				if err := limiter.Wait(groupCtx); err != nil {
					return err
				}

				companyID, err := pipeline.Submit(groupCtx, submission)
				if err != nil {
					failed.Add(1)
					logSubmitError(err, submission)
					return nil
				}

				saved.Add(1)
				log.Debug().Int64("CompanyID", companyID).Str("Ticker", submission.Ticker).Msg("company saved")
				return nil
			})
		}

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("ingest stopped early")
		}

		summary := fmt.Sprintf("saved %d companies, %d failed in %s", saved.Load(), failed.Load(), time.Since(startTime).Round(time.Millisecond))
		log.Info().Int64("Saved", saved.Load()).Int64("Failed", failed.Load()).Dur("RunTime", time.Since(startTime)).Msg("ingest finished")

		if failed.Load() > 0 {
			if err := healthcheck.Fail(ctx, checkID, summary); err != nil {
				log.Warn().Err(err).Msg("healthcheck fail ping failed")
			}
			closeAll()
			os.Exit(1)
		}

		if err := healthcheck.Success(ctx, checkID, summary); err != nil {
			log.Warn().Err(err).Msg("healthcheck ping failed")
		}
	},
}

// loadSubmissions reads a source with the loader for --format or its
// extension and applies the --ticker and --sector overrides
func loadSubmissions(ctx context.Context, source string) ([]*data.Submission, error) {
	var (
		loader provider.Loader
		err    error
	)

	if inputFormat != "" {
		loader, err = provider.Get(inputFormat)
	} else {
		loader, err = provider.ForSource(source)
	}
	if err != nil {
		return nil, err
	}

	payload, err := provider.Read(ctx, source)
	if err != nil {
		return nil, err
	}

	submissions, err := loader.Load(ctx, payload)
	if err != nil {
		return nil, err
	}

	if (ticker != "" || sector != "") && len(submissions) > 1 {
		return nil, fmt.Errorf("--ticker and --sector need a source with a single company, %q has %d", source, len(submissions))
	}

	for _, submission := range submissions {
		if ticker != "" {
			submission.Ticker = strings.ToUpper(ticker)
		}
		if sector != "" {
			submission.Sector = sector
		}
	}

	return submissions, nil
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&inputFormat, "format", "", fmt.Sprintf("input format (%s); detected from the extension by default", strings.Join(provider.Names(), ", ")))
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker of the company when the source does not name it")
	cmd.Flags().StringVar(&sector, "sector", "", "sector of the company when the source does not name it")
}

func logSubmitError(err error, submission *data.Submission) {
	var validationErrs validate.Errors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			log.Error().Str("Ticker", submission.Ticker).Str("Field", fieldErr.Field).Interface("Value", fieldErr.Value).Msg(fieldErr.Message)
		}
		return
	}

	event := log.Error().Err(err).Str("Ticker", submission.Ticker).Int64("CompanyID", submission.CompanyID)

	var storageErr *library.StorageError
	if errors.As(err, &storageErr) {
		event = event.Str("Op", storageErr.Op).AnErr("Cause", storageErr.Err)
	}

	event.Msg("could not save company")
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	addSourceFlags(ingestCmd)

	ingestCmd.Flags().Int("concurrency", 0, "companies saved in parallel (default is the size of the connection pool)")
	if err := viper.BindPFlag("ingest.concurrency", ingestCmd.Flags().Lookup("concurrency")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for concurrency failed")
	}

	ingestCmd.Flags().Float64("rate", 10, "maximum companies saved per second")
	if err := viper.BindPFlag("ingest.rate", ingestCmd.Flags().Lookup("rate")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for rate failed")
	}

	ingestCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while ingesting")
	if err := viper.BindPFlag("metrics.addr", ingestCmd.Flags().Lookup("metrics-addr")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for metrics-addr failed")
	}
}
