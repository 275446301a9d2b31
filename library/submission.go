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
package library

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvmetrics/cache"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/penny-vault/pvmetrics/telemetry"
	"github.com/penny-vault/pvmetrics/validate"
	"github.com/rs/zerolog"
)

// Conn is a connection checked out of the pool
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

type Acquirer interface {
	Acquire(ctx context.Context) (Conn, error)
}

// Pipeline validates, computes and persists company submissions. Each
// submission is written in a single transaction on a single connection.
type Pipeline struct {
	DB            Acquirer
	History       HistoryReader
	Cache         cache.Invalidator
	FcfDefinition metrics.FcfDefinition
}

const insertCompanySQL = `INSERT INTO companies (ticker, sector) VALUES ($1, $2)
ON CONFLICT (ticker) DO UPDATE SET sector = EXCLUDED.sector, updated_on = now()
RETURNING company_id`

// saved describes what a submission wrote
type saved struct {
	companyID int64
	ticker    string
	variant   metrics.Variant
	rows      map[string]int
	assembly  *metrics.Assembly
}

// Submit validates the submission, computes every metric for the company's
// window and writes the statements, per-period metrics and company metrics.
// It returns the company id, which is newly assigned for new companies.
func (pipeline *Pipeline) Submit(ctx context.Context, submission *data.Submission) (int64, error) {
	start := time.Now()
	subLog := zerolog.Ctx(ctx).With().Str("SubmissionID", uuid.New().String()).Object("Submission", submission).Logger()
	ctx = subLog.WithContext(ctx)

	variantLabel := metrics.SelectVariant(submission.Sector).String()

	if err := validate.Submission(submission); err != nil {
		subLog.Warn().Err(err).Msg("submission rejected")
		telemetry.ObserveSubmission(variantLabel, telemetry.OutcomeInvalid, start)
		return 0, err
	}

	conn, err := pipeline.DB.Acquire(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not acquire database connection")
		telemetry.ObserveSubmission(variantLabel, telemetry.OutcomeFailed, start)
		return 0, storageError("acquire", submission.CompanyID, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not begin transaction")
		telemetry.ObserveSubmission(variantLabel, telemetry.OutcomeFailed, start)
		return 0, storageError("begin", submission.CompanyID, err)
	}

	defer func() {
		// rollback must run even when ctx was cancelled
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				subLog.Error().Err(err).Msg("error rollingback tx")
			}
		}
	}()

	result, err := pipeline.save(ctx, tx, submission)
	if err != nil {
		var validationErrs validate.Errors
		if errors.As(err, &validationErrs) {
			telemetry.ObserveSubmission(variantLabel, telemetry.OutcomeInvalid, start)
			return 0, err
		}

		subLog.Error().Err(err).Msg("could not save submission")
		telemetry.ObserveSubmission(variantLabel, telemetry.OutcomeFailed, start)
		return 0, storageError("save", submission.CompanyID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Int64("CompanyID", result.companyID).Msg("could not commit submission")
		telemetry.ObserveSubmission(result.variant.String(), telemetry.OutcomeFailed, start)
		return 0, storageError("commit", result.companyID, err)
	}

	telemetry.ObserveSubmission(result.variant.String(), telemetry.OutcomeSaved, start)
	numRows := 0
	for table, count := range result.rows {
		telemetry.RowsWritten.WithLabelValues(table).Add(float64(count))
		numRows += count
	}

	subLog.Info().
		Int64("CompanyID", result.companyID).
		Str("Variant", result.variant.String()).
		Int("RowsWritten", numRows).
		Object("Aggregate", result.assembly.Aggregate).
		Dur("Elapsed", time.Since(start)).
		Msg("saved submission")

	pipeline.invalidate(ctx, result.companyID, result.ticker)

	return result.companyID, nil
}

// AddYear extends a stored company by one annual period, optionally with a
// refreshed trailing period. The trailing period is required when the
// company already has one stored. baseline is last year's working capital
// when it is not stored.
func (pipeline *Pipeline) AddYear(ctx context.Context, companyID int64, periods []*data.PeriodFacts, baseline *float64) (int64, error) {
	if companyID == 0 {
		return 0, validate.Errors{{Field: "company_id", Message: "company_id is required"}}
	}

	if _, err := metrics.Classify(periods); err == nil {
		annual := 0
		for _, facts := range periods {
			if !facts.IsTTM() {
				annual++
			}
		}
		if annual != 1 {
			return 0, validate.Errors{{Field: "periods", Value: annual, Message: "exactly one annual period is required"}}
		}
	}

	return pipeline.Submit(ctx, &data.Submission{
		CompanyID:              companyID,
		LastYearWorkingCapital: baseline,
		Periods:                periods,
	})
}

func (pipeline *Pipeline) save(ctx context.Context, tx pgx.Tx, submission *data.Submission) (*saved, error) {
	subLog := zerolog.Ctx(ctx)

	submitted, err := metrics.Classify(submission.Periods)
	if err != nil {
		return nil, err
	}

	result := &saved{
		companyID: submission.CompanyID,
		ticker:    submission.Ticker,
		rows:      make(map[string]int, 5),
	}

	sector := submission.Sector
	window := submitted

	if result.companyID == 0 {
		if err := tx.QueryRow(ctx, insertCompanySQL, submission.Ticker, submission.Sector).Scan(&result.companyID); err != nil {
			subLog.Error().Err(err).Str("SQL", insertCompanySQL).Msg("could not insert company")
			return nil, err
		}
	} else {
		company, err := pipeline.History.Company(ctx, tx, result.companyID)
		if err != nil {
			if errors.Is(err, ErrUnknownCompany) {
				return nil, validate.Errors{{Field: "company_id", Value: result.companyID, Message: err.Error()}}
			}
			return nil, err
		}

		if sector == "" {
			sector = company.Sector
		}
		if result.ticker == "" {
			result.ticker = company.Ticker
		}

		stored, err := pipeline.History.Periods(ctx, tx, result.companyID)
		if err != nil {
			return nil, err
		}

		window = mergeWindow(stored, submitted)
		subLog.Debug().Int("NumStored", len(stored)).Int("WindowSize", len(window)).Msg("merged stored history")

		if errs := windowErrors(stored, submission.Periods, window); len(errs) > 0 {
			return nil, errs
		}
	}

	for _, facts := range window {
		facts.CompanyID = result.companyID
	}

	result.variant = metrics.SelectVariant(sector)
	if submission.Sector == "" && result.variant != metrics.Reit {
		if err := validate.Periods(submission.Periods, result.variant); err != nil {
			return nil, err
		}
	}

	opts := metrics.Options{
		Variant:       result.variant,
		FcfDefinition: pipeline.FcfDefinition,
	}

	if submission.LastYearWorkingCapital != nil {
		if idx := slices.Index(window, submitted[0]); idx >= 0 {
			opts.WorkingCapitalBaseline = submission.LastYearWorkingCapital
			opts.BaselineIndex = idx
		}
	}

	result.assembly, err = metrics.Assemble(window, opts)
	if err != nil {
		return nil, err
	}

	// only submitted periods are written; stored periods are context
	isSubmitted := make(map[*data.PeriodFacts]bool, len(submitted))
	for _, facts := range submitted {
		isSubmitted[facts] = true
	}

	var income, balance, cashFlow, historic [][]any
	for _, period := range result.assembly.Periods {
		if !isSubmitted[period.Facts] {
			continue
		}
		subLog.Debug().Object("Period", period.Facts).Msg("writing period")
		income = append(income, incomeStatementRow(result.companyID, period))
		balance = append(balance, balanceSheetRow(result.companyID, period))
		cashFlow = append(cashFlow, cashFlowStatementRow(result.companyID, period, result.variant))
		historic = append(historic, historicMetricsRow(result.companyID, period))
	}

	result.assembly.Aggregate.CompanyID = result.companyID

	writes := []struct {
		table *data.Table
		rows  [][]any
	}{
		{data.IncomeStatements, income},
		{data.BalanceSheets, balance},
		{result.variant.CashFlowTable(), cashFlow},
		{data.HistoricMetrics, historic},
		{data.CompanyMetrics, [][]any{companyMetricsRow(result.companyID, result.assembly.Aggregate)}},
	}

	for _, write := range writes {
		if err := upsert(ctx, tx, write.table, write.rows); err != nil {
			return nil, err
		}
		result.rows[write.table.Name] += len(write.rows)
	}

	return result, nil
}

// invalidate clears cached responses for the company. Failures are logged;
// the submission is already committed.
func (pipeline *Pipeline) invalidate(ctx context.Context, companyID int64, ticker string) {
	if pipeline.Cache == nil {
		return
	}

	keys := cache.CompanyKeys(companyID)
	if ticker != "" {
		keys = append(keys, cache.TickerKey(ticker))
	}

	if err := pipeline.Cache.Invalidate(ctx, keys...); err != nil {
		telemetry.CacheInvalidationErrors.Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Int64("CompanyID", companyID).Strs("Keys", keys).Msg("cache invalidation failed")
	}
}
