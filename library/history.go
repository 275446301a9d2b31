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
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/validate"
)

var ErrUnknownCompany = errors.New("unknown company")

// HistoryReader loads what is already stored for a company inside the
// submission's transaction
type HistoryReader interface {
	Company(ctx context.Context, tx pgx.Tx, companyID int64) (*data.Company, error)
	Periods(ctx context.Context, tx pgx.Tx, companyID int64) ([]*data.PeriodFacts, error)
}

// StoredHistory reads history from the statement tables
type StoredHistory struct{}

func (StoredHistory) Company(ctx context.Context, tx pgx.Tx, companyID int64) (*data.Company, error) {
	company := &data.Company{}
	err := pgxscan.Get(ctx, tx, company, "SELECT company_id, ticker, sector FROM companies WHERE company_id = $1", companyID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownCompany, companyID)
		}
		return nil, err
	}
	return company, nil
}

func (StoredHistory) Periods(ctx context.Context, tx pgx.Tx, companyID int64) ([]*data.PeriodFacts, error) {
	var periods []*data.PeriodFacts
	if err := pgxscan.Select(ctx, tx, &periods, periodsSQL, companyID); err != nil {
		return nil, err
	}
	return periods, nil
}

var periodsSQL = buildPeriodsSQL()

// buildPeriodsSQL joins the raw statement columns of every period back into
// one row. NULL (not reported) is read back as NaN.
func buildPeriodsSQL() string {
	sources := []struct {
		alias string
		table *data.Table
	}{
		{"i", data.IncomeStatements},
		{"b", data.BalanceSheets},
		{"c", data.CashFlowStatements},
	}

	columns := []string{"i.company_id", "i.fiscal_year", "i.period_type"}
	for _, field := range data.NewPeriodFacts().NumericFields() {
		for _, source := range sources {
			if slices.Contains(source.table.Columns, field.Name) {
				columns = append(columns, fmt.Sprintf("COALESCE(%s.%s, 'NaN') AS %s", source.alias, field.Name, field.Name))
				break
			}
		}
	}

	join := func(alias, table string) string {
		return fmt.Sprintf("JOIN %[2]s %[1]s ON %[1]s.company_id = i.company_id AND %[1]s.period_type = i.period_type AND %[1]s.fiscal_year IS NOT DISTINCT FROM i.fiscal_year",
			alias, table)
	}

	return fmt.Sprintf("SELECT %s FROM %s i %s %s WHERE i.company_id = $1 ORDER BY i.period_type = 'ttm', i.fiscal_year",
		strings.Join(columns, ", "),
		data.IncomeStatementsKey,
		join("b", data.BalanceSheetsKey),
		join("c", data.CashFlowStatementsKey))
}

// mergeWindow overlays submitted periods on the stored ones and keeps the
// most recent ten annual periods plus the trailing period
func mergeWindow(stored, submitted []*data.PeriodFacts) []*data.PeriodFacts {
	byKey := make(map[string]*data.PeriodFacts, len(stored)+len(submitted))
	for _, facts := range stored {
		byKey[facts.Key()] = facts
	}
	for _, facts := range submitted {
		byKey[facts.Key()] = facts
	}

	var ttm *data.PeriodFacts
	annual := make([]*data.PeriodFacts, 0, len(byKey))
	for _, facts := range byKey {
		if facts.IsTTM() {
			ttm = facts
			continue
		}
		annual = append(annual, facts)
	}

	sort.Slice(annual, func(i, j int) bool {
		return *annual[i].FiscalYear < *annual[j].FiscalYear
	})

	if len(annual) > data.MaxPeriods-1 {
		annual = annual[len(annual)-(data.MaxPeriods-1):]
	}

	if ttm != nil {
		annual = append(annual, ttm)
	}

	return annual
}

// windowErrors reports submitted periods that the merged window would not
// write or would leave out of date. periods is the submission in its
// original order so errors point at the caller's index.
func windowErrors(stored, periods, window []*data.PeriodFacts) validate.Errors {
	var errs validate.Errors

	for idx, facts := range periods {
		if !slices.Contains(window, facts) {
			errs = append(errs, &validate.Error{
				Field:   fmt.Sprintf("fiscal_year[%d]", idx),
				Value:   facts.FiscalYearValue(),
				Message: "outside the ten most recent years",
			})
		}
	}

	storedTTM := false
	newestStored := math.MinInt
	for _, facts := range stored {
		if facts.IsTTM() {
			storedTTM = true
			continue
		}
		newestStored = max(newestStored, *facts.FiscalYear)
	}

	if !storedTTM || slices.ContainsFunc(periods, (*data.PeriodFacts).IsTTM) {
		return errs
	}

	// a stored trailing period predates any newer fiscal year
	for idx, facts := range periods {
		if !facts.IsTTM() && *facts.FiscalYear > newestStored {
			errs = append(errs, &validate.Error{
				Field:   fmt.Sprintf("period_type[%d]", idx),
				Value:   *facts.FiscalYear,
				Message: "a trailing period is required when adding a year newer than the stored ones",
			})
			break
		}
	}

	return errs
}
