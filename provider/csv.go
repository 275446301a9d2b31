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
package provider

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
)

// CSV reads one period per row with the field names as header. Optional
// ticker, sector and company_id columns split the rows into one submission
// per company; the TTM row leaves the year blank.
type CSV struct{}

func (CSV) Name() string {
	return "csv"
}

func (CSV) Extensions() []string {
	return []string{".csv"}
}

func (CSV) Load(_ context.Context, payload []byte) ([]*data.Submission, error) {
	rows, err := gocsv.CSVToMaps(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyPayload
	}

	var submissions []*data.Submission
	byCompany := make(map[string]*data.Submission)

	for _, row := range rows {
		ticker := strings.ToUpper(strings.TrimSpace(row["ticker"]))
		companyID, _ := strconv.ParseInt(strings.TrimSpace(row["company_id"]), 10, 64)

		key := fmt.Sprintf("%d|%s", companyID, ticker)
		submission, ok := byCompany[key]
		if !ok {
			submission = &data.Submission{
				CompanyID: companyID,
				Ticker:    ticker,
				Sector:    strings.TrimSpace(row["sector"]),
			}
			byCompany[key] = submission
			submissions = append(submissions, submission)
		}

		if submission.LastYearWorkingCapital == nil {
			if wc := metrics.ParseNumber(row["last_year_working_capital"]); metrics.IsFinite(wc) {
				submission.LastYearWorkingCapital = &wc
			}
		}

		submission.Periods = append(submission.Periods, csvPeriod(row))
	}

	return submissions, nil
}

func csvPeriod(row map[string]string) *data.PeriodFacts {
	facts := data.NewPeriodFacts()

	year, ok := row["fiscal_year"]
	if !ok {
		year = row["year"]
	}
	if v := metrics.ParseNumber(year); metrics.IsFinite(v) {
		fiscalYear := int(v)
		facts.FiscalYear = &fiscalYear
	}

	facts.PeriodType = data.PeriodType(strings.ToLower(strings.TrimSpace(row["period_type"])))

	for _, field := range facts.NumericFields() {
		*field.Value = metrics.ParseNumber(row[field.Name])
	}

	return facts
}
