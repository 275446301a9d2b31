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
	"context"
	"math"
	"strings"

	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/tidwall/gjson"
)

// JSON reads either a bare array of periods or company envelopes of the
// form {ticker, sector, company_id, last_year_working_capital, periods}, one
// or many. Numbers may be given as JSON numbers or formatted strings.
type JSON struct{}

func (JSON) Name() string {
	return "json"
}

func (JSON) Extensions() []string {
	return []string{".json"}
}

func (JSON) Load(_ context.Context, payload []byte) ([]*data.Submission, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformed
	}

	root := gjson.ParseBytes(payload)

	var submissions []*data.Submission
	switch {
	case root.IsObject():
		submissions = append(submissions, jsonEnvelope(root))
	case root.IsArray():
		items := root.Array()
		if len(items) > 0 && items[0].Get("periods").Exists() {
			for _, item := range items {
				submissions = append(submissions, jsonEnvelope(item))
			}
		} else {
			submission := &data.Submission{}
			for _, item := range items {
				submission.Periods = append(submission.Periods, jsonPeriod(item))
			}
			submissions = append(submissions, submission)
		}
	default:
		return nil, ErrMalformed
	}

	for _, submission := range submissions {
		if len(submission.Periods) == 0 {
			return nil, ErrEmptyPayload
		}
	}

	return submissions, nil
}

func jsonEnvelope(res gjson.Result) *data.Submission {
	submission := &data.Submission{
		CompanyID: res.Get("company_id").Int(),
		Ticker:    strings.ToUpper(strings.TrimSpace(res.Get("ticker").String())),
		Sector:    strings.TrimSpace(res.Get("sector").String()),
	}

	if wc := jsonNumber(res.Get("last_year_working_capital")); metrics.IsFinite(wc) {
		submission.LastYearWorkingCapital = &wc
	}

	for _, item := range res.Get("periods").Array() {
		submission.Periods = append(submission.Periods, jsonPeriod(item))
	}

	return submission
}

func jsonPeriod(res gjson.Result) *data.PeriodFacts {
	facts := data.NewPeriodFacts()

	year := res.Get("fiscal_year")
	if !year.Exists() {
		year = res.Get("year")
	}
	if v := jsonNumber(year); metrics.IsFinite(v) {
		fiscalYear := int(v)
		facts.FiscalYear = &fiscalYear
	}

	facts.PeriodType = data.PeriodType(strings.ToLower(strings.TrimSpace(res.Get("period_type").String())))

	for _, field := range facts.NumericFields() {
		*field.Value = jsonNumber(res.Get(field.Name))
	}

	return facts
}

// jsonNumber is NaN for missing, null and unparseable values
func jsonNumber(res gjson.Result) float64 {
	switch res.Type {
	case gjson.Number:
		return res.Float()
	case gjson.String:
		return metrics.ParseNumber(res.Str)
	default:
		return math.NaN()
	}
}
