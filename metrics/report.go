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
package metrics

import "github.com/penny-vault/pvmetrics/data"

// PeriodReport is the printable view of an assembled period
type PeriodReport struct {
	FiscalYear     *int                      `json:"fiscal_year"`
	PeriodType     data.PeriodType           `json:"period_type"`
	Derived        data.DerivedPeriodMetrics `json:"derived"`
	Reconciliation data.Reconciliation       `json:"reconciliation"`
}

// Report rounds every per-period value to two decimals and replaces
// non-finite values with 0 (or null where the value is optional)
func (assembly *Assembly) Report() []*PeriodReport {
	reports := make([]*PeriodReport, 0, len(assembly.Periods))
	for _, period := range assembly.Periods {
		report := &PeriodReport{
			FiscalYear:     period.Facts.FiscalYear,
			PeriodType:     period.Facts.PeriodType,
			Derived:        period.Derived,
			Reconciliation: period.Reconciliation,
		}

		for _, v := range report.Derived.Values() {
			*v = Round2(Sanitize(*v, 0))
		}
		for _, v := range report.Reconciliation.Values() {
			*v = Round2(Sanitize(*v, 0))
		}
		report.Reconciliation.ChangeInWorkingCapital = rounded(period.Reconciliation.ChangeInWorkingCapital)
		report.Reconciliation.FundsFromOperations = rounded(period.Reconciliation.FundsFromOperations)

		reports = append(reports, report)
	}
	return reports
}

func rounded(v *float64) *float64 {
	v = Nullable(v)
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}
