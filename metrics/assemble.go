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

import (
	"errors"
	"fmt"
	"sort"

	"github.com/penny-vault/pvmetrics/data"
)

var (
	ErrNoPeriods         = errors.New("at least one period is required")
	ErrTooManyPeriods    = errors.New("too many periods")
	ErrMultipleTTM       = errors.New("only one trailing-twelve-month period is allowed")
	ErrMissingFiscalYear = errors.New("annual periods require a fiscal year")
	ErrDuplicatePeriod   = errors.New("fiscal year submitted more than once")
)

// PeriodError locates a classification problem within a submission
type PeriodError struct {
	Index int
	Field string
	Err   error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%s[%d]: %s", e.Field, e.Index, e.Err)
}

func (e *PeriodError) Unwrap() error {
	return e.Err
}

// Classify assigns a period type to every period that lacks one and returns
// the periods ordered oldest to newest with the TTM period last. In an
// eleven period window the last period is the TTM period; otherwise a
// trailing period without a fiscal year is.
//
// Classification happens in place: PeriodType is set on the caller's
// periods and the TTM period's FiscalYear is cleared. The returned slice is
// new but shares the same pointers.
func Classify(periods []*data.PeriodFacts) ([]*data.PeriodFacts, error) {
	if len(periods) == 0 {
		return nil, &PeriodError{Index: 0, Field: "periods", Err: ErrNoPeriods}
	}

	if len(periods) > data.MaxPeriods {
		return nil, &PeriodError{Index: data.MaxPeriods, Field: "periods", Err: ErrTooManyPeriods}
	}

	last := len(periods) - 1
	ttmIdx := -1
	years := make(map[int]int, len(periods))

	for idx, facts := range periods {
		if facts.PeriodType == "" {
			switch {
			case len(periods) == data.MaxPeriods && idx == last:
				facts.PeriodType = data.PeriodTTM
			case len(periods) > 1 && idx == last && facts.FiscalYear == nil:
				facts.PeriodType = data.PeriodTTM
			default:
				facts.PeriodType = data.PeriodAnnual
			}
		}

		if facts.IsTTM() {
			if ttmIdx >= 0 {
				return nil, &PeriodError{Index: idx, Field: "period_type", Err: ErrMultipleTTM}
			}
			ttmIdx = idx
			facts.FiscalYear = nil
			continue
		}

		if facts.FiscalYear == nil {
			return nil, &PeriodError{Index: idx, Field: "fiscal_year", Err: ErrMissingFiscalYear}
		}

		if _, ok := years[*facts.FiscalYear]; ok {
			return nil, &PeriodError{Index: idx, Field: "fiscal_year", Err: ErrDuplicatePeriod}
		}
		years[*facts.FiscalYear] = idx
	}

	if len(years) > data.MaxPeriods-1 {
		return nil, &PeriodError{Index: data.MaxPeriods - 1, Field: "periods", Err: ErrTooManyPeriods}
	}

	ordered := make([]*data.PeriodFacts, len(periods))
	copy(ordered, periods)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsTTM() != b.IsTTM() {
			return b.IsTTM()
		}
		if a.IsTTM() {
			return false
		}
		return *a.FiscalYear < *b.FiscalYear
	})

	return ordered, nil
}

// duplicatesAnnual reports whether a TTM period is a copy of the preceding
// annual period, which happens right after a fiscal year closes
func duplicatesAnnual(ttm, annual *data.PeriodFacts) bool {
	return ttm.IsTTM() && !annual.IsTTM() &&
		ttm.Revenue == annual.Revenue &&
		ttm.OperatingCashFlow == annual.OperatingCashFlow
}

type Options struct {
	Variant       Variant
	FcfDefinition FcfDefinition

	// WorkingCapitalBaseline replaces the prior period's working capital
	// for the period at BaselineIndex
	WorkingCapitalBaseline *float64
	BaselineIndex          int
}

type AssembledPeriod struct {
	Facts          *data.PeriodFacts
	Derived        data.DerivedPeriodMetrics
	Reconciliation data.Reconciliation
}

type Assembly struct {
	Variant   Variant
	Periods   []*AssembledPeriod
	Aggregate *data.CompanyAggregateMetrics
}

// Assemble classifies and orders the periods and computes every per-period
// and company-wide metric for them
func Assemble(periods []*data.PeriodFacts, opts Options) (*Assembly, error) {
	ordered, err := Classify(periods)
	if err != nil {
		return nil, err
	}

	if opts.FcfDefinition == "" {
		opts.FcfDefinition = FcfFromNetIncome
	}

	n := len(ordered)
	changes := make([]*float64, n)
	fcf := make([]float64, n)

	for idx, facts := range ordered {
		switch {
		case opts.WorkingCapitalBaseline != nil && idx == opts.BaselineIndex:
			changes[idx] = ChangeInWorkingCapital(idx, ordered, opts.WorkingCapitalBaseline)
		case idx > 0 && duplicatesAnnual(facts, ordered[idx-1]):
			changes[idx] = changes[idx-1]
		default:
			changes[idx] = ChangeInWorkingCapital(idx, ordered, nil)
		}

		fcf[idx] = opts.Variant.FreeCashFlow(facts, changes[idx], opts.FcfDefinition)
	}

	assembly := &Assembly{
		Variant: opts.Variant,
		Periods: make([]*AssembledPeriod, n),
	}

	for idx, facts := range ordered {
		assembly.Periods[idx] = &AssembledPeriod{
			Facts:          facts,
			Derived:        derive(idx, ordered, fcf),
			Reconciliation: reconcile(facts, changes[idx], fcf[idx], opts.Variant),
		}
	}

	assembly.Aggregate = Aggregate(assembly.Periods)

	return assembly, nil
}

func derive(idx int, series []*data.PeriodFacts, fcf []float64) data.DerivedPeriodMetrics {
	facts, prev := current(idx, series)

	netDebt := orZero(facts.TotalDebt) - facts.TotalCash
	roe := ReturnOnEquity(facts.Equity, prev.Equity, facts.NetIncome, idx)
	roce := ReturnOnCapitalEmployed(facts.OperatingIncome, prev.OperatingIncome, facts.Equity, prev.Equity,
		FinancialDebt(facts), FinancialDebt(prev), idx)
	roic := ReturnOnInvestedCapital(facts.OperatingIncome, facts.IncomeTaxExpense, facts.IncomeBeforeTaxes, netDebt, facts.Equity)

	dio := DaysInventoryOutstanding(idx, series)
	dso := DaysSalesOutstanding(idx, series)
	dpo := DaysPayableOutstanding(idx, series)

	return data.DerivedPeriodMetrics{
		ReturnOnEquity:             roe,
		ReturnOnCapitalEmployed:    roce,
		ReturnOnInvestedCapital:    roic,
		RoeStructuralGrowth:        StructuralGrowth(roe, facts.NetIncome, facts.DividendsPaid, facts.RepurchasedShares),
		RoceStructuralGrowth:       StructuralGrowth(roce, facts.OperatingIncome, facts.DividendsPaid, facts.RepurchasedShares),
		RoicStructuralGrowth:       StructuralGrowth(roic, Nopat(facts), facts.DividendsPaid, facts.RepurchasedShares),
		GrossMargin:                GrossMargin(facts),
		OperatingMargin:            OperatingMargin(facts),
		NetMargin:                  NetMargin(facts),
		FreeCashFlowMargin:         FreeCashFlowMargin(fcf[idx], facts.Revenue),
		EbitdaMargin:               EbitdaMargin(facts),
		NetCashPerShare:            NetCashPerShare(facts),
		CashConversion:             CashConversion(facts),
		NetDebtToEbitda:            NetDebtToEbitda(facts),
		DebtToEquity:               DebtToEquity(facts),
		FreeCashFlowConversion:     FreeCashFlowConversion(fcf[idx], facts.NetIncome),
		ReinvestmentRate:           ReinvestmentRate(idx, series, fcf),
		RetentionRate:              RetentionRate(facts),
		DebtCapitalAllocation:      DebtCapitalAllocation(facts, fcf[idx]),
		SharesCapitalAllocation:    SharesCapitalAllocation(facts, fcf[idx]),
		DividendsCapitalAllocation: DividendsCapitalAllocation(facts, fcf[idx]),
		DaysInventoryOutstanding:   dio,
		DaysSalesOutstanding:       dso,
		DaysPayableOutstanding:     dpo,
		CashConversionCycle:        CashConversionCycle(dio, dso, dpo),
	}
}

func reconcile(facts *data.PeriodFacts, change *float64, fcf float64, variant Variant) data.Reconciliation {
	return data.Reconciliation{
		WorkingCapital:         PeriodWorkingCapital(facts),
		ChangeInWorkingCapital: change,
		FreeCashFlow:           fcf,
		FreeCashFlowToFirm:     FreeCashFlowToFirm(facts, change),
		SimpleFreeCashFlow:     variant.SimpleFreeCashFlow(facts),
		FundsFromOperations:    variant.FundsFromOperations(facts),
		NetDebtIssued:          NetDebtIssued(facts),
		NetRepurchasedShares:   NetRepurchasedShares(facts),
		Nopat:                  Nopat(facts),
		FinancialDebt:          FinancialDebt(facts),
		CostOfDebt:             CostOfDebt(facts),
		TotalUnearnedRevenues:  TotalUnearnedRevenues(facts),
	}
}
