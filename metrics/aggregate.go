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
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/score"
)

const (
	// TenYearPeriods and FiveYearPeriods are the number of annual periods a
	// window needs; growth compounds over one year less
	TenYearPeriods  = 10
	FiveYearPeriods = 5

	// PayoutGrowthYears of consecutive dividend growth qualify a company for
	// the payout ratio and its score rules
	PayoutGrowthYears = 9
)

// collect gathers one value per annual period, oldest first
func collect(periods []*AssembledPeriod, value func(*AssembledPeriod) float64) []float64 {
	values := make([]float64, 0, len(periods))
	for _, period := range periods {
		values = append(values, value(period))
	}
	return values
}

// Aggregate reduces an assembled window to the company-wide metrics and
// their score. Snapshot values come from the last period, which is the
// TTM period when present.
func Aggregate(periods []*AssembledPeriod) *data.CompanyAggregateMetrics {
	aggregate := &data.CompanyAggregateMetrics{}
	if len(periods) == 0 {
		return aggregate
	}

	annual := make([]*AssembledPeriod, 0, len(periods))
	for _, period := range periods {
		if !period.Facts.IsTTM() {
			annual = append(annual, period)
		}
	}

	eps := collect(annual, func(p *AssembledPeriod) float64 { return EarningsPerShare(p.Facts) })
	fcf := collect(annual, func(p *AssembledPeriod) float64 { return p.Reconciliation.FreeCashFlow })
	equity := collect(annual, func(p *AssembledPeriod) float64 { return Equity(p.Facts) })
	revenue := collect(annual, func(p *AssembledPeriod) float64 { return Revenue(p.Facts) })
	dps := collect(annual, func(p *AssembledPeriod) float64 { return DividendsPerShare(p.Facts) })
	shares := collect(annual, func(p *AssembledPeriod) float64 { return DilutedShares(p.Facts) })

	if len(annual) >= TenYearPeriods {
		years := TenYearPeriods - 1
		aggregate.TenYearsEpsGrowth = CagrValues(years, eps)
		aggregate.TenYearsFcfGrowth = CagrValues(years, fcf)
		aggregate.TenYearsEquityGrowth = CagrValues(years, equity)
		aggregate.TenYearsRevenueGrowth = CagrValues(years, revenue)
		aggregate.TenYearsDividendGrowth = CagrValues(years, dps)
	}

	if len(annual) >= FiveYearPeriods {
		years := FiveYearPeriods - 1
		aggregate.FiveYearsEpsGrowth = CagrValues(years, eps)
		aggregate.FiveYearsFcfGrowth = CagrValues(years, fcf)
		aggregate.FiveYearsEquityGrowth = CagrValues(years, equity)
		aggregate.FiveYearsRevenueGrowth = CagrValues(years, revenue)
		aggregate.FiveYearsDividendGrowth = CagrValues(years, dps)
		aggregate.ShareDilution = CagrValues(years, shares)

		aggregate.FiveYearsRoic = AverageLast(FiveYearPeriods, collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.ReturnOnInvestedCapital }))
		aggregate.FiveYearsGrossMargin = AverageLast(FiveYearPeriods, collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.GrossMargin }))
		aggregate.FiveYearsOperatingMargin = AverageLast(FiveYearPeriods, collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.OperatingMargin }))
		aggregate.FiveYearsFcfMargin = AverageLast(FiveYearPeriods, collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.FreeCashFlowMargin }))
		aggregate.FiveYearsReinvestmentRate = AverageLast(FiveYearPeriods, collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.ReinvestmentRate }))
	}

	aggregate.ConsecutiveDividendGrowthYears = ConsecutiveDividendGrowthYears(dps)
	aggregate.ConsecutiveDividendPayingYears = ConsecutiveDividendPayingYears(dps)

	if aggregate.ConsecutiveDividendGrowthYears >= PayoutGrowthYears {
		aggregate.MedianPayoutRatio = MedianPayoutRatio(annual)
	}

	aggregate.OperatingMarginTrend = ClassifyTrend(collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.OperatingMargin }))
	aggregate.GrossMarginTrend = ClassifyTrend(collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.GrossMargin }))
	aggregate.RoicTrend = ClassifyTrend(collect(annual, func(p *AssembledPeriod) float64 { return p.Derived.ReturnOnInvestedCapital }))

	latest := periods[len(periods)-1]
	aggregate.Roic = latest.Derived.ReturnOnInvestedCapital
	aggregate.ReturnOnEquity = percent(latest.Facts.NetIncome, latest.Facts.Equity)
	aggregate.CurrentRatio = CurrentRatio(latest.Facts)
	aggregate.GrossMargin = latest.Derived.GrossMargin
	aggregate.OperatingMargin = latest.Derived.OperatingMargin
	aggregate.NetMargin = latest.Derived.NetMargin
	aggregate.FcfMargin = latest.Derived.FreeCashFlowMargin
	aggregate.EbitdaMargin = latest.Derived.EbitdaMargin
	aggregate.CashConversion = latest.Derived.CashConversion
	aggregate.NetCashPerShare = latest.Derived.NetCashPerShare
	aggregate.DebtToEbitda = DebtToEbitda(latest.Facts)
	aggregate.DebtToEquity = latest.Derived.DebtToEquity

	aggregate.Score = score.Score(score.FromAggregate(aggregate))

	return aggregate
}

// ConsecutiveDividendGrowthYears counts the current run of year over year
// dividend increases
func ConsecutiveDividendGrowthYears(dps []float64) int {
	count := 0
	for idx := 1; idx < len(dps); idx++ {
		if dps[idx] > dps[idx-1] {
			count++
		} else {
			count = 0
		}
	}
	return count
}

// ConsecutiveDividendPayingYears counts the most recent years that paid a
// dividend without interruption
func ConsecutiveDividendPayingYears(dps []float64) int {
	count := 0
	for idx := len(dps) - 1; idx >= 0; idx-- {
		if !(dps[idx] > 0) {
			break
		}
		count++
	}
	return count
}

// MedianPayoutRatio is the median over the last five annual periods of
// dividends per share over free cash flow per share
func MedianPayoutRatio(annual []*AssembledPeriod) *float64 {
	if len(annual) < FiveYearPeriods {
		return nil
	}

	ratios := make([]float64, 0, FiveYearPeriods)
	for _, period := range annual[len(annual)-FiveYearPeriods:] {
		fcfPerShare := period.Reconciliation.FreeCashFlow / period.Facts.DilutedSharesOutstanding
		ratios = append(ratios, DividendsPerShare(period.Facts)/fcfPerShare)
	}

	return SanitizeOrNull(Median(ratios))
}

// Sanitized returns a copy of the aggregate with non-finite snapshot values
// replaced by 0, as they are persisted
func Sanitized(aggregate *data.CompanyAggregateMetrics) *data.CompanyAggregateMetrics {
	clean := *aggregate
	for _, v := range []*float64{
		&clean.Roic, &clean.ReturnOnEquity, &clean.CurrentRatio, &clean.GrossMargin,
		&clean.OperatingMargin, &clean.NetMargin, &clean.FcfMargin, &clean.EbitdaMargin,
		&clean.CashConversion, &clean.NetCashPerShare, &clean.DebtToEbitda, &clean.DebtToEquity,
	} {
		*v = Sanitize(*v, 0)
	}
	for _, v := range []**float64{
		&clean.TenYearsEpsGrowth, &clean.TenYearsFcfGrowth, &clean.TenYearsEquityGrowth,
		&clean.TenYearsRevenueGrowth, &clean.TenYearsDividendGrowth, &clean.FiveYearsEpsGrowth,
		&clean.FiveYearsFcfGrowth, &clean.FiveYearsEquityGrowth, &clean.FiveYearsRevenueGrowth,
		&clean.FiveYearsDividendGrowth, &clean.ShareDilution, &clean.FiveYearsRoic,
		&clean.FiveYearsGrossMargin, &clean.FiveYearsOperatingMargin, &clean.FiveYearsFcfMargin,
		&clean.FiveYearsReinvestmentRate, &clean.MedianPayoutRatio,
	} {
		*v = Nullable(*v)
	}
	return &clean
}
