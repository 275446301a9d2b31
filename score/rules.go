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
package score

import "github.com/penny-vault/pvmetrics/data"

type Metric string

const (
	CurrentRatio         Metric = "current_ratio"
	NetCashPerShare      Metric = "net_cash_per_share"
	DebtToEbitda         Metric = "debt_to_ebitda"
	FiveYearsRoic        Metric = "five_years_roic"
	ShareDilution        Metric = "share_dilution"
	CashConversion       Metric = "cash_conversion"
	RoicTrend            Metric = "roic_trend"
	GrossMarginTrend     Metric = "gross_margin_trend"
	OperatingMarginTrend Metric = "operating_margin_trend"
	EpsGrowth            Metric = "ten_years_eps_growth"
	FcfGrowth            Metric = "ten_years_fcf_growth"
	RevenueGrowth        Metric = "ten_years_revenue_growth"
	MedianPayoutRatio    Metric = "median_payout_ratio"
	DividendGrowth       Metric = "ten_years_dividend_growth"
)

type ConditionKind int

const (
	// InBand matches a present value within the lower and upper bounds
	InBand ConditionKind = iota

	// Missing matches when the metric could not be computed
	Missing

	// TrendIn matches a trend classification in the listed set
	TrendIn
)

type Bound struct {
	Value     float64
	Inclusive bool
}

// Condition is a data description of when a rule matches; a nil bound is
// unbounded on that side
type Condition struct {
	Kind   ConditionKind
	Lower  *Bound
	Upper  *Bound
	Trends []data.Trend
}

// Rule awards Weight points when Metric satisfies When. PayoutWeight is
// awarded instead when the company qualifies for the payout rules.
type Rule struct {
	Name         string
	Metric       Metric
	When         Condition
	Weight       float64
	PayoutWeight float64
}

func above(v float64) Condition {
	return Condition{Kind: InBand, Lower: &Bound{Value: v}}
}

func atLeast(v float64) Condition {
	return Condition{Kind: InBand, Lower: &Bound{Value: v, Inclusive: true}}
}

func below(v float64) Condition {
	return Condition{Kind: InBand, Upper: &Bound{Value: v}}
}

func atMost(v float64) Condition {
	return Condition{Kind: InBand, Upper: &Bound{Value: v, Inclusive: true}}
}

func between(lower float64, lowerInclusive bool, upper float64, upperInclusive bool) Condition {
	return Condition{
		Kind:  InBand,
		Lower: &Bound{Value: lower, Inclusive: lowerInclusive},
		Upper: &Bound{Value: upper, Inclusive: upperInclusive},
	}
}

func missing() Condition {
	return Condition{Kind: Missing}
}

func trendIn(trends ...data.Trend) Condition {
	return Condition{Kind: TrendIn, Trends: trends}
}

var improving = trendIn(data.TrendPositive, data.TrendNeutral)

// DefaultRules are evaluated for every company
var DefaultRules = []Rule{
	{"current ratio above 2", CurrentRatio, above(2), 7.5, 7.5},
	{"current ratio 1.5 to 2", CurrentRatio, between(1.5, false, 2, true), 5, 5},
	{"current ratio 1 to 1.5", CurrentRatio, between(1, false, 1.5, true), 2.5, 2.5},
	{"current ratio 0.8 to 1", CurrentRatio, between(0.8, false, 1, true), 1.25, 1.25},

	{"net cash", NetCashPerShare, atLeast(0), 5, 5},

	{"debt/ebitda below 1.5", DebtToEbitda, below(1.5), 7.5, 7.5},
	{"debt/ebitda 1.5 to 2", DebtToEbitda, between(1.5, false, 2, false), 5, 5},
	{"debt/ebitda 2.5 to 3", DebtToEbitda, between(2.5, false, 3, true), 2.5, 2.5},

	{"5y roic at least 15", FiveYearsRoic, atLeast(15), 15, 15},
	{"5y roic 12 to 15", FiveYearsRoic, between(12, false, 15, false), 12.5, 12.5},
	{"5y roic 10 to 12", FiveYearsRoic, between(10, false, 12, false), 10, 10},

	{"no share dilution", ShareDilution, atMost(0), 10, 10},
	{"share dilution up to 0.1", ShareDilution, between(0, false, 0.1, true), 7.5, 7.5},
	{"share dilution 0.1 to 0.2", ShareDilution, between(0.1, false, 0.2, true), 5, 5},
	{"share dilution 0.2 to 0.4", ShareDilution, between(0.2, false, 0.4, true), 2.25, 2.25},

	{"cash conversion above 88", CashConversion, above(88), 5, 5},

	{"roic trend", RoicTrend, improving, 7.5, 7.5},
	{"gross margin trend", GrossMarginTrend, improving, 7.5, 7.5},
	{"operating margin trend", OperatingMarginTrend, improving, 7.5, 7.5},

	{"eps growth unknown", EpsGrowth, missing(), 10, 5},
	{"eps growth at least 8", EpsGrowth, atLeast(8), 10, 5},
	{"eps growth 7 to 8", EpsGrowth, between(7, false, 8, false), 5, 2.5},
	{"eps growth 6 to 7", EpsGrowth, between(6, false, 7, false), 2.5, 1.25},

	{"fcf growth unknown", FcfGrowth, missing(), 10, 5},
	{"fcf growth at least 8", FcfGrowth, atLeast(8), 10, 5},
	{"fcf growth 7 to 8", FcfGrowth, between(7, false, 8, false), 5, 2.5},
	{"fcf growth 6 to 7", FcfGrowth, between(6, false, 7, false), 2.5, 1.25},

	{"revenue growth unknown", RevenueGrowth, missing(), 7.5, 5},
	{"revenue growth at least 8", RevenueGrowth, atLeast(8), 7.5, 5},
	{"revenue growth 7 to 8", RevenueGrowth, between(7, false, 8, false), 5, 2.5},
	{"revenue growth 6 to 7", RevenueGrowth, between(6, false, 7, false), 2.5, 1.25},
}

// PayoutRules are added for companies with a median payout ratio, which
// requires nine consecutive years of dividend growth
var PayoutRules = []Rule{
	{"payout ratio up to 0.4", MedianPayoutRatio, between(0, true, 0.4, true), 7.5, 7.5},
	{"payout ratio 0.4 to 0.55", MedianPayoutRatio, between(0.4, false, 0.55, true), 5, 5},
	{"payout ratio 0.55 to 0.65", MedianPayoutRatio, between(0.55, false, 0.65, true), 2.5, 2.5},

	{"dividend growth unknown", DividendGrowth, missing(), 5, 5},
	{"dividend growth at least 8", DividendGrowth, atLeast(8), 5, 5},
	{"dividend growth 7 to 8", DividendGrowth, between(7, false, 8, false), 2.5, 2.5},
	{"dividend growth 6 to 7", DividendGrowth, between(6, false, 7, false), 1.25, 1.25},
}
