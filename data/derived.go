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
package data

import (
	"time"

	"github.com/rs/zerolog"
)

type Trend string

const (
	TrendPositive Trend = "Positive"
	TrendNegative Trend = "Negative"
	TrendNeutral  Trend = "Neutral"
)

// DerivedPeriodMetrics are computed from a period and the one preceding it.
// Values may be NaN or infinite; they are sanitized when persisted.
type DerivedPeriodMetrics struct {
	ReturnOnEquity             float64 `json:"roe"`
	ReturnOnCapitalEmployed    float64 `json:"roce"`
	ReturnOnInvestedCapital    float64 `json:"roic"`
	RoeStructuralGrowth        float64 `json:"roe_structural_growth"`
	RoceStructuralGrowth       float64 `json:"roce_structural_growth"`
	RoicStructuralGrowth       float64 `json:"roic_structural_growth"`
	GrossMargin                float64 `json:"gross_margin"`
	OperatingMargin            float64 `json:"operating_margin"`
	NetMargin                  float64 `json:"net_margin"`
	FreeCashFlowMargin         float64 `json:"fcf_margin"`
	EbitdaMargin               float64 `json:"ebitda_margin"`
	NetCashPerShare            float64 `json:"net_cash_per_share"`
	CashConversion             float64 `json:"cash_conversion"`
	NetDebtToEbitda            float64 `json:"net_debt_to_ebitda"`
	DebtToEquity               float64 `json:"debt_to_equity"`
	FreeCashFlowConversion     float64 `json:"fcf_conversion"`
	ReinvestmentRate           float64 `json:"reinvestment_rate"`
	RetentionRate              float64 `json:"retention_rate"`
	DebtCapitalAllocation      float64 `json:"debt_capital_allocation"`
	SharesCapitalAllocation    float64 `json:"shares_capital_allocation"`
	DividendsCapitalAllocation float64 `json:"dividends_capital_allocation"`
	DaysInventoryOutstanding   float64 `json:"days_inventory_outstanding"`
	DaysSalesOutstanding       float64 `json:"days_sales_outstanding"`
	DaysPayableOutstanding     float64 `json:"days_payable_outstanding"`
	CashConversionCycle        float64 `json:"cash_conversion_cycle"`
}

// Values returns pointers to every metric, in declaration order
func (derived *DerivedPeriodMetrics) Values() []*float64 {
	return []*float64{
		&derived.ReturnOnEquity, &derived.ReturnOnCapitalEmployed, &derived.ReturnOnInvestedCapital,
		&derived.RoeStructuralGrowth, &derived.RoceStructuralGrowth, &derived.RoicStructuralGrowth,
		&derived.GrossMargin, &derived.OperatingMargin, &derived.NetMargin, &derived.FreeCashFlowMargin,
		&derived.EbitdaMargin, &derived.NetCashPerShare, &derived.CashConversion, &derived.NetDebtToEbitda,
		&derived.DebtToEquity, &derived.FreeCashFlowConversion, &derived.ReinvestmentRate,
		&derived.RetentionRate, &derived.DebtCapitalAllocation, &derived.SharesCapitalAllocation,
		&derived.DividendsCapitalAllocation, &derived.DaysInventoryOutstanding,
		&derived.DaysSalesOutstanding, &derived.DaysPayableOutstanding, &derived.CashConversionCycle,
	}
}

// Reconciliation carries the per-period values written next to the raw
// statement facts: working capital, the free cash flow family and a few
// balance sheet and income statement helpers.
type Reconciliation struct {
	WorkingCapital         float64  `json:"working_capital"`
	ChangeInWorkingCapital *float64 `json:"change_in_working_capital"`

	FreeCashFlow        float64  `json:"free_cash_flow"`
	FreeCashFlowToFirm  float64  `json:"free_cash_flow_to_firm"`
	SimpleFreeCashFlow  float64  `json:"simple_free_cash_flow"`
	FundsFromOperations *float64 `json:"funds_from_operations"`

	NetDebtIssued         float64 `json:"net_debt_issued"`
	NetRepurchasedShares  float64 `json:"net_repurchased_shares"`
	Nopat                 float64 `json:"nopat"`
	FinancialDebt         float64 `json:"financial_debt"`
	CostOfDebt            float64 `json:"cost_of_debt"`
	TotalUnearnedRevenues float64 `json:"total_unearned_revenues"`
}

// Values returns pointers to the values that are always present
func (rec *Reconciliation) Values() []*float64 {
	return []*float64{
		&rec.WorkingCapital, &rec.FreeCashFlow, &rec.FreeCashFlowToFirm, &rec.SimpleFreeCashFlow,
		&rec.NetDebtIssued, &rec.NetRepurchasedShares, &rec.Nopat, &rec.FinancialDebt,
		&rec.CostOfDebt, &rec.TotalUnearnedRevenues,
	}
}

// CompanyAggregateMetrics summarize a company over its whole window. Window
// metrics are nil when there is not enough history to compute them.
type CompanyAggregateMetrics struct {
	CompanyID int64 `json:"company_id" db:"company_id"`

	TenYearsEpsGrowth       *float64 `json:"ten_years_eps_growth" db:"ten_years_eps_growth"`
	TenYearsFcfGrowth       *float64 `json:"ten_years_fcf_growth" db:"ten_years_fcf_growth"`
	TenYearsEquityGrowth    *float64 `json:"ten_years_equity_growth" db:"ten_years_equity_growth"`
	TenYearsRevenueGrowth   *float64 `json:"ten_years_revenue_growth" db:"ten_years_revenue_growth"`
	TenYearsDividendGrowth  *float64 `json:"ten_years_dividend_growth" db:"ten_years_dividend_growth"`
	FiveYearsEpsGrowth      *float64 `json:"five_years_eps_growth" db:"five_years_eps_growth"`
	FiveYearsFcfGrowth      *float64 `json:"five_years_fcf_growth" db:"five_years_fcf_growth"`
	FiveYearsEquityGrowth   *float64 `json:"five_years_equity_growth" db:"five_years_equity_growth"`
	FiveYearsRevenueGrowth  *float64 `json:"five_years_revenue_growth" db:"five_years_revenue_growth"`
	FiveYearsDividendGrowth *float64 `json:"five_years_dividend_growth" db:"five_years_dividend_growth"`
	ShareDilution           *float64 `json:"share_dilution" db:"share_dilution"`

	FiveYearsRoic             *float64 `json:"five_years_roic" db:"five_years_roic"`
	FiveYearsGrossMargin      *float64 `json:"five_years_gross_margin" db:"five_years_gross_margin"`
	FiveYearsOperatingMargin  *float64 `json:"five_years_operating_margin" db:"five_years_operating_margin"`
	FiveYearsFcfMargin        *float64 `json:"five_years_fcf_margin" db:"five_years_fcf_margin"`
	FiveYearsReinvestmentRate *float64 `json:"five_years_reinvestment_rate" db:"five_years_reinvestment_rate"`

	ConsecutiveDividendGrowthYears int      `json:"consecutive_dividend_growth_years" db:"consecutive_dividend_growth_years"`
	ConsecutiveDividendPayingYears int      `json:"consecutive_dividend_paying_years" db:"consecutive_dividend_paying_years"`
	MedianPayoutRatio              *float64 `json:"median_payout_ratio" db:"median_payout_ratio"`

	OperatingMarginTrend *Trend `json:"operating_margin_trend" db:"operating_margin_trend"`
	GrossMarginTrend     *Trend `json:"gross_margin_trend" db:"gross_margin_trend"`
	RoicTrend            *Trend `json:"roic_trend" db:"roic_trend"`

	// snapshot of the most recent period (TTM when present)
	Roic            float64 `json:"roic" db:"roic"`
	ReturnOnEquity  float64 `json:"roe" db:"roe"`
	CurrentRatio    float64 `json:"current_ratio" db:"current_ratio"`
	GrossMargin     float64 `json:"gross_margin" db:"gross_margin"`
	OperatingMargin float64 `json:"operating_margin" db:"operating_margin"`
	NetMargin       float64 `json:"net_margin" db:"net_margin"`
	FcfMargin       float64 `json:"fcf_margin" db:"fcf_margin"`
	EbitdaMargin    float64 `json:"ebitda_margin" db:"ebitda_margin"`
	CashConversion  float64 `json:"cash_conversion" db:"cash_conversion"`
	NetCashPerShare float64 `json:"net_cash_per_share" db:"net_cash_per_share"`
	DebtToEbitda    float64 `json:"debt_to_ebitda" db:"debt_to_ebitda"`
	DebtToEquity    float64 `json:"debt_to_equity" db:"debt_to_equity"`

	Score     float64   `json:"score" db:"score"`
	UpdatedOn time.Time `json:"updated_on" db:"updated_on"`
}

func (aggregate *CompanyAggregateMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("CompanyID", aggregate.CompanyID)
	e.Float64("Score", aggregate.Score)
	e.Int("ConsecutiveDividendGrowthYears", aggregate.ConsecutiveDividendGrowthYears)
}
