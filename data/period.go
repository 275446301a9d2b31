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
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

type PeriodType string

const (
	PeriodAnnual PeriodType = "annual"
	PeriodTTM    PeriodType = "ttm"
)

// MaxPeriods is the largest window accepted for one company: ten annual
// periods plus one trailing-twelve-month period.
const MaxPeriods = 11

// PeriodFacts holds the raw statement values reported for a single fiscal
// period. Values not present in the source are NaN (see NewPeriodFacts).
// Cash outflows (capex, dividends, repurchases, debt repaid, acquisitions)
// carry a negative sign.
type PeriodFacts struct {
	CompanyID  int64      `json:"company_id" db:"company_id"`
	FiscalYear *int       `json:"fiscal_year"`
	PeriodType PeriodType `json:"period_type" validate:"omitempty,oneof=annual ttm"`

	// [Income Statement]
	Revenue                     float64 `json:"revenue" validate:"finite"`
	CostOfGoodsSold             float64 `json:"cost_of_goods_sold" validate:"nonneg"`
	OperatingIncome             float64 `json:"operating_income" validate:"finite"`
	NetIncome                   float64 `json:"net_income" validate:"finite"`
	EarningsPerShare            float64 `json:"earnings_per_share" validate:"finite"`
	DepreciationAndAmortization float64 `json:"depreciation_and_amortization"`
	InterestExpense             float64 `json:"interest_expense"`
	InterestIncome              float64 `json:"interest_income"`
	IncomeTaxExpense            float64 `json:"income_tax_expense" validate:"finite"`
	IncomeBeforeTaxes           float64 `json:"income_before_taxes" validate:"finite"`
	DilutedSharesOutstanding    float64 `json:"diluted_shares_outstanding" validate:"nonneg"`

	// [Balance Sheet]
	Equity                     float64 `json:"equity" validate:"finite"`
	TotalDebt                  float64 `json:"total_debt" validate:"optional_nonneg"`
	TotalCash                  float64 `json:"total_cash" validate:"nonneg"`
	Inventories                float64 `json:"inventories"`
	AccountsReceivable         float64 `json:"accounts_receivable"`
	AccountsPayable            float64 `json:"accounts_payable"`
	AccruedExpenses            float64 `json:"accrued_expenses"`
	UnearnedRevenues           float64 `json:"unearned_revenues"`
	UnearnedRevenuesNonCurrent float64 `json:"unearned_revenues_non_current"`
	PrepaidExpenses            float64 `json:"prepaid_expenses"`
	LongTermCapitalLeases      float64 `json:"long_term_capital_leases"`
	ShortTermCapitalLeases     float64 `json:"short_term_capital_leases"`
	LongTermDebt               float64 `json:"long_term_debt"`
	ShortTermDebt              float64 `json:"short_term_debt"`
	CurrentAssets              float64 `json:"current_assets" validate:"finite"`
	CurrentLiabilities         float64 `json:"current_liabilities" validate:"finite"`
	Goodwill                   float64 `json:"goodwill"`
	TotalAssets                float64 `json:"total_assets"`
	OtherIntangibles           float64 `json:"other_intangibles"`

	// [Cash Flow Statement]
	OperatingCashFlow              float64 `json:"operating_cash_flow" validate:"finite"`
	CapitalExpenditures            float64 `json:"capital_expenditures" validate:"finite"`
	DebtIssued                     float64 `json:"debt_issued"`
	DebtRepaid                     float64 `json:"debt_repaid"`
	DividendsPaid                  float64 `json:"dividends_paid"`
	DividendsPerShare              float64 `json:"dividends_per_share" validate:"optional_nonneg"`
	RepurchasedShares              float64 `json:"repurchased_shares"`
	IssuedShares                   float64 `json:"issued_shares"`
	SaleOfAssets                   float64 `json:"sale_of_assets"`
	CashAcquisitions               float64 `json:"cash_acquisitions"`
	StocksCompensations            float64 `json:"stocks_compensations"`
	ReportedChangeInWorkingCapital float64 `json:"reported_change_in_working_capital"`
}

// NumericField names one raw value of a period by its wire name
type NumericField struct {
	Name  string
	Value *float64
}

// NumericFields returns pointers to every raw numeric value keyed by the
// name used in JSON and CSV payloads. Order is stable.
func (facts *PeriodFacts) NumericFields() []NumericField {
	return []NumericField{
		{"revenue", &facts.Revenue},
		{"cost_of_goods_sold", &facts.CostOfGoodsSold},
		{"operating_income", &facts.OperatingIncome},
		{"net_income", &facts.NetIncome},
		{"earnings_per_share", &facts.EarningsPerShare},
		{"depreciation_and_amortization", &facts.DepreciationAndAmortization},
		{"interest_expense", &facts.InterestExpense},
		{"interest_income", &facts.InterestIncome},
		{"income_tax_expense", &facts.IncomeTaxExpense},
		{"income_before_taxes", &facts.IncomeBeforeTaxes},
		{"diluted_shares_outstanding", &facts.DilutedSharesOutstanding},
		{"equity", &facts.Equity},
		{"total_debt", &facts.TotalDebt},
		{"total_cash", &facts.TotalCash},
		{"inventories", &facts.Inventories},
		{"accounts_receivable", &facts.AccountsReceivable},
		{"accounts_payable", &facts.AccountsPayable},
		{"accrued_expenses", &facts.AccruedExpenses},
		{"unearned_revenues", &facts.UnearnedRevenues},
		{"unearned_revenues_non_current", &facts.UnearnedRevenuesNonCurrent},
		{"prepaid_expenses", &facts.PrepaidExpenses},
		{"long_term_capital_leases", &facts.LongTermCapitalLeases},
		{"short_term_capital_leases", &facts.ShortTermCapitalLeases},
		{"long_term_debt", &facts.LongTermDebt},
		{"short_term_debt", &facts.ShortTermDebt},
		{"current_assets", &facts.CurrentAssets},
		{"current_liabilities", &facts.CurrentLiabilities},
		{"goodwill", &facts.Goodwill},
		{"total_assets", &facts.TotalAssets},
		{"other_intangibles", &facts.OtherIntangibles},
		{"operating_cash_flow", &facts.OperatingCashFlow},
		{"capital_expenditures", &facts.CapitalExpenditures},
		{"debt_issued", &facts.DebtIssued},
		{"debt_repaid", &facts.DebtRepaid},
		{"dividends_paid", &facts.DividendsPaid},
		{"dividends_per_share", &facts.DividendsPerShare},
		{"repurchased_shares", &facts.RepurchasedShares},
		{"issued_shares", &facts.IssuedShares},
		{"sale_of_assets", &facts.SaleOfAssets},
		{"cash_acquisitions", &facts.CashAcquisitions},
		{"stocks_compensations", &facts.StocksCompensations},
		{"reported_change_in_working_capital", &facts.ReportedChangeInWorkingCapital},
	}
}

// NewPeriodFacts returns a period with every numeric value unset (NaN)
func NewPeriodFacts() *PeriodFacts {
	facts := &PeriodFacts{}
	for _, field := range facts.NumericFields() {
		*field.Value = math.NaN()
	}
	return facts
}

// IsTTM reports whether the period is the trailing-twelve-month period
func (facts *PeriodFacts) IsTTM() bool {
	return facts.PeriodType == PeriodTTM
}

// FiscalYearValue returns the fiscal year as a statement argument; nil for
// the TTM period so it is stored as NULL
func (facts *PeriodFacts) FiscalYearValue() any {
	if facts.FiscalYear == nil || facts.IsTTM() {
		return nil
	}
	return *facts.FiscalYear
}

// Key uniquely identifies the period within a company
func (facts *PeriodFacts) Key() string {
	if facts.IsTTM() || facts.FiscalYear == nil {
		return string(PeriodTTM)
	}
	return fmt.Sprintf("%s:%d", facts.PeriodType, *facts.FiscalYear)
}

func (facts *PeriodFacts) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("CompanyID", facts.CompanyID)
	if facts.FiscalYear != nil {
		e.Int("FiscalYear", *facts.FiscalYear)
	}
	e.Str("PeriodType", string(facts.PeriodType))
}

// Submission is a complete batch of periods for one company
type Submission struct {
	// CompanyID is zero when the company does not exist yet
	CompanyID int64
	Ticker    string
	Sector    string

	// LastYearWorkingCapital is the working capital of the year preceding
	// the first submitted period, used when extending a company by one year
	LastYearWorkingCapital *float64

	Periods []*PeriodFacts
}

func (submission *Submission) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("CompanyID", submission.CompanyID)
	e.Str("Ticker", submission.Ticker)
	e.Str("Sector", submission.Sector)
	e.Int("NumPeriods", len(submission.Periods))
}
