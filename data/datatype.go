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
	"slices"
	"strings"
)

// Table describes the columns written for one persisted record type and the
// key used to resolve conflicts on upsert
type Table struct {
	Name        string
	Columns     []string
	ConflictKey []string
}

const (
	CompaniesKey          = "companies"
	IncomeStatementsKey   = "income_statements"
	BalanceSheetsKey      = "balance_sheets"
	CashFlowStatementsKey = "cash_flow_statements"
	HistoricMetricsKey    = "historic_metrics"
	CompanyMetricsKey     = "company_metrics"
)

var periodKey = []string{"company_id", "fiscal_year", "period_type"}

var IncomeStatements = &Table{
	Name: IncomeStatementsKey,
	Columns: []string{
		"company_id", "fiscal_year", "period_type",
		"revenue", "cost_of_goods_sold", "operating_income", "net_income",
		"earnings_per_share", "depreciation_and_amortization", "interest_expense",
		"interest_income", "income_tax_expense", "income_before_taxes",
		"diluted_shares_outstanding", "nopat",
	},
	ConflictKey: periodKey,
}

var BalanceSheets = &Table{
	Name: BalanceSheetsKey,
	Columns: []string{
		"company_id", "fiscal_year", "period_type",
		"equity", "total_debt", "total_cash", "inventories", "accounts_receivable",
		"accounts_payable", "accrued_expenses", "unearned_revenues",
		"unearned_revenues_non_current", "total_unearned_revenues", "prepaid_expenses",
		"long_term_capital_leases", "short_term_capital_leases", "long_term_debt",
		"short_term_debt", "financial_debt", "cost_of_debt", "current_assets",
		"current_liabilities", "goodwill", "total_assets", "other_intangibles",
	},
	ConflictKey: periodKey,
}

var CashFlowStatements = &Table{
	Name: CashFlowStatementsKey,
	Columns: []string{
		"company_id", "fiscal_year", "period_type",
		"operating_cash_flow", "capital_expenditures", "debt_issued", "debt_repaid",
		"net_debt_issued", "dividends_paid", "dividends_per_share", "repurchased_shares",
		"issued_shares", "net_repurchased_shares", "sale_of_assets", "cash_acquisitions",
		"stocks_compensations", "working_capital", "change_in_working_capital",
		"reported_change_in_working_capital", "free_cash_flow", "free_cash_flow_to_firm",
		"simple_free_cash_flow", "reinvestment_rate",
	},
	ConflictKey: periodKey,
}

// ReitCashFlowStatements is the cash flow shape used for real estate
// companies: no capex or working capital, funds from operations instead
var ReitCashFlowStatements = &Table{
	Name: CashFlowStatementsKey,
	Columns: []string{
		"company_id", "fiscal_year", "period_type",
		"operating_cash_flow", "debt_issued", "debt_repaid", "net_debt_issued",
		"dividends_paid", "dividends_per_share", "repurchased_shares", "issued_shares",
		"net_repurchased_shares", "sale_of_assets", "cash_acquisitions",
		"stocks_compensations", "reported_change_in_working_capital",
		"funds_from_operations", "free_cash_flow", "simple_free_cash_flow",
	},
	ConflictKey: periodKey,
}

var HistoricMetrics = &Table{
	Name: HistoricMetricsKey,
	Columns: []string{
		"company_id", "fiscal_year", "period_type",
		"roe", "roce", "roic", "roe_structural_growth", "roce_structural_growth",
		"roic_structural_growth", "gross_margin", "operating_margin", "net_margin",
		"fcf_margin", "ebitda_margin", "net_cash_per_share", "cash_conversion",
		"net_debt_to_ebitda", "debt_to_equity", "fcf_conversion", "reinvestment_rate",
		"retention_rate", "debt_capital_allocation", "shares_capital_allocation",
		"dividends_capital_allocation", "days_inventory_outstanding",
		"days_sales_outstanding", "days_payable_outstanding", "cash_conversion_cycle",
	},
	ConflictKey: periodKey,
}

var CompanyMetrics = &Table{
	Name: CompanyMetricsKey,
	Columns: []string{
		"company_id",
		"ten_years_eps_growth", "ten_years_fcf_growth", "ten_years_equity_growth",
		"ten_years_revenue_growth", "ten_years_dividend_growth",
		"five_years_eps_growth", "five_years_fcf_growth", "five_years_equity_growth",
		"five_years_revenue_growth", "five_years_dividend_growth", "share_dilution",
		"five_years_roic", "five_years_gross_margin", "five_years_operating_margin",
		"five_years_fcf_margin", "five_years_reinvestment_rate",
		"consecutive_dividend_growth_years", "consecutive_dividend_paying_years",
		"median_payout_ratio", "operating_margin_trend", "gross_margin_trend", "roic_trend",
		"roic", "roe", "current_ratio", "gross_margin", "operating_margin", "net_margin",
		"fcf_margin", "ebitda_margin", "cash_conversion", "net_cash_per_share",
		"debt_to_ebitda", "debt_to_equity", "score",
	},
	ConflictKey: []string{"company_id"},
}

// UpsertSQL builds a multi-row insert for numRows rows that updates every
// non-key column when a row with the same conflict key already exists.
// Arguments are expected row by row in column order.
func (tbl *Table) UpsertSQL(numRows int) string {
	numCols := len(tbl.Columns)

	values := make([]string, 0, numRows)
	for row := 0; row < numRows; row++ {
		placeholders := make([]string, numCols)
		for col := 0; col < numCols; col++ {
			placeholders[col] = fmt.Sprintf("$%d", row*numCols+col+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
	}

	updates := make([]string, 0, numCols)
	for _, col := range tbl.Columns {
		if slices.Contains(tbl.ConflictKey, col) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%[1]s = EXCLUDED.%[1]s", col))
	}
	updates = append(updates, "updated_on = now()")

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s`,
		tbl.Name,
		strings.Join(tbl.Columns, ", "),
		strings.Join(values, ", "),
		strings.Join(tbl.ConflictKey, ", "),
		strings.Join(updates, ", "))
}

// Validate checks that a row has one value per column
func (tbl *Table) Validate(row []any) error {
	if len(row) != len(tbl.Columns) {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrColumnMismatch, tbl.Name, len(tbl.Columns), len(row))
	}
	return nil
}
