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

	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/rs/zerolog"
)

// raw stores a reported value; values that were not reported become NULL
func raw(v float64) *float64 {
	return metrics.SanitizeOrNull(v)
}

// computed stores a derived value rounded to two decimals with non-finite
// results written as 0
func computed(v float64) float64 {
	return metrics.Round2(metrics.Sanitize(v, 0))
}

func trend(t *data.Trend) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func periodKey(companyID int64, facts *data.PeriodFacts) []any {
	return []any{companyID, facts.FiscalYearValue(), string(facts.PeriodType)}
}

func incomeStatementRow(companyID int64, period *metrics.AssembledPeriod) []any {
	facts := period.Facts
	return append(periodKey(companyID, facts),
		raw(facts.Revenue),
		raw(facts.CostOfGoodsSold),
		raw(facts.OperatingIncome),
		raw(facts.NetIncome),
		raw(facts.EarningsPerShare),
		raw(facts.DepreciationAndAmortization),
		raw(facts.InterestExpense),
		raw(facts.InterestIncome),
		raw(facts.IncomeTaxExpense),
		raw(facts.IncomeBeforeTaxes),
		raw(facts.DilutedSharesOutstanding),
		computed(period.Reconciliation.Nopat),
	)
}

func balanceSheetRow(companyID int64, period *metrics.AssembledPeriod) []any {
	facts := period.Facts
	return append(periodKey(companyID, facts),
		raw(facts.Equity),
		raw(facts.TotalDebt),
		raw(facts.TotalCash),
		raw(facts.Inventories),
		raw(facts.AccountsReceivable),
		raw(facts.AccountsPayable),
		raw(facts.AccruedExpenses),
		raw(facts.UnearnedRevenues),
		raw(facts.UnearnedRevenuesNonCurrent),
		computed(period.Reconciliation.TotalUnearnedRevenues),
		raw(facts.PrepaidExpenses),
		raw(facts.LongTermCapitalLeases),
		raw(facts.ShortTermCapitalLeases),
		raw(facts.LongTermDebt),
		raw(facts.ShortTermDebt),
		computed(period.Reconciliation.FinancialDebt),
		computed(period.Reconciliation.CostOfDebt),
		raw(facts.CurrentAssets),
		raw(facts.CurrentLiabilities),
		raw(facts.Goodwill),
		raw(facts.TotalAssets),
		raw(facts.OtherIntangibles),
	)
}

// cashFlowStatementRow matches the column layout of variant.CashFlowTable()
func cashFlowStatementRow(companyID int64, period *metrics.AssembledPeriod, variant metrics.Variant) []any {
	facts := period.Facts
	rec := period.Reconciliation

	if variant == metrics.Reit {
		var ffo *float64
		if rec.FundsFromOperations != nil {
			v := computed(*rec.FundsFromOperations)
			ffo = &v
		}

		return append(periodKey(companyID, facts),
			raw(facts.OperatingCashFlow),
			raw(facts.DebtIssued),
			raw(facts.DebtRepaid),
			computed(rec.NetDebtIssued),
			raw(facts.DividendsPaid),
			raw(facts.DividendsPerShare),
			raw(facts.RepurchasedShares),
			raw(facts.IssuedShares),
			computed(rec.NetRepurchasedShares),
			raw(facts.SaleOfAssets),
			raw(facts.CashAcquisitions),
			raw(facts.StocksCompensations),
			raw(facts.ReportedChangeInWorkingCapital),
			ffo,
			computed(rec.FreeCashFlow),
			computed(rec.SimpleFreeCashFlow),
		)
	}

	var change *float64
	if rec.ChangeInWorkingCapital != nil {
		v := computed(*rec.ChangeInWorkingCapital)
		change = &v
	}

	return append(periodKey(companyID, facts),
		raw(facts.OperatingCashFlow),
		raw(facts.CapitalExpenditures),
		raw(facts.DebtIssued),
		raw(facts.DebtRepaid),
		computed(rec.NetDebtIssued),
		raw(facts.DividendsPaid),
		raw(facts.DividendsPerShare),
		raw(facts.RepurchasedShares),
		raw(facts.IssuedShares),
		computed(rec.NetRepurchasedShares),
		raw(facts.SaleOfAssets),
		raw(facts.CashAcquisitions),
		raw(facts.StocksCompensations),
		computed(rec.WorkingCapital),
		change,
		raw(facts.ReportedChangeInWorkingCapital),
		computed(rec.FreeCashFlow),
		computed(rec.FreeCashFlowToFirm),
		computed(rec.SimpleFreeCashFlow),
		computed(period.Derived.ReinvestmentRate),
	)
}

func historicMetricsRow(companyID int64, period *metrics.AssembledPeriod) []any {
	derived := period.Derived
	return append(periodKey(companyID, period.Facts),
		computed(derived.ReturnOnEquity),
		computed(derived.ReturnOnCapitalEmployed),
		computed(derived.ReturnOnInvestedCapital),
		computed(derived.RoeStructuralGrowth),
		computed(derived.RoceStructuralGrowth),
		computed(derived.RoicStructuralGrowth),
		computed(derived.GrossMargin),
		computed(derived.OperatingMargin),
		computed(derived.NetMargin),
		computed(derived.FreeCashFlowMargin),
		computed(derived.EbitdaMargin),
		computed(derived.NetCashPerShare),
		computed(derived.CashConversion),
		computed(derived.NetDebtToEbitda),
		computed(derived.DebtToEquity),
		computed(derived.FreeCashFlowConversion),
		computed(derived.ReinvestmentRate),
		computed(derived.RetentionRate),
		computed(derived.DebtCapitalAllocation),
		computed(derived.SharesCapitalAllocation),
		computed(derived.DividendsCapitalAllocation),
		computed(derived.DaysInventoryOutstanding),
		computed(derived.DaysSalesOutstanding),
		computed(derived.DaysPayableOutstanding),
		computed(derived.CashConversionCycle),
	)
}

func companyMetricsRow(companyID int64, aggregate *data.CompanyAggregateMetrics) []any {
	clean := metrics.Sanitized(aggregate)
	return []any{
		companyID,
		clean.TenYearsEpsGrowth,
		clean.TenYearsFcfGrowth,
		clean.TenYearsEquityGrowth,
		clean.TenYearsRevenueGrowth,
		clean.TenYearsDividendGrowth,
		clean.FiveYearsEpsGrowth,
		clean.FiveYearsFcfGrowth,
		clean.FiveYearsEquityGrowth,
		clean.FiveYearsRevenueGrowth,
		clean.FiveYearsDividendGrowth,
		clean.ShareDilution,
		clean.FiveYearsRoic,
		clean.FiveYearsGrossMargin,
		clean.FiveYearsOperatingMargin,
		clean.FiveYearsFcfMargin,
		clean.FiveYearsReinvestmentRate,
		clean.ConsecutiveDividendGrowthYears,
		clean.ConsecutiveDividendPayingYears,
		clean.MedianPayoutRatio,
		trend(clean.OperatingMarginTrend),
		trend(clean.GrossMarginTrend),
		trend(clean.RoicTrend),
		clean.Roic,
		clean.ReturnOnEquity,
		clean.CurrentRatio,
		clean.GrossMargin,
		clean.OperatingMargin,
		clean.NetMargin,
		clean.FcfMargin,
		clean.EbitdaMargin,
		clean.CashConversion,
		clean.NetCashPerShare,
		clean.DebtToEbitda,
		clean.DebtToEquity,
		computed(clean.Score),
	}
}

// upsert writes all rows to table with a single statement
func upsert(ctx context.Context, tx pgx.Tx, table *data.Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	args := make([]any, 0, len(rows)*len(table.Columns))
	for _, row := range rows {
		if err := table.Validate(row); err != nil {
			return err
		}
		args = append(args, row...)
	}

	sql := table.UpsertSQL(len(rows))
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("Table", table.Name).Int("NumRows", len(rows)).Str("SQL", sql).Msg("upsert failed")
		return err
	}

	return nil
}
