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
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/penny-vault/pvmetrics/cache"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/penny-vault/pvmetrics/score"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type scoredCompany struct {
	Ticker string  `db:"ticker"`
	Sector string  `db:"sector"`
	Score  float64 `db:"score"`
}

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString("# pvmetrics\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	// Database connection string
	if _, err := builder.WriteString(fmt.Sprintf("Database: %s\n\n", myLibrary.DBUrl)); err != nil {
		return "", err
	}

	numCompanies, err := myLibrary.NumCompanies(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Companies Scored: %d\n\n", numCompanies)); err != nil {
		return "", err
	}

	lastUpdated, err := myLibrary.LastUpdated(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(lastUpdatedLine(lastUpdated)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Top companies\n\n"); err != nil {
		return "", err
	}

	var top []*scoredCompany
	if err := pgxscan.Select(ctx, myLibrary.Pool, &top, `SELECT c.ticker, c.sector, m.score
FROM companies c JOIN company_metrics m ON m.company_id = c.company_id
ORDER BY m.score DESC, c.ticker LIMIT 20`); err != nil {
		return "", err
	}

	for _, company := range top {
		if _, err := builder.WriteString(p.Sprintf("  * %s (%s): %.2f\n", company.Ticker, company.Sector, company.Score)); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}

// CompanySummary describes the stored metrics of one company in markdown
func (myLibrary *Library) CompanySummary(ctx context.Context, ticker string) (string, error) {
	key := cache.TickerPath(ticker) + "/summary"
	if myLibrary.Rendered != nil {
		if rendered, ok := myLibrary.Rendered.Get(key); ok {
			return string(rendered), nil
		}
	}

	company, err := myLibrary.CompanyByTicker(ctx, ticker)
	if err != nil {
		return "", err
	}

	aggregate := &data.CompanyAggregateMetrics{}
	sql := fmt.Sprintf("SELECT %s, updated_on FROM company_metrics WHERE company_id = $1", strings.Join(data.CompanyMetrics.Columns, ", "))
	if err := pgxscan.Get(ctx, myLibrary.Pool, aggregate, sql, company.CompanyID); err != nil {
		return "", err
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("# %s\n\n", company.Ticker))
	builder.WriteString(fmt.Sprintf("Sector: %s (%s)\n\n", company.Sector, metrics.SelectVariant(company.Sector)))
	builder.WriteString(lastUpdatedLine(aggregate.UpdatedOn))
	writeAggregate(&builder, aggregate)

	if myLibrary.Rendered != nil {
		myLibrary.Rendered.Set(key, []byte(builder.String()))
	}

	return builder.String(), nil
}

// RenderAssembly describes a computed but unsaved company in markdown
func RenderAssembly(ticker string, assembly *metrics.Assembly) string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s\n\n", ticker))
	builder.WriteString(fmt.Sprintf("Variant: %s\n\n", assembly.Variant))

	builder.WriteString("## Periods\n\n")
	builder.WriteString("| Period | Revenue | Gross Margin | Operating Margin | ROIC | FCF | FCF Margin |\n")
	builder.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, period := range assembly.Periods {
		label := "TTM"
		if !period.Facts.IsTTM() {
			label = fmt.Sprintf("%d", *period.Facts.FiscalYear)
		}
		builder.WriteString(p.Sprintf("| %s | %.0f | %.2f%% | %.2f%% | %.2f%% | %.0f | %.2f%% |\n",
			label,
			metrics.Sanitize(period.Facts.Revenue, 0),
			metrics.Round2(metrics.Sanitize(period.Derived.GrossMargin, 0)),
			metrics.Round2(metrics.Sanitize(period.Derived.OperatingMargin, 0)),
			metrics.Round2(metrics.Sanitize(period.Derived.ReturnOnInvestedCapital, 0)),
			metrics.Sanitize(period.Reconciliation.FreeCashFlow, 0),
			metrics.Round2(metrics.Sanitize(period.Derived.FreeCashFlowMargin, 0))))
	}
	builder.WriteString("\n")

	writeAggregate(&builder, metrics.Sanitized(assembly.Aggregate))

	return builder.String()
}

func lastUpdatedLine(lastUpdated time.Time) string {
	if lastUpdated.Equal(time.Time{}) {
		return "Last Updated: Never\n\n"
	}
	return fmt.Sprintf("Last Updated: %s (%s)\n\n", timeago.English.Format(lastUpdated), lastUpdated.Local().Format("01/02/2006"))
}

func writeAggregate(builder *strings.Builder, aggregate *data.CompanyAggregateMetrics) {
	p := message.NewPrinter(language.English)

	builder.WriteString("## Growth\n\n")
	builder.WriteString("| | 10 years | 5 years |\n|---|---:|---:|\n")
	for _, row := range []struct {
		name      string
		ten, five *float64
	}{
		{"EPS", aggregate.TenYearsEpsGrowth, aggregate.FiveYearsEpsGrowth},
		{"FCF", aggregate.TenYearsFcfGrowth, aggregate.FiveYearsFcfGrowth},
		{"Equity", aggregate.TenYearsEquityGrowth, aggregate.FiveYearsEquityGrowth},
		{"Revenue", aggregate.TenYearsRevenueGrowth, aggregate.FiveYearsRevenueGrowth},
		{"Dividend", aggregate.TenYearsDividendGrowth, aggregate.FiveYearsDividendGrowth},
	} {
		builder.WriteString(fmt.Sprintf("| %s | %s | %s |\n", row.name, percentOrDash(row.ten), percentOrDash(row.five)))
	}
	builder.WriteString("\n")

	builder.WriteString("## Latest\n\n")
	builder.WriteString(p.Sprintf("  * ROIC: %.2f%% (trend %s)\n", aggregate.Roic, trendOrDash(aggregate.RoicTrend)))
	builder.WriteString(p.Sprintf("  * Gross margin: %.2f%% (trend %s)\n", aggregate.GrossMargin, trendOrDash(aggregate.GrossMarginTrend)))
	builder.WriteString(p.Sprintf("  * Operating margin: %.2f%% (trend %s)\n", aggregate.OperatingMargin, trendOrDash(aggregate.OperatingMarginTrend)))
	builder.WriteString(p.Sprintf("  * Current ratio: %.2f\n", aggregate.CurrentRatio))
	builder.WriteString(p.Sprintf("  * Debt to EBITDA: %.2f\n", aggregate.DebtToEbitda))
	builder.WriteString(p.Sprintf("  * Net cash per share: %.2f\n", aggregate.NetCashPerShare))
	builder.WriteString(p.Sprintf("  * Share dilution: %s\n", percentOrDash(aggregate.ShareDilution)))
	builder.WriteString(p.Sprintf("  * Dividend growth streak: %d years, paying for %d years\n\n",
		aggregate.ConsecutiveDividendGrowthYears, aggregate.ConsecutiveDividendPayingYears))

	builder.WriteString(p.Sprintf("## Score: %.2f\n\n", aggregate.Score))
	for _, match := range score.NewEngine().Explain(score.FromAggregate(aggregate)) {
		builder.WriteString(p.Sprintf("  * %s: %+.1f\n", match.Rule, match.Points))
	}
}

func percentOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func trendOrDash(t *data.Trend) string {
	if t == nil {
		return "-"
	}
	return string(*t)
}
