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
	"math"
	"slices"

	"github.com/penny-vault/pvmetrics/data"
)

// Formulas never fail on bad data: division by zero yields NaN or an
// infinity which is sanitized before it is persisted or scored.

// percent returns num/den expressed as a percentage rounded to 2 decimals
func percent(num, den float64) float64 {
	return Round2(num / den * 100)
}

func GrossMargin(facts *data.PeriodFacts) float64 {
	return percent(facts.Revenue-facts.CostOfGoodsSold, facts.Revenue)
}

func OperatingMargin(facts *data.PeriodFacts) float64 {
	return percent(facts.OperatingIncome, facts.Revenue)
}

func NetMargin(facts *data.PeriodFacts) float64 {
	return percent(facts.NetIncome, facts.Revenue)
}

func EbitdaMargin(facts *data.PeriodFacts) float64 {
	return percent(Ebitda(facts), facts.Revenue)
}

func FreeCashFlowMargin(fcf, revenue float64) float64 {
	return percent(fcf, revenue)
}

func Ebitda(facts *data.PeriodFacts) float64 {
	return facts.OperatingIncome + orZero(facts.DepreciationAndAmortization)
}

// TaxRate is income tax expense over income before taxes; 0 when there was
// no pre-tax income. Tax expense is signed like every other outflow.
func TaxRate(facts *data.PeriodFacts) float64 {
	if facts.IncomeBeforeTaxes == 0 {
		return 0
	}
	return facts.IncomeTaxExpense / facts.IncomeBeforeTaxes
}

// Nopat is the net operating profit after tax
func Nopat(facts *data.PeriodFacts) float64 {
	return facts.OperatingIncome * (1 + TaxRate(facts))
}

// ReturnOnEquity divides by the current equity for the first period of a
// window and by the average of the current and prior equity otherwise.
func ReturnOnEquity(equity, prevEquity, netIncome float64, index int) float64 {
	if index == 0 {
		return percent(netIncome, equity)
	}
	return percent(netIncome, (equity+prevEquity)/2)
}

// ReturnOnCapitalEmployed averages the current and prior period's ratio
// except for the first period of a window.
func ReturnOnCapitalEmployed(operatingIncome, prevOperatingIncome, equity, prevEquity, financialDebt, prevFinancialDebt float64, index int) float64 {
	current := operatingIncome / (financialDebt + equity)
	if index == 0 {
		return Round2(current * 100)
	}
	prev := prevOperatingIncome / (prevFinancialDebt + prevEquity)
	return Round2((current + prev) / 2 * 100)
}

func ReturnOnInvestedCapital(operatingIncome, incomeTaxExpense, incomeBeforeTaxes, netDebt, equity float64) float64 {
	nopat := operatingIncome * (1 + incomeTaxExpense/incomeBeforeTaxes)
	return Round2(nopat / (netDebt + equity) * 100)
}

// StructuralGrowth scales a return by the share of base that was retained
// after dividends and buybacks (both negative when paid out)
func StructuralGrowth(rate, base, dividendsPaid, repurchasedShares float64) float64 {
	return Round2(rate * (base + orZero(dividendsPaid) + orZero(repurchasedShares)) / base)
}

func RetentionRate(facts *data.PeriodFacts) float64 {
	return percent(facts.NetIncome+orZero(facts.DividendsPaid)+orZero(facts.RepurchasedShares), facts.NetIncome)
}

// ReinvestmentRate is acquisitions plus growth capex (capex above
// depreciation) as a share of free cash flow
func ReinvestmentRate(idx int, series []*data.PeriodFacts, fcf []float64) float64 {
	facts := series[idx]
	acquisitions := -orZero(facts.CashAcquisitions)
	growthCapex := math.Max(0, math.Abs(facts.CapitalExpenditures)-orZero(facts.DepreciationAndAmortization))
	return Round2((acquisitions + growthCapex) / fcf[idx] * 100)
}

func NetCashPerShare(facts *data.PeriodFacts) float64 {
	return Round2((facts.TotalCash - orZero(facts.TotalDebt)) / facts.DilutedSharesOutstanding)
}

func CashConversion(facts *data.PeriodFacts) float64 {
	return percent(facts.OperatingCashFlow, facts.OperatingIncome)
}

func NetDebtToEbitda(facts *data.PeriodFacts) float64 {
	return Round2((orZero(facts.TotalDebt) - facts.TotalCash) / Ebitda(facts))
}

// DebtToEbitda is zero for companies holding more cash than debt
func DebtToEbitda(facts *data.PeriodFacts) float64 {
	netDebt := orZero(facts.TotalDebt) - facts.TotalCash
	if netDebt <= 0 {
		return 0
	}
	return Round2(netDebt / Ebitda(facts))
}

func DebtToEquity(facts *data.PeriodFacts) float64 {
	if facts.Equity == 0 {
		return 0
	}
	return Round2(orZero(facts.TotalDebt) / facts.Equity)
}

func CurrentRatio(facts *data.PeriodFacts) float64 {
	return Round2(facts.CurrentAssets / facts.CurrentLiabilities)
}

func FreeCashFlowConversion(fcf, netIncome float64) float64 {
	return percent(fcf, netIncome)
}

// DebtCapitalAllocation is the share of free cash flow used to pay down
// debt; zero when the company borrowed more than it repaid
func DebtCapitalAllocation(facts *data.PeriodFacts, fcf float64) float64 {
	ratio := (orZero(facts.DebtRepaid) + orZero(facts.DebtIssued)) / fcf * 100
	if ratio > 0 {
		return 0
	}
	return Round2(math.Abs(ratio))
}

func SharesCapitalAllocation(facts *data.PeriodFacts, fcf float64) float64 {
	return Round2(math.Abs(orZero(facts.RepurchasedShares) / fcf * 100))
}

func DividendsCapitalAllocation(facts *data.PeriodFacts, fcf float64) float64 {
	return Round2(math.Abs(orZero(facts.DividendsPaid) / fcf * 100))
}

// FinancialDebt excludes capital leases from total debt
func FinancialDebt(facts *data.PeriodFacts) float64 {
	return math.Max(0, orZero(facts.TotalDebt)-orZero(facts.LongTermCapitalLeases)-orZero(facts.ShortTermCapitalLeases))
}

func CostOfDebt(facts *data.PeriodFacts) float64 {
	financialDebt := FinancialDebt(facts)
	if financialDebt == 0 {
		return 0
	}
	return percent(math.Abs(orZero(facts.InterestExpense)), financialDebt)
}

func TotalUnearnedRevenues(facts *data.PeriodFacts) float64 {
	return orZero(facts.UnearnedRevenues) + orZero(facts.UnearnedRevenuesNonCurrent)
}

// daysOutstanding averages a balance with the prior period (current only
// for the first period of a window) and expresses it in days of flow
func daysOutstanding(current, prev float64, idx int, flow float64) float64 {
	balance := orZero(current)
	if idx > 0 {
		balance = (balance + orZero(prev)) / 2
	}
	return Round2(balance / flow * 365)
}

func DaysInventoryOutstanding(idx int, series []*data.PeriodFacts) float64 {
	facts, prev := current(idx, series)
	return daysOutstanding(facts.Inventories, prev.Inventories, idx, facts.CostOfGoodsSold)
}

func DaysSalesOutstanding(idx int, series []*data.PeriodFacts) float64 {
	facts, prev := current(idx, series)
	return daysOutstanding(facts.AccountsReceivable, prev.AccountsReceivable, idx, facts.Revenue)
}

func DaysPayableOutstanding(idx int, series []*data.PeriodFacts) float64 {
	facts, prev := current(idx, series)
	return daysOutstanding(facts.AccountsPayable, prev.AccountsPayable, idx, facts.CostOfGoodsSold)
}

func CashConversionCycle(dio, dso, dpo float64) float64 {
	return Round2(dio + dso - dpo)
}

func current(idx int, series []*data.PeriodFacts) (*data.PeriodFacts, *data.PeriodFacts) {
	if idx == 0 {
		return series[0], series[0]
	}
	return series[idx], series[idx-1]
}

// Metric selects one raw value from a period
type Metric func(*data.PeriodFacts) float64

var (
	Revenue           Metric = func(facts *data.PeriodFacts) float64 { return facts.Revenue }
	EarningsPerShare  Metric = func(facts *data.PeriodFacts) float64 { return facts.EarningsPerShare }
	Equity            Metric = func(facts *data.PeriodFacts) float64 { return facts.Equity }
	DividendsPerShare Metric = func(facts *data.PeriodFacts) float64 { return orZero(facts.DividendsPerShare) }
	DilutedShares     Metric = func(facts *data.PeriodFacts) float64 { return facts.DilutedSharesOutstanding }
)

// Cagr computes the compound annual growth rate over the last years+1
// annual periods of series, in percent. The TTM period is ignored. Returns
// nil when there is not enough history and 0 when the rate is not finite.
func Cagr(years int, series []*data.PeriodFacts, metric Metric) *float64 {
	values := make([]float64, 0, len(series))
	for _, facts := range series {
		if facts.IsTTM() {
			continue
		}
		values = append(values, metric(facts))
	}
	return CagrValues(years, values)
}

// CagrValues is Cagr over a plain series ordered oldest to newest
func CagrValues(years int, values []float64) *float64 {
	if years <= 0 || len(values) <= years {
		return nil
	}

	last := len(values) - 1
	growth := math.Pow(values[last]/values[last-years], 1/float64(years)) - 1
	rate := Sanitize(Round2(growth*100), 0)
	return &rate
}

// AverageLast averages the final n values; non-finite values count as 0
func AverageLast(n int, values []float64) *float64 {
	if n <= 0 || len(values) < n {
		return nil
	}

	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += Sanitize(v, 0)
	}
	return SanitizeOrNull(Round2(sum / float64(n)))
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Round2(sorted[mid])
	}
	return Round2((sorted[mid-1] + sorted[mid]) / 2)
}
