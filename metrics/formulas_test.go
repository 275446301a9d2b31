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
package metrics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
)

var _ = Describe("Formulas", func() {
	var facts *data.PeriodFacts

	BeforeEach(func() {
		facts = annualPeriod(2020, 1)
	})

	Context("margins", func() {
		It("computes gross, operating and net margin in percent", func() {
			Expect(metrics.GrossMargin(facts)).To(Equal(40.0))
			Expect(metrics.OperatingMargin(facts)).To(Equal(20.0))
			Expect(metrics.NetMargin(facts)).To(Equal(15.0))
		})

		It("adds depreciation back for the EBITDA margin", func() {
			Expect(metrics.EbitdaMargin(facts)).To(Equal(25.0))
		})

		It("treats missing depreciation as zero", func() {
			facts.DepreciationAndAmortization = math.NaN()
			Expect(metrics.Ebitda(facts)).To(Equal(200.0))
		})

		It("is not finite without revenue", func() {
			facts.Revenue = 0
			Expect(metrics.IsFinite(metrics.OperatingMargin(facts))).To(BeFalse())
		})
	})

	Context("returns", func() {
		It("uses equity alone for the first period", func() {
			Expect(metrics.ReturnOnEquity(100, 80, 10, 0)).To(Equal(10.0))
		})

		It("averages equity with the prior period", func() {
			Expect(metrics.ReturnOnEquity(100, 80, 10, 1)).To(Equal(11.11))
		})

		It("computes NOPAT with a signed tax expense", func() {
			// tax rate is -40/190
			Expect(metrics.Nopat(facts)).To(BeNumerically("~", 200*(1-40.0/190.0), 1e-9))
		})

		It("has no tax without pre-tax income", func() {
			facts.IncomeBeforeTaxes = 0
			Expect(metrics.TaxRate(facts)).To(Equal(0.0))
			Expect(metrics.Nopat(facts)).To(Equal(facts.OperatingIncome))
		})

		It("computes ROIC over net debt plus equity", func() {
			roic := metrics.ReturnOnInvestedCapital(200, -40, 190, 100, 800)
			Expect(roic).To(Equal(metrics.Round2(200 * (1 - 40.0/190.0) / 900 * 100)))
		})

		It("averages ROCE with the prior period", func() {
			first := metrics.ReturnOnCapitalEmployed(100, 0, 400, 0, 100, 0, 0)
			Expect(first).To(Equal(20.0))

			second := metrics.ReturnOnCapitalEmployed(100, 50, 400, 400, 100, 100, 1)
			Expect(second).To(Equal(15.0))
		})

		It("scales structural growth by what was retained", func() {
			Expect(metrics.StructuralGrowth(20, 100, -30, -20)).To(Equal(10.0))
			Expect(metrics.StructuralGrowth(20, 100, math.NaN(), math.NaN())).To(Equal(20.0))
		})
	})

	Context("balance sheet", func() {
		It("computes net cash per share", func() {
			Expect(metrics.NetCashPerShare(facts)).To(Equal(-1.0))
		})

		It("reports zero debt to EBITDA for net cash companies", func() {
			facts.TotalCash = 1000
			Expect(metrics.DebtToEbitda(facts)).To(Equal(0.0))
		})

		It("computes debt to EBITDA for indebted companies", func() {
			Expect(metrics.DebtToEbitda(facts)).To(Equal(0.4))
		})

		It("reports zero debt to equity without equity", func() {
			facts.Equity = 0
			Expect(metrics.DebtToEquity(facts)).To(Equal(0.0))
		})

		It("excludes capital leases from financial debt", func() {
			facts.LongTermCapitalLeases = 50
			facts.ShortTermCapitalLeases = 25
			Expect(metrics.FinancialDebt(facts)).To(Equal(225.0))
			Expect(metrics.CostOfDebt(facts)).To(Equal(4.44))
		})

		It("never reports negative financial debt", func() {
			facts.LongTermCapitalLeases = 500
			Expect(metrics.FinancialDebt(facts)).To(Equal(0.0))
			Expect(metrics.CostOfDebt(facts)).To(Equal(0.0))
		})

		It("computes the current ratio", func() {
			Expect(metrics.CurrentRatio(facts)).To(Equal(2.0))
		})
	})

	Context("efficiency", func() {
		It("uses the current balance for the first period", func() {
			series := []*data.PeriodFacts{facts}
			Expect(metrics.DaysSalesOutstanding(0, series)).To(Equal(metrics.Round2(120.0 / 1000 * 365)))
		})

		It("averages balances with the prior period", func() {
			next := annualPeriod(2021, 2)
			series := []*data.PeriodFacts{facts, next}
			Expect(metrics.DaysInventoryOutstanding(1, series)).To(Equal(metrics.Round2(150.0 / 1200 * 365)))
		})

		It("combines the cycle", func() {
			Expect(metrics.CashConversionCycle(30, 40, 20)).To(Equal(50.0))
		})
	})

	Context("capital allocation", func() {
		It("is zero when net borrowing was positive", func() {
			facts.DebtIssued = 100
			facts.DebtRepaid = -50
			Expect(metrics.DebtCapitalAllocation(facts, 100)).To(Equal(0.0))
		})

		It("reports net repayments as a share of free cash flow", func() {
			facts.DebtIssued = 50
			facts.DebtRepaid = -100
			Expect(metrics.DebtCapitalAllocation(facts, 200)).To(Equal(25.0))
		})

		It("reports buybacks and dividends as a share of free cash flow", func() {
			Expect(metrics.SharesCapitalAllocation(facts, 100)).To(Equal(20.0))
			Expect(metrics.DividendsCapitalAllocation(facts, 100)).To(Equal(50.0))
		})
	})

	Context("growth", func() {
		It("matches the compound annual growth formula", func() {
			series := window(10, false)
			expected := metrics.Round2((math.Pow(series[9].Revenue/series[0].Revenue, 1.0/9) - 1) * 100)

			cagr := metrics.Cagr(9, series, metrics.Revenue)
			Expect(cagr).NotTo(BeNil())
			Expect(*cagr).To(Equal(expected))
			Expect(*cagr).To(BeNumerically("~", 10.0, 0.01))
		})

		It("ignores the trailing period", func() {
			series := window(10, true)
			_, err := metrics.Classify(series)
			Expect(err).NotTo(HaveOccurred())

			Expect(*metrics.Cagr(9, series, metrics.Revenue)).To(Equal(*metrics.Cagr(9, series[:10], metrics.Revenue)))
		})

		It("is nil without enough history", func() {
			Expect(metrics.Cagr(9, window(9, false), metrics.Revenue)).To(BeNil())
			Expect(metrics.CagrValues(0, []float64{1, 2})).To(BeNil())
		})

		It("is zero when the rate is not finite", func() {
			cagr := metrics.CagrValues(2, []float64{0, 1, 2})
			Expect(cagr).NotTo(BeNil())
			Expect(*cagr).To(Equal(0.0))

			cagr = metrics.CagrValues(2, []float64{-1, 1, 2})
			Expect(*cagr).To(Equal(0.0))
		})

		It("averages the last values counting non-finite ones as zero", func() {
			Expect(*metrics.AverageLast(2, []float64{100, 10, 20})).To(Equal(15.0))
			Expect(*metrics.AverageLast(2, []float64{10, math.NaN()})).To(Equal(5.0))
			Expect(metrics.AverageLast(3, []float64{1, 2})).To(BeNil())
		})

		It("takes the median of odd and even series", func() {
			Expect(metrics.Median([]float64{3, 1, 2})).To(Equal(2.0))
			Expect(metrics.Median([]float64{4, 1, 3, 2})).To(Equal(2.5))
			Expect(math.IsNaN(metrics.Median(nil))).To(BeTrue())
		})
	})
})
