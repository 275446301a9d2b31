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
package library_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/cache"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/penny-vault/pvmetrics/validate"
)

func fields(err error) []string {
	var errs validate.Errors
	Expect(errors.As(err, &errs)).To(BeTrue())

	names := make([]string, len(errs))
	for idx, fieldErr := range errs {
		names[idx] = fieldErr.Field
	}
	return names
}

func float(v any) float64 {
	ptr, ok := v.(*float64)
	Expect(ok).To(BeTrue(), "expected *float64, got %T", v)
	Expect(ptr).NotTo(BeNil())
	return *ptr
}

var _ = Describe("Pipeline", func() {
	var (
		ctx       context.Context
		db        *fakeDB
		invalid   *recordingCache
		pipeline  *library.Pipeline
		cashFlows = data.CashFlowStatementsKey
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newFakeDB()
		invalid = &recordingCache{}
		pipeline = &library.Pipeline{
			DB:            db,
			History:       fakeHistory{db: db},
			Cache:         invalid,
			FcfDefinition: metrics.FcfFromNetIncome,
		}
	})

	Describe("Submit", func() {
		It("saves a new company", func() {
			companyID, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(3, true)))
			Expect(err).NotTo(HaveOccurred())
			Expect(companyID).To(Equal(int64(1)))

			for _, table := range []string{data.IncomeStatementsKey, data.BalanceSheetsKey, cashFlows, data.HistoricMetricsKey} {
				Expect(db.Count(table)).To(Equal(4), table)
			}
			Expect(db.Count(data.CompanyMetricsKey)).To(Equal(1))

			Expect(db.commits).To(Equal(1))
			Expect(db.acquired).To(Equal(1))
			Expect(db.released).To(Equal(1))
		})

		It("stores unset values as NULL and computed values rounded", func() {
			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(3, true)))
			Expect(err).NotTo(HaveOccurred())

			balance := db.Row(data.BalanceSheetsKey, 1, 2014, data.PeriodAnnual)
			Expect(balance["goodwill"]).To(BeNil())
			Expect(float(balance["equity"])).To(Equal(800.0))

			first := db.Row(cashFlows, 1, 2014, data.PeriodAnnual)
			Expect(first["change_in_working_capital"]).To(BeNil())
			Expect(first["free_cash_flow"]).To(Equal(140.0))
			Expect(first["working_capital"]).To(Equal(100.0))

			second := db.Row(cashFlows, 1, 2015, data.PeriodAnnual)
			Expect(float(second["change_in_working_capital"])).To(Equal(10.0))

			ttm := db.Row(data.IncomeStatementsKey, 1, nil, data.PeriodTTM)
			Expect(ttm).NotTo(BeNil())
			Expect(ttm["fiscal_year"]).To(BeNil())
		})

		It("writes the company aggregate", func() {
			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(10, true)))
			Expect(err).NotTo(HaveOccurred())

			aggregate := db.CompanyMetrics(1)
			Expect(float(aggregate["ten_years_revenue_growth"])).To(BeNumerically("~", 10.0, 0.01))
			Expect(aggregate["consecutive_dividend_paying_years"]).To(Equal(10))
			Expect(float(aggregate["median_payout_ratio"])).To(BeNumerically(">", 0))
			Expect(aggregate["score"]).To(BeNumerically(">", 0))

			trend, ok := aggregate["gross_margin_trend"].(*string)
			Expect(ok).To(BeTrue())
			Expect(*trend).To(Equal(string(data.TrendNeutral)))
		})

		It("uses the supplied working capital baseline", func() {
			sub := submission("ACME", "Industrials", history(2, false))
			baseline := 40.0
			sub.LastYearWorkingCapital = &baseline

			_, err := pipeline.Submit(ctx, sub)
			Expect(err).NotTo(HaveOccurred())
			Expect(float(db.Row(cashFlows, 1, 2014, data.PeriodAnnual)["change_in_working_capital"])).To(Equal(60.0))
		})

		It("writes the REIT cash flow shape", func() {
			_, err := pipeline.Submit(ctx, submission("O", "Real Estate", history(2, false)))
			Expect(err).NotTo(HaveOccurred())

			cashFlow := db.Row(cashFlows, 1, 2014, data.PeriodAnnual)
			Expect(float(cashFlow["funds_from_operations"])).To(Equal(200.0))
			Expect(cashFlow["free_cash_flow"]).To(Equal(200.0))
			Expect(cashFlow).NotTo(HaveKey("capital_expenditures"))
			Expect(cashFlow).NotTo(HaveKey("change_in_working_capital"))
		})

		It("accepts a REIT without capex", func() {
			periods := history(2, false)
			for _, facts := range periods {
				facts.CapitalExpenditures = math.NaN()
			}

			companyID, err := pipeline.Submit(ctx, submission("O", "Real Estate", periods))
			Expect(err).NotTo(HaveOccurred())

			cashFlow := db.Row(cashFlows, companyID, 2014, data.PeriodAnnual)
			Expect(cashFlow["simple_free_cash_flow"]).To(Equal(220.0))
			Expect(cashFlow["free_cash_flow"]).To(Equal(200.0))
		})

		It("is idempotent", func() {
			firstID, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(4, true)))
			Expect(err).NotTo(HaveOccurred())
			before := db.Snapshot()

			secondID, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(4, true)))
			Expect(err).NotTo(HaveOccurred())

			Expect(secondID).To(Equal(firstID))
			Expect(db.Snapshot()).To(Equal(before))
			Expect(db.commits).To(Equal(2))
		})

		It("invalidates the company and ticker views after commit", func() {
			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(2, false)))
			Expect(err).NotTo(HaveOccurred())

			Expect(invalid.Calls()).To(HaveLen(1))
			Expect(invalid.Calls()[0]).To(Equal(append(cache.CompanyKeys(1), cache.TickerKey("ACME"))))
		})

		It("succeeds when cache invalidation fails", func() {
			invalid.err = errors.New("redis unavailable")

			companyID, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(2, false)))
			Expect(err).NotTo(HaveOccurred())
			Expect(companyID).To(Equal(int64(1)))
			Expect(db.Count(data.CompanyMetricsKey)).To(Equal(1))
		})

		It("rejects an invalid submission before touching the database", func() {
			sub := submission("", "Industrials", history(2, false))
			sub.Periods[0].Revenue = math.NaN()

			_, err := pipeline.Submit(ctx, sub)
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(err).NotTo(MatchError(library.ErrStorage))

			var errs validate.Errors
			Expect(errors.As(err, &errs)).To(BeTrue())
			Expect(errs).To(HaveLen(2))

			Expect(db.acquired).To(Equal(0))
			Expect(invalid.Calls()).To(BeEmpty())
		})

		It("writes nothing when a statement fails", func() {
			db.FailExec = 3

			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(3, true)))
			Expect(err).To(MatchError(library.ErrStorage))
			Expect(errors.Is(err, errConnectionReset)).To(BeTrue())

			var storageErr *library.StorageError
			Expect(errors.As(err, &storageErr)).To(BeTrue())
			Expect(storageErr.Op).To(Equal("save"))
			Expect(err.Error()).NotTo(ContainSubstring("connection reset"))

			Expect(db.Snapshot()).To(BeEmpty())
			Expect(db.companies).To(BeEmpty())
			Expect(db.released).To(Equal(1))
			Expect(invalid.Calls()).To(BeEmpty())
		})

		It("keeps the previous state when a resubmission fails", func() {
			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(3, false)))
			Expect(err).NotTo(HaveOccurred())
			before := db.Snapshot()

			db.FailExec = db.execs + 5
			periods := history(3, false)
			periods[0].Revenue = 5000

			_, err = pipeline.Submit(ctx, submission("ACME", "Industrials", periods))
			Expect(err).To(MatchError(library.ErrStorage))
			Expect(db.Snapshot()).To(Equal(before))
		})

		It("reports a failed commit with the company", func() {
			db.FailCommit = true

			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(2, false)))
			Expect(err).To(MatchError(library.ErrStorage))
			Expect(err.Error()).To(Equal("could not save company financials (company 1)"))

			var storageErr *library.StorageError
			Expect(errors.As(err, &storageErr)).To(BeTrue())
			Expect(storageErr.Op).To(Equal("commit"))
			Expect(db.released).To(Equal(1))
			Expect(invalid.Calls()).To(BeEmpty())
		})

		It("rejects an unknown company id", func() {
			_, err := pipeline.Submit(ctx, &data.Submission{CompanyID: 99, Periods: history(2, false)})
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(err).NotTo(MatchError(library.ErrStorage))
			Expect(db.Snapshot()).To(BeEmpty())
			Expect(db.released).To(Equal(1))
		})
	})

	Describe("AddYear", func() {
		BeforeEach(func() {
			_, err := pipeline.Submit(ctx, submission("ACME", "Industrials", history(3, false)))
			Expect(err).NotTo(HaveOccurred())
		})

		It("computes the new year against stored history", func() {
			companyID, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, math.Pow(1.1, 3))}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(companyID).To(Equal(int64(1)))

			Expect(db.Count(data.IncomeStatementsKey)).To(Equal(4))
			Expect(float(db.Row(cashFlows, 1, 2017, data.PeriodAnnual)["change_in_working_capital"])).To(BeNumerically("~", 12.1, 0.001))
			Expect(db.CompanyMetrics(1)["consecutive_dividend_growth_years"]).To(Equal(3))
		})

		It("leaves stored years untouched", func() {
			stored := db.Row(data.HistoricMetricsKey, 1, 2016, data.PeriodAnnual)

			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, math.Pow(1.1, 3))}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Row(data.HistoricMetricsKey, 1, 2016, data.PeriodAnnual)).To(Equal(stored))
		})

		It("uses the baseline in place of the stored prior year", func() {
			baseline := 50.0
			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, math.Pow(1.1, 3))}, &baseline)
			Expect(err).NotTo(HaveOccurred())
			Expect(float(db.Row(cashFlows, 1, 2017, data.PeriodAnnual)["change_in_working_capital"])).To(BeNumerically("~", 83.1, 0.001))
		})

		It("invalidates the stored ticker", func() {
			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, 1.331)}, nil)
			Expect(err).NotTo(HaveOccurred())

			calls := invalid.Calls()
			Expect(calls).To(HaveLen(2))
			Expect(calls[1]).To(ContainElement(cache.TickerKey("ACME")))
		})

		It("accepts a trailing period alongside the new year", func() {
			ttm := annualPeriod(0, 1.4)
			ttm.FiscalYear = nil
			ttm.PeriodType = data.PeriodTTM

			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, 1.331), ttm}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Row(data.IncomeStatementsKey, 1, nil, data.PeriodTTM)).NotTo(BeNil())
		})

		It("checks capex against the stored sector", func() {
			year := annualPeriod(2017, 1.331)
			year.CapitalExpenditures = math.NaN()
			before := db.Snapshot()

			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{year}, nil)
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(fields(err)).To(ConsistOf("capital_expenditures[0]"))
			Expect(db.Snapshot()).To(Equal(before))
		})

		It("adds a REIT year without capex", func() {
			companyID, err := pipeline.Submit(ctx, submission("O", "Real Estate", history(3, false)))
			Expect(err).NotTo(HaveOccurred())

			year := annualPeriod(2017, 1.331)
			year.CapitalExpenditures = math.NaN()
			_, err = pipeline.AddYear(ctx, companyID, []*data.PeriodFacts{year}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Row(cashFlows, companyID, 2017, data.PeriodAnnual)).NotTo(BeNil())
		})

		It("requires exactly one annual period", func() {
			acquired := db.acquired
			_, err := pipeline.AddYear(ctx, 1, []*data.PeriodFacts{annualPeriod(2017, 1), annualPeriod(2018, 1)}, nil)
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(db.acquired).To(Equal(acquired))
		})

		It("requires a company id", func() {
			_, err := pipeline.AddYear(ctx, 0, []*data.PeriodFacts{annualPeriod(2017, 1)}, nil)
			Expect(err).To(MatchError(validate.ErrInvalid))
		})

		It("keeps the ten most recent years", func() {
			companyID, err := pipeline.Submit(ctx, submission("BIG", "Industrials", history(10, true)))
			Expect(err).NotTo(HaveOccurred())

			ttm := history(11, true)[11]
			_, err = pipeline.AddYear(ctx, companyID, []*data.PeriodFacts{annualPeriod(2024, math.Pow(1.1, 10)), ttm}, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(float(db.CompanyMetrics(companyID)["ten_years_revenue_growth"])).To(BeNumerically("~", 10.0, 0.01))
			Expect(db.Row(data.IncomeStatementsKey, companyID, 2014, data.PeriodAnnual)).NotTo(BeNil())
		})

		It("rejects a year older than the stored window", func() {
			companyID, err := pipeline.Submit(ctx, submission("BIG", "Industrials", history(10, true)))
			Expect(err).NotTo(HaveOccurred())
			before := db.Snapshot()

			_, err = pipeline.Submit(ctx, &data.Submission{CompanyID: companyID, Periods: []*data.PeriodFacts{annualPeriod(2013, 0.9)}})
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(err).NotTo(MatchError(library.ErrStorage))
			Expect(fields(err)).To(ConsistOf("fiscal_year[0]"))

			Expect(db.Snapshot()).To(Equal(before))
			Expect(db.Row(data.IncomeStatementsKey, companyID, 2013, data.PeriodAnnual)).To(BeNil())
		})

		It("requires a refreshed trailing period with a newer year", func() {
			companyID, err := pipeline.Submit(ctx, submission("BIG", "Industrials", history(10, true)))
			Expect(err).NotTo(HaveOccurred())
			before := db.Snapshot()

			_, err = pipeline.AddYear(ctx, companyID, []*data.PeriodFacts{annualPeriod(2024, math.Pow(1.1, 10))}, nil)
			Expect(err).To(MatchError(validate.ErrInvalid))
			Expect(fields(err)).To(ConsistOf("period_type[0]"))
			Expect(db.Snapshot()).To(Equal(before))
		})

		It("revises an older year without a trailing period", func() {
			companyID, err := pipeline.Submit(ctx, submission("BIG", "Industrials", history(10, true)))
			Expect(err).NotTo(HaveOccurred())

			revised := annualPeriod(2020, 2)
			_, err = pipeline.Submit(ctx, &data.Submission{CompanyID: companyID, Periods: []*data.PeriodFacts{revised}})
			Expect(err).NotTo(HaveOccurred())
			Expect(float(db.Row(data.IncomeStatementsKey, companyID, 2020, data.PeriodAnnual)["revenue"])).To(Equal(2000.0))
		})
	})
})
