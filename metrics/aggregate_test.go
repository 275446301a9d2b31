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

var _ = Describe("Aggregate", func() {
	DescribeTable("consecutive dividend growth years",
		func(dps []float64, expected int) {
			Expect(metrics.ConsecutiveDividendGrowthYears(dps)).To(Equal(expected))
		},
		Entry("no history", []float64{}, 0),
		Entry("single year", []float64{1}, 0),
		Entry("steady growth", []float64{1, 2, 3, 4}, 3),
		Entry("flat year resets", []float64{1, 2, 3, 3, 4}, 1),
		Entry("cut in the latest year", []float64{1, 2, 3, 2}, 0),
	)

	DescribeTable("consecutive dividend paying years",
		func(dps []float64, expected int) {
			Expect(metrics.ConsecutiveDividendPayingYears(dps)).To(Equal(expected))
		},
		Entry("no history", []float64{}, 0),
		Entry("every year", []float64{1, 1, 1}, 3),
		Entry("gap", []float64{1, 0, 1, 1}, 2),
		Entry("not paying now", []float64{1, 1, 0}, 0),
		Entry("NaN counts as not paying", []float64{1, math.NaN(), 1}, 1),
	)

	It("returns an empty aggregate for no periods", func() {
		aggregate := metrics.Aggregate(nil)
		Expect(aggregate).NotTo(BeNil())
		Expect(aggregate.Score).To(Equal(0.0))
	})

	It("skips the payout ratio without nine years of dividend growth", func() {
		periods := window(10, false)
		periods[5].DividendsPerShare = periods[4].DividendsPerShare

		assembly, err := metrics.Assemble(periods, metrics.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(assembly.Aggregate.ConsecutiveDividendGrowthYears).To(Equal(4))
		Expect(assembly.Aggregate.MedianPayoutRatio).To(BeNil())
	})

	It("computes the payout ratio from the last five years", func() {
		assembly, err := metrics.Assemble(window(10, false), metrics.Options{})
		Expect(err).NotTo(HaveOccurred())

		ratio := assembly.Aggregate.MedianPayoutRatio
		Expect(ratio).NotTo(BeNil())
		Expect(*ratio).To(BeNumerically(">", 0))
		Expect(*ratio).To(BeNumerically("<", 1))
	})

	It("excludes the trailing period from growth windows", func() {
		withTTM, err := metrics.Assemble(window(10, true), metrics.Options{})
		Expect(err).NotTo(HaveOccurred())
		withoutTTM, err := metrics.Assemble(window(10, false), metrics.Options{})
		Expect(err).NotTo(HaveOccurred())

		Expect(*withTTM.Aggregate.TenYearsRevenueGrowth).To(Equal(*withoutTTM.Aggregate.TenYearsRevenueGrowth))
		Expect(*withTTM.Aggregate.FiveYearsRoic).To(Equal(*withoutTTM.Aggregate.FiveYearsRoic))
	})

	Describe("Sanitized", func() {
		It("replaces non-finite values without touching the original", func() {
			nan := math.NaN()
			growth := 12.5
			aggregate := &data.CompanyAggregateMetrics{
				CurrentRatio:          math.Inf(1),
				GrossMargin:           41,
				TenYearsEpsGrowth:     &nan,
				TenYearsRevenueGrowth: &growth,
			}

			clean := metrics.Sanitized(aggregate)
			Expect(clean.CurrentRatio).To(Equal(0.0))
			Expect(clean.GrossMargin).To(Equal(41.0))
			Expect(clean.TenYearsEpsGrowth).To(BeNil())
			Expect(*clean.TenYearsRevenueGrowth).To(Equal(12.5))

			Expect(math.IsInf(aggregate.CurrentRatio, 1)).To(BeTrue())
			Expect(aggregate.TenYearsEpsGrowth).NotTo(BeNil())
		})
	})
})
