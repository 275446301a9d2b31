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
package score_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/score"
)

func value(v float64) *float64 {
	return &v
}

func trend(t data.Trend) *data.Trend {
	return &t
}

// only builds a bundle holding a single value
func only(metric score.Metric, v *float64) score.Bundle {
	return score.Bundle{Values: map[score.Metric]*float64{metric: v}}
}

// present fills every growth metric so the missing-value rules stay quiet
func present(values map[score.Metric]*float64) score.Bundle {
	bundle := score.Bundle{Values: map[score.Metric]*float64{
		score.EpsGrowth:     value(0),
		score.FcfGrowth:     value(0),
		score.RevenueGrowth: value(0),
	}}
	for metric, v := range values {
		bundle.Values[metric] = v
	}
	return bundle
}

var _ = Describe("Score", func() {
	It("awards the missing growth rules to an empty bundle", func() {
		Expect(score.Score(score.Bundle{})).To(Equal(27.5))
	})

	It("scores zero when every growth rate is present but low", func() {
		Expect(score.Score(present(nil))).To(Equal(0.0))
	})

	DescribeTable("current ratio bands",
		func(ratio float64, expected float64) {
			Expect(score.Score(present(map[score.Metric]*float64{score.CurrentRatio: value(ratio)}))).To(Equal(expected))
		},
		Entry("0.5", 0.5, 0.0),
		Entry("0.9", 0.9, 1.25),
		Entry("1.0 is in the lower band", 1.0, 1.25),
		Entry("1.2", 1.2, 2.5),
		Entry("1.5 is in the lower band", 1.5, 2.5),
		Entry("2.0 is in the lower band", 2.0, 5.0),
		Entry("2.5", 2.5, 7.5),
	)

	It("never decreases as the current ratio improves", func() {
		previous := -1.0
		for ratio := 1.0; ratio <= 2.5; ratio += 0.1 {
			points := score.Score(present(map[score.Metric]*float64{score.CurrentRatio: value(ratio)}))
			Expect(points).To(BeNumerically(">=", previous))
			previous = points
		}
	})

	DescribeTable("debt to ebitda bands",
		func(ratio float64, expected float64) {
			Expect(score.Score(present(map[score.Metric]*float64{score.DebtToEbitda: value(ratio)}))).To(Equal(expected))
		},
		Entry("1.0", 1.0, 7.5),
		Entry("1.5 sits on an open bound", 1.5, 0.0),
		Entry("1.8", 1.8, 5.0),
		Entry("2.2 falls between bands", 2.2, 0.0),
		Entry("3.0", 3.0, 2.5),
		Entry("4.0", 4.0, 0.0),
	)

	DescribeTable("share dilution bands",
		func(dilution float64, expected float64) {
			Expect(score.Score(present(map[score.Metric]*float64{score.ShareDilution: value(dilution)}))).To(Equal(expected))
		},
		Entry("buybacks", -1.5, 10.0),
		Entry("none", 0.0, 10.0),
		Entry("0.1", 0.1, 7.5),
		Entry("0.15", 0.15, 5.0),
		Entry("0.3", 0.3, 2.25),
		Entry("1.0", 1.0, 0.0),
	)

	It("treats non-finite values as missing", func() {
		Expect(score.Score(only(score.EpsGrowth, value(math.NaN())))).To(Equal(27.5))
		Expect(score.Score(present(map[score.Metric]*float64{score.CurrentRatio: value(math.Inf(1))}))).To(Equal(0.0))
	})

	It("scores improving trends", func() {
		bundle := present(nil)
		bundle.Trends = map[score.Metric]*data.Trend{
			score.RoicTrend:            trend(data.TrendPositive),
			score.GrossMarginTrend:     trend(data.TrendNeutral),
			score.OperatingMarginTrend: trend(data.TrendNegative),
		}
		Expect(score.Score(bundle)).To(Equal(15.0))
	})

	Context("with a payout ratio", func() {
		It("uses the payout weights", func() {
			bundle := present(map[score.Metric]*float64{
				score.MedianPayoutRatio: value(0.3),
				score.EpsGrowth:         value(9),
				score.DividendGrowth:    value(10),
			})
			Expect(score.Score(bundle)).To(Equal(7.5 + 5 + 5))
		})

		It("adds the missing dividend growth rule", func() {
			bundle := only(score.MedianPayoutRatio, value(0.6))
			Expect(score.Score(bundle)).To(Equal(5 + 5 + 5 + 2.5 + 5.0))
		})
	})

	Describe("Explain", func() {
		It("lists the matching rules", func() {
			bundle := present(map[score.Metric]*float64{
				score.CurrentRatio:  value(3),
				score.FiveYearsRoic: value(20),
			})

			matches := score.NewEngine().Explain(bundle)
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].Metric).To(Equal(score.CurrentRatio))
			Expect(matches[0].Points).To(Equal(7.5))
			Expect(matches[1].Rule).To(Equal("5y roic at least 15"))
			Expect(matches[1].Points).To(Equal(15.0))
		})

		It("supports custom rule sets", func() {
			engine := &score.Engine{Rules: []score.Rule{
				{Name: "big", Metric: score.CashConversion, When: score.Condition{Kind: score.InBand, Lower: &score.Bound{Value: 100}}, Weight: 1, PayoutWeight: 2},
			}}
			Expect(engine.Score(only(score.CashConversion, value(150)))).To(Equal(1.0))
			Expect(engine.Score(only(score.CashConversion, value(50)))).To(Equal(0.0))
		})
	})

	Describe("FromAggregate", func() {
		It("maps snapshot values and window metrics", func() {
			roic := 18.0
			positive := data.TrendPositive
			aggregate := &data.CompanyAggregateMetrics{
				CurrentRatio:  2.1,
				FiveYearsRoic: &roic,
				RoicTrend:     &positive,
			}

			bundle := score.FromAggregate(aggregate)
			Expect(*bundle.Values[score.CurrentRatio]).To(Equal(2.1))
			Expect(bundle.Values[score.FiveYearsRoic]).To(BeIdenticalTo(&roic))
			Expect(bundle.Values[score.EpsGrowth]).To(BeNil())
			Expect(*bundle.Trends[score.RoicTrend]).To(Equal(data.TrendPositive))
		})
	})
})
