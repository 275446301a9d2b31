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
	"github.com/penny-vault/pvmetrics/metrics"
)

var _ = Describe("Guard", func() {
	It("treats NaN and infinities as not finite", func() {
		Expect(metrics.IsFinite(1.5)).To(BeTrue())
		Expect(metrics.IsFinite(math.NaN())).To(BeFalse())
		Expect(metrics.IsFinite(math.Inf(1))).To(BeFalse())
		Expect(metrics.IsFinite(math.Inf(-1))).To(BeFalse())
	})

	It("replaces non-finite values with the fallback", func() {
		Expect(metrics.Sanitize(math.NaN(), 0)).To(Equal(0.0))
		Expect(metrics.Sanitize(math.Inf(1), -1)).To(Equal(-1.0))
		Expect(metrics.Sanitize(3.25, 0)).To(Equal(3.25))
	})

	It("nulls non-finite values", func() {
		Expect(metrics.SanitizeOrNull(math.NaN())).To(BeNil())
		Expect(*metrics.SanitizeOrNull(2)).To(Equal(2.0))

		inf := math.Inf(1)
		Expect(metrics.Nullable(&inf)).To(BeNil())
		Expect(metrics.Nullable(nil)).To(BeNil())
	})

	DescribeTable("rounds half away from zero",
		func(v, expected float64) {
			Expect(metrics.Round2(v)).To(Equal(expected))
		},
		Entry("up", 1.005, 1.01),
		Entry("negative", -2.345, -2.35),
		Entry("already rounded", 11.11, 11.11),
		Entry("repeating", 10.0/90.0*100, 11.11),
	)

	It("leaves non-finite values alone when rounding", func() {
		Expect(math.IsNaN(metrics.Round2(math.NaN()))).To(BeTrue())
		Expect(math.IsInf(metrics.Round2(math.Inf(-1)), -1)).To(BeTrue())
	})

	DescribeTable("parses loosely formatted numbers",
		func(s string, expected float64) {
			Expect(metrics.ParseNumber(s)).To(Equal(expected))
		},
		Entry("plain", "42", 42.0),
		Entry("currency and separators", "$1,234.5", 1234.5),
		Entry("accounting negative", "(123)", -123.0),
		Entry("unit suffix", "1,200 USD", 1200.0),
		Entry("exponent", "1.5e3", 1500.0),
		Entry("surrounding space", "  -7.25 ", -7.25),
	)

	DescribeTable("returns NaN for blank or garbage input",
		func(s string) {
			Expect(math.IsNaN(metrics.ParseNumber(s))).To(BeTrue())
		},
		Entry("blank", ""),
		Entry("spaces", "   "),
		Entry("letters", "n/a"),
		Entry("dashes", "--"),
	)
})
