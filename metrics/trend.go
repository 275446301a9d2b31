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

	"github.com/penny-vault/pvmetrics/data"
)

// TrendBand is the normalized slope below which a series is Neutral
const TrendBand = 0.02

// ClassifyTrend fits a least squares line through the series and classifies
// its slope relative to the magnitude of the series mean, so a series
// falling further below zero is Negative. Fewer than two points or any
// non-finite value yields nil.
func ClassifyTrend(series []float64) *data.Trend {
	if len(series) < 2 {
		return nil
	}

	n := float64(len(series))
	meanX := (n - 1) / 2
	meanY := 0.0
	for _, v := range series {
		if !IsFinite(v) {
			return nil
		}
		meanY += v
	}
	meanY /= n

	var num, den float64
	for idx, v := range series {
		dx := float64(idx) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}

	slope := num / den
	if meanY != 0 {
		slope /= math.Abs(meanY)
	}

	trend := data.TrendNeutral
	switch {
	case slope > TrendBand:
		trend = data.TrendPositive
	case slope < -TrendBand:
		trend = data.TrendNegative
	}

	return &trend
}
