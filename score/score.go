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
package score

import (
	"math"
	"slices"

	"github.com/penny-vault/pvmetrics/data"
)

// Bundle holds the metric values a score is computed from. A missing entry
// or a nil value means the metric is unknown.
type Bundle struct {
	Values map[Metric]*float64
	Trends map[Metric]*data.Trend
}

// Match records a rule that contributed to a score
type Match struct {
	Rule   string
	Metric Metric
	Points float64
}

type Engine struct {
	Rules       []Rule
	PayoutRules []Rule
}

var defaultEngine = NewEngine()

func NewEngine() *Engine {
	return &Engine{
		Rules:       DefaultRules,
		PayoutRules: PayoutRules,
	}
}

// Score sums the weights of every matching rule using the default tables
func Score(bundle Bundle) float64 {
	return defaultEngine.Score(bundle)
}

func (engine *Engine) Score(bundle Bundle) float64 {
	total := 0.0
	for _, match := range engine.Explain(bundle) {
		total += match.Points
	}
	return total
}

// Explain lists the rules that matched and the points each awarded
func (engine *Engine) Explain(bundle Bundle) []Match {
	payout := bundle.value(MedianPayoutRatio) != nil

	rules := engine.Rules
	if payout {
		rules = slices.Concat(engine.Rules, engine.PayoutRules)
	}

	matches := make([]Match, 0, len(rules))
	for _, rule := range rules {
		if !bundle.matches(rule) {
			continue
		}

		points := rule.Weight
		if payout {
			points = rule.PayoutWeight
		}

		matches = append(matches, Match{
			Rule:   rule.Name,
			Metric: rule.Metric,
			Points: points,
		})
	}

	return matches
}

func (bundle Bundle) value(metric Metric) *float64 {
	v, ok := bundle.Values[metric]
	if !ok || v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func (bundle Bundle) matches(rule Rule) bool {
	switch rule.When.Kind {
	case Missing:
		return bundle.value(rule.Metric) == nil
	case TrendIn:
		trend, ok := bundle.Trends[rule.Metric]
		if !ok || trend == nil {
			return false
		}
		return slices.Contains(rule.When.Trends, *trend)
	default:
		v := bundle.value(rule.Metric)
		if v == nil {
			return false
		}
		return rule.When.contains(*v)
	}
}

func (cond Condition) contains(v float64) bool {
	if cond.Lower != nil {
		if cond.Lower.Inclusive && v < cond.Lower.Value {
			return false
		}
		if !cond.Lower.Inclusive && v <= cond.Lower.Value {
			return false
		}
	}

	if cond.Upper != nil {
		if cond.Upper.Inclusive && v > cond.Upper.Value {
			return false
		}
		if !cond.Upper.Inclusive && v >= cond.Upper.Value {
			return false
		}
	}

	return true
}

// FromAggregate builds the score inputs for a company
func FromAggregate(aggregate *data.CompanyAggregateMetrics) Bundle {
	snapshot := func(v float64) *float64 {
		return &v
	}

	return Bundle{
		Values: map[Metric]*float64{
			CurrentRatio:      snapshot(aggregate.CurrentRatio),
			NetCashPerShare:   snapshot(aggregate.NetCashPerShare),
			DebtToEbitda:      snapshot(aggregate.DebtToEbitda),
			FiveYearsRoic:     aggregate.FiveYearsRoic,
			ShareDilution:     aggregate.ShareDilution,
			CashConversion:    snapshot(aggregate.CashConversion),
			EpsGrowth:         aggregate.TenYearsEpsGrowth,
			FcfGrowth:         aggregate.TenYearsFcfGrowth,
			RevenueGrowth:     aggregate.TenYearsRevenueGrowth,
			MedianPayoutRatio: aggregate.MedianPayoutRatio,
			DividendGrowth:    aggregate.TenYearsDividendGrowth,
		},
		Trends: map[Metric]*data.Trend{
			RoicTrend:            aggregate.RoicTrend,
			GrossMarginTrend:     aggregate.GrossMarginTrend,
			OperatingMarginTrend: aggregate.OperatingMarginTrend,
		},
	}
}
