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
	"strings"

	"github.com/penny-vault/pvmetrics/data"
)

// Variant selects the cash flow treatment for a company
type Variant int

const (
	Generic Variant = iota
	Reit
)

const RealEstateSector = "Real Estate"

// SelectVariant maps a company's sector to its variant
func SelectVariant(sector string) Variant {
	if strings.EqualFold(strings.TrimSpace(sector), RealEstateSector) {
		return Reit
	}
	return Generic
}

func (variant Variant) String() string {
	switch variant {
	case Reit:
		return "reit"
	default:
		return "generic"
	}
}

// FreeCashFlow returns funds from operations for REITs and the configured
// free cash flow reconciliation for everyone else
func (variant Variant) FreeCashFlow(facts *data.PeriodFacts, changeInWorkingCapital *float64, def FcfDefinition) float64 {
	switch variant {
	case Reit:
		return FundsFromOperations(facts)
	default:
		return def.FreeCashFlow(facts, changeInWorkingCapital)
	}
}

func (variant Variant) SimpleFreeCashFlow(facts *data.PeriodFacts) float64 {
	switch variant {
	case Reit:
		return facts.OperatingCashFlow - MaintenanceCapex(facts)
	default:
		return facts.OperatingCashFlow + facts.CapitalExpenditures - orZero(facts.StocksCompensations)
	}
}

// FundsFromOperations is only reported for REITs
func (variant Variant) FundsFromOperations(facts *data.PeriodFacts) *float64 {
	if variant != Reit {
		return nil
	}
	ffo := FundsFromOperations(facts)
	return &ffo
}

// CashFlowTable is the shape of the cash flow rows written for the variant
func (variant Variant) CashFlowTable() *data.Table {
	switch variant {
	case Reit:
		return data.ReitCashFlowStatements
	default:
		return data.CashFlowStatements
	}
}
