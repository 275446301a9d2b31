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
	"errors"
	"fmt"
	"math"

	"github.com/penny-vault/pvmetrics/data"
)

var ErrUnknownFcfDefinition = errors.New("unknown free cash flow definition")

// FcfDefinition selects which free cash flow reconciliation is used for the
// per-period free cash flow and everything derived from it
type FcfDefinition string

const (
	// FcfFromNetIncome: net income + D&A + change in working capital +
	// capex + net debt issued
	FcfFromNetIncome FcfDefinition = "net-income"

	// FcfFromOperatingIncome: operating income + interest + tax + D&A +
	// change in working capital - maintenance capex
	FcfFromOperatingIncome FcfDefinition = "operating-income"
)

func ParseFcfDefinition(s string) (FcfDefinition, error) {
	switch FcfDefinition(s) {
	case "", FcfFromNetIncome:
		return FcfFromNetIncome, nil
	case FcfFromOperatingIncome:
		return FcfFromOperatingIncome, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFcfDefinition, s)
	}
}

// WorkingCapital is operating current assets less operating current
// liabilities
func WorkingCapital(accountsReceivable, inventories, prepaidExpenses, accountsPayable, accruedExpenses, unearnedRevenues float64) float64 {
	return accountsReceivable + inventories + prepaidExpenses - accountsPayable - accruedExpenses - unearnedRevenues
}

func PeriodWorkingCapital(facts *data.PeriodFacts) float64 {
	return WorkingCapital(
		orZero(facts.AccountsReceivable),
		orZero(facts.Inventories),
		orZero(facts.PrepaidExpenses),
		orZero(facts.AccountsPayable),
		orZero(facts.AccruedExpenses),
		TotalUnearnedRevenues(facts),
	)
}

// ChangeInWorkingCapital compares period idx with the one before it, or with
// baseline when one is given. The first period of a window without a
// baseline has no change.
func ChangeInWorkingCapital(idx int, series []*data.PeriodFacts, baseline *float64) *float64 {
	wc := PeriodWorkingCapital(series[idx])

	var change float64
	switch {
	case baseline != nil:
		change = wc - *baseline
	case idx == 0:
		return nil
	default:
		change = wc - PeriodWorkingCapital(series[idx-1])
	}

	return &change
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return orZero(*v)
}

// RealFreeCashFlow is the free cash flow to equity reconciled from net income
func RealFreeCashFlow(facts *data.PeriodFacts, changeInWorkingCapital *float64) float64 {
	return facts.NetIncome +
		orZero(facts.DepreciationAndAmortization) +
		valueOrZero(changeInWorkingCapital) +
		facts.CapitalExpenditures +
		(orZero(facts.DebtIssued) + orZero(facts.DebtRepaid))
}

// OperatingFreeCashFlow reconciles free cash flow from operating income,
// counting only maintenance capex against it
func OperatingFreeCashFlow(facts *data.PeriodFacts, changeInWorkingCapital *float64) float64 {
	return facts.OperatingIncome +
		orZero(facts.InterestExpense) +
		facts.IncomeTaxExpense +
		orZero(facts.DepreciationAndAmortization) +
		valueOrZero(changeInWorkingCapital) -
		MaintenanceCapex(facts)
}

func FreeCashFlowToFirm(facts *data.PeriodFacts, changeInWorkingCapital *float64) float64 {
	return Nopat(facts) +
		orZero(facts.DepreciationAndAmortization) +
		valueOrZero(changeInWorkingCapital) +
		facts.CapitalExpenditures
}

// MaintenanceCapex is the part of capex needed to replace depreciated
// assets, as a positive number. Unreported capex counts as none.
func MaintenanceCapex(facts *data.PeriodFacts) float64 {
	return math.Min(math.Abs(orZero(facts.CapitalExpenditures)), orZero(facts.DepreciationAndAmortization))
}

func FundsFromOperations(facts *data.PeriodFacts) float64 {
	return facts.NetIncome + orZero(facts.DepreciationAndAmortization) - orZero(facts.SaleOfAssets)
}

func NetDebtIssued(facts *data.PeriodFacts) float64 {
	return orZero(facts.DebtIssued) + orZero(facts.DebtRepaid)
}

func NetRepurchasedShares(facts *data.PeriodFacts) float64 {
	return orZero(facts.RepurchasedShares) + orZero(facts.IssuedShares)
}

func (def FcfDefinition) FreeCashFlow(facts *data.PeriodFacts, changeInWorkingCapital *float64) float64 {
	if def == FcfFromOperatingIncome {
		return OperatingFreeCashFlow(facts, changeInWorkingCapital)
	}
	return RealFreeCashFlow(facts, changeInWorkingCapital)
}
