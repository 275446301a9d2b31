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
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize returns fallback when v is NaN or infinite
func Sanitize(v, fallback float64) float64 {
	if !IsFinite(v) {
		return fallback
	}
	return v
}

// SanitizeOrNull returns nil when v is NaN or infinite
func SanitizeOrNull(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return &v
}

// Nullable drops pointers to non-finite values
func Nullable(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return SanitizeOrNull(*v)
}

// Round2 rounds half away from zero to two decimals. Non-finite values are
// returned unchanged.
func Round2(v float64) float64 {
	if !IsFinite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// orZero reads an optional raw value
func orZero(v float64) float64 {
	return Sanitize(v, 0)
}

// ParseNumber converts loosely formatted figures such as "$1,234.5",
// "(12)" or "1,200 USD" to a float. Blank or unparseable input is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == ',' || r == '$' || r == '"' || r == '\'':
			return -1
		case unicode.IsSpace(r):
			return -1
		case unicode.IsLetter(r) && r != 'e' && r != 'E':
			return -1
		}
		return r
	}, s)

	if cleaned == "" {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}

	if negative {
		v = -v
	}
	return v
}
