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
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
)

var ErrInvalid = errors.New("invalid submission")

var tickerRegex = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Error describes a single invalid field. Period fields are indexed by the
// position of the period in the submission, e.g. revenue[3].
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errors is every problem found in one submission
type Errors []*Error

func (errs Errors) Error() string {
	messages := make([]string, len(errs))
	for idx, err := range errs {
		messages[idx] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return strings.Join(messages, "; ")
}

func (errs Errors) Is(target error) bool {
	return target == ErrInvalid
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "finite", func(fl validator.FieldLevel) bool {
		return metrics.IsFinite(fl.Field().Float())
	})

	mustRegister(v, "nonneg", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return metrics.IsFinite(f) && f >= 0
	})

	mustRegister(v, "optional_nonneg", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.IsNaN(f) || (!math.IsInf(f, 0) && f >= 0)
	})

	mustRegister(v, "ticker", func(fl validator.FieldLevel) bool {
		return tickerRegex.MatchString(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("could not register %s validation: %s", tag, err))
	}
}

func message(fieldErr validator.FieldError, field string) string {
	switch fieldErr.Tag() {
	case "finite":
		return fmt.Sprintf("%s must be a number", field)
	case "nonneg", "optional_nonneg":
		return fmt.Sprintf("%s must be a positive number", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param())
	case "ticker":
		return fmt.Sprintf("%s must be 1 to 5 uppercase letters", field)
	case "required":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fieldErr.Tag())
	}
}

// Submission checks a submission before any work is done on it.
//
// Periods are classified in place (see metrics.Classify): untyped periods
// get their period type and the trailing period loses its fiscal year. The
// pipeline relies on this. The returned error is an Errors value or nil.
//
// A stored company submitted without a sector is checked as a REIT, which
// leaves capital expenditures optional; call Periods again once the stored
// sector is known.
func Submission(submission *data.Submission) error {
	var errs Errors

	if submission.CompanyID == 0 || submission.Ticker != "" {
		if err := validate.Var(submission.Ticker, "required,ticker"); err != nil {
			errs = append(errs, fieldErrors(err, "ticker", submission.Ticker)...)
		}
	}

	if _, err := metrics.Classify(submission.Periods); err != nil {
		var periodErr *metrics.PeriodError
		if errors.As(err, &periodErr) {
			errs = append(errs, &Error{
				Field:   fmt.Sprintf("%s[%d]", periodErr.Field, periodErr.Index),
				Message: periodErr.Err.Error(),
			})
		} else {
			errs = append(errs, &Error{Field: "periods", Message: err.Error()})
		}
		return errs
	}

	variant := metrics.SelectVariant(submission.Sector)
	if submission.Sector == "" && submission.CompanyID != 0 {
		variant = metrics.Reit
	}

	for idx, facts := range submission.Periods {
		errs = append(errs, Period(idx, facts, variant)...)
	}

	if len(errs) == 0 {
		return nil
	}

	return errs
}

// Periods validates the raw values of every period for the given variant.
// The returned error is an Errors value or nil.
func Periods(periods []*data.PeriodFacts, variant metrics.Variant) error {
	var errs Errors
	for idx, facts := range periods {
		errs = append(errs, Period(idx, facts, variant)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Period validates the raw values of one period. REITs report funds from
// operations instead of capex, so capital_expenditures may be unset for them.
func Period(idx int, facts *data.PeriodFacts, variant metrics.Variant) Errors {
	err := validate.Struct(facts)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Errors{{Field: fmt.Sprintf("periods[%d]", idx), Message: err.Error()}}
	}

	errs := make(Errors, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		if variant == metrics.Reit && fieldErr.StructField() == "CapitalExpenditures" && math.IsNaN(facts.CapitalExpenditures) {
			continue
		}

		errs = append(errs, &Error{
			Field:   fmt.Sprintf("%s[%d]", fieldErr.Field(), idx),
			Value:   fieldErr.Value(),
			Message: message(fieldErr, fieldErr.Field()),
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func fieldErrors(err error, field string, value any) Errors {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Errors{{Field: field, Value: value, Message: err.Error()}}
	}

	errs := make(Errors, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		errs = append(errs, &Error{Field: field, Value: value, Message: message(fieldErr, field)})
	}
	return errs
}
