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
package data

import "errors"

var (
	ErrColumnMismatch = errors.New("row does not match table columns")
	ErrUnknownFormat  = errors.New("unknown input format")
)

// Company is the minimal company record the metrics are anchored to
type Company struct {
	CompanyID int64  `json:"company_id" db:"company_id"`
	Ticker    string `json:"ticker" db:"ticker"`
	Sector    string `json:"sector" db:"sector"`
}
