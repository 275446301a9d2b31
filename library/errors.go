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
package library

import (
	"errors"
	"fmt"
)

var ErrStorage = errors.New("could not save company financials")

// StorageError is returned when a submission could not be persisted. The
// transaction has been rolled back and nothing was written.
type StorageError struct {
	Op        string
	CompanyID int64
	Err       error
}

func (e *StorageError) Error() string {
	if e.CompanyID != 0 {
		return fmt.Sprintf("%s (company %d)", ErrStorage, e.CompanyID)
	}
	return ErrStorage.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, companyID int64, err error) error {
	return &StorageError{Op: op, CompanyID: companyID, Err: err}
}
