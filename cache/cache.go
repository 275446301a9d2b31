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
package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gosimple/slug"
)

// Invalidator clears cached responses for a set of keys. A key ending in
// "*" clears every key with that prefix.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Nop discards invalidations
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) error {
	return nil
}

// CompanyKeys are the cached resources that depend on a company's metrics
func CompanyKeys(companyID int64) []string {
	return []string{
		"/stocks",
		fmt.Sprintf("/stocks/%d", companyID),
		fmt.Sprintf("/stocks/ttm/%d", companyID),
	}
}

// TickerKey names the cached resources for a ticker, e.g. "/stocks/by-ticker/brk-b*"
// TickerPath is the root of every view keyed by ticker
func TickerPath(ticker string) string {
	return path.Join("/stocks/by-ticker", slug.Make(ticker))
}

func TickerKey(ticker string) string {
	return TickerPath(ticker) + "*"
}

// Multi invalidates every cache in order. All caches are tried even when
// one fails.
type Multi []Invalidator

func (multi Multi) Invalidate(ctx context.Context, keys ...string) error {
	var errs []error
	for _, invalidator := range multi {
		if invalidator == nil {
			continue
		}
		if err := invalidator.Invalidate(ctx, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Namespaced prefixes keys so several deployments can share a server
func Namespaced(prefix string, keys []string) []string {
	if prefix == "" {
		return keys
	}

	prefix = slug.Make(prefix)
	namespaced := make([]string, len(keys))
	for idx, key := range keys {
		namespaced[idx] = prefix + ":" + strings.TrimPrefix(key, ":")
	}
	return namespaced
}
