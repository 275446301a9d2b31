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
package cache_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/cache"
)

var _ = Describe("Keys", func() {
	It("lists the company views", func() {
		Expect(cache.CompanyKeys(7)).To(Equal([]string{"/stocks", "/stocks/7", "/stocks/ttm/7"}))
	})

	It("roots ticker views under a slug", func() {
		Expect(cache.TickerPath("BRK.B")).To(Equal("/stocks/by-ticker/brk-b"))
	})

	It("matches every view of a ticker", func() {
		Expect(cache.TickerKey("BRK.B")).To(Equal("/stocks/by-ticker/brk-b*"))
		Expect(cache.TickerKey("AAPL")).To(Equal("/stocks/by-ticker/aapl*"))
	})

	It("namespaces keys with a slugged prefix", func() {
		Expect(cache.Namespaced("PV Metrics", []string{"/stocks", ":x"})).To(Equal([]string{"pv-metrics:/stocks", "pv-metrics:x"}))
		Expect(cache.Namespaced("", []string{"/stocks"})).To(Equal([]string{"/stocks"}))
	})
})

var _ = Describe("Memory", func() {
	var (
		ctx    context.Context
		memory *cache.Memory
	)

	BeforeEach(func() {
		ctx = context.Background()
		memory = cache.NewMemory()
		for _, key := range []string{
			"/stocks", "/stocks/1", "/stocks/ttm/1", "/stocks/2",
			"/stocks/by-ticker/acme", "/stocks/by-ticker/acme/periods", "/stocks/by-ticker/acmex",
		} {
			memory.Set(key, []byte(key))
		}
	})

	It("removes exact keys", func() {
		Expect(memory.Invalidate(ctx, cache.CompanyKeys(1)...)).To(Succeed())

		Expect(memory.Len()).To(Equal(4))
		_, ok := memory.Get("/stocks/1")
		Expect(ok).To(BeFalse())
		val, ok := memory.Get("/stocks/2")
		Expect(ok).To(BeTrue())
		Expect(string(val)).To(Equal("/stocks/2"))
	})

	It("removes keys matching a prefix", func() {
		Expect(memory.Invalidate(ctx, cache.TickerKey("ACME"))).To(Succeed())

		for _, key := range []string{"/stocks/by-ticker/acme", "/stocks/by-ticker/acme/periods", "/stocks/by-ticker/acmex"} {
			_, ok := memory.Get(key)
			Expect(ok).To(BeFalse(), key)
		}
		Expect(memory.Len()).To(Equal(4))
	})

	It("ignores keys that are not cached", func() {
		Expect(memory.Invalidate(ctx, "/stocks/99", "/nothing*")).To(Succeed())
		Expect(memory.Len()).To(Equal(7))
	})
})

type failing struct {
	calls int
}

func (f *failing) Invalidate(context.Context, ...string) error {
	f.calls++
	return errors.New("unavailable")
}

var _ = Describe("Multi", func() {
	It("invalidates every cache even when one fails", func() {
		memory := cache.NewMemory()
		memory.Set("/stocks/1", []byte("{}"))
		broken := &failing{}

		err := cache.Multi{broken, nil, memory}.Invalidate(context.Background(), "/stocks/1")
		Expect(err).To(MatchError("unavailable"))
		Expect(broken.calls).To(Equal(1))
		Expect(memory.Len()).To(Equal(0))
	})

	It("succeeds when every cache does", func() {
		Expect(cache.Multi{cache.Nop{}, cache.NewMemory()}.Invalidate(context.Background(), "/stocks")).To(Succeed())
	})
})

var _ = Describe("Nop", func() {
	It("always succeeds", func() {
		var invalidator cache.Invalidator = cache.Nop{}
		Expect(invalidator.Invalidate(context.Background(), "/stocks")).To(Succeed())
	})
})
