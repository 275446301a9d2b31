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
	"strings"

	"github.com/alphadose/haxmap"
)

// Memory is an in-process response cache
type Memory struct {
	entries *haxmap.Map[string, []byte]
}

func NewMemory() *Memory {
	return &Memory{
		entries: haxmap.New[string, []byte](),
	}
}

func (memory *Memory) Get(key string) ([]byte, bool) {
	return memory.entries.Get(key)
}

func (memory *Memory) Set(key string, val []byte) {
	memory.entries.Set(key, val)
}

func (memory *Memory) Len() int {
	return int(memory.entries.Len())
}

func (memory *Memory) Invalidate(_ context.Context, keys ...string) error {
	var matched []string
	for _, key := range keys {
		prefix, ok := strings.CutSuffix(key, "*")
		if !ok {
			matched = append(matched, key)
			continue
		}

		memory.entries.ForEach(func(k string, _ []byte) bool {
			if strings.HasPrefix(k, prefix) {
				matched = append(matched, k)
			}
			return true
		})
	}

	if len(matched) > 0 {
		memory.entries.Del(matched...)
	}

	return nil
}
