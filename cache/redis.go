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
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"
)

// Redis invalidates keys held in a shared redis cache
type Redis struct {
	Pool   *redis.Pool
	Prefix string
}

func NewRedis(redisURL, prefix string) *Redis {
	return &Redis{
		Pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 5 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialURLContext(ctx, redisURL)
			},
		},
		Prefix: prefix,
	}
}

func (r *Redis) Close() error {
	return r.Pool.Close()
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	logger := zerolog.Ctx(ctx)

	conn, err := r.Pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var exact []string
	for _, key := range Namespaced(r.Prefix, keys) {
		if !strings.HasSuffix(key, "*") {
			exact = append(exact, key)
			continue
		}

		matched, err := scan(conn, key)
		if err != nil {
			return err
		}
		exact = append(exact, matched...)
	}

	if len(exact) == 0 {
		return nil
	}

	deleted, err := redis.Int(conn.Do("DEL", redis.Args{}.AddFlat(exact)...))
	if err != nil {
		return err
	}

	logger.Debug().Strs("Keys", exact).Int("Deleted", deleted).Msg("invalidated cache keys")
	return nil
}

// scan collects every key matching pattern without blocking the server
func scan(conn redis.Conn, pattern string) ([]string, error) {
	var keys []string
	cursor := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", pattern, "COUNT", 100))
		if err != nil {
			return nil, err
		}

		var batch []string
		if _, err := redis.Scan(values, &cursor, &batch); err != nil {
			return nil, err
		}
		keys = append(keys, batch...)

		if cursor == 0 {
			return keys, nil
		}
	}
}
