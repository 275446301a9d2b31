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
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvmetrics/cache"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
)

type Library struct {
	DBUrl string `toml:"url"`

	Pool *pgxpool.Pool `toml:"-"`

	// Rendered holds rendered company summaries until the company is saved
	// again
	Rendered *cache.Memory `toml:"-"`
}

// Connect to the database configured for the library
func (myLibrary *Library) Connect(ctx context.Context) error {
	if myLibrary.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, myLibrary.DBUrl)
	if err != nil {
		return err
	}
	myLibrary.Pool = pool

	return nil
}

// Close the database pool
func (myLibrary *Library) Close() {
	if myLibrary.Pool != nil {
		myLibrary.Pool.Close()
	}
}

// NewFromDB connects to dbURL and verifies the connection
func NewFromDB(ctx context.Context, dbURL string) (*Library, error) {
	myLibrary := &Library{
		DBUrl:    dbURL,
		Rendered: cache.NewMemory(),
	}

	if err := myLibrary.Connect(ctx); err != nil {
		return nil, err
	}

	if err := myLibrary.Pool.Ping(ctx); err != nil {
		myLibrary.Close()
		return nil, err
	}

	return myLibrary, nil
}

// MaxConns is the size of the connection pool
func (myLibrary *Library) MaxConns() int {
	return int(myLibrary.Pool.Config().MaxConns)
}

// Pipeline returns a persistence pipeline writing to this library
func (myLibrary *Library) Pipeline(invalidator cache.Invalidator, fcfDefinition metrics.FcfDefinition) *Pipeline {
	caches := cache.Multi{invalidator}
	if myLibrary.Rendered != nil {
		caches = append(caches, myLibrary.Rendered)
	}

	return &Pipeline{
		DB:            poolAcquirer{pool: myLibrary.Pool},
		History:       StoredHistory{},
		Cache:         caches,
		FcfDefinition: fcfDefinition,
	}
}

type poolAcquirer struct {
	pool *pgxpool.Pool
}

func (acquirer poolAcquirer) Acquire(ctx context.Context) (Conn, error) {
	conn, err := acquirer.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NumCompanies returns the number of companies with stored metrics
func (myLibrary *Library) NumCompanies(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM company_metrics").Scan(&count)
	return count, err
}

// LastUpdated returns when any company's metrics were last written
func (myLibrary *Library) LastUpdated(ctx context.Context) (time.Time, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Release()

	var lastUpdated time.Time
	err = conn.QueryRow(ctx, "SELECT coalesce(max(updated_on), '0001-01-01'::timestamp) FROM company_metrics").Scan(&lastUpdated)
	if err != nil {
		return time.Time{}, err
	}

	return lastUpdated, nil
}

// CompanyByTicker looks up a company by its ticker
func (myLibrary *Library) CompanyByTicker(ctx context.Context, ticker string) (*data.Company, error) {
	company := &data.Company{}
	err := pgxscan.Get(ctx, myLibrary.Pool, company, "SELECT company_id, ticker, sector FROM companies WHERE ticker = $1", ticker)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	return company, nil
}

// Companies lists every company, ordered by ticker
func (myLibrary *Library) Companies(ctx context.Context) ([]*data.Company, error) {
	var companies []*data.Company
	err := pgxscan.Select(ctx, myLibrary.Pool, &companies, "SELECT company_id, ticker, sector FROM companies ORDER BY ticker")
	return companies, err
}
