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
package library_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
)

var (
	errConnectionReset = errors.New("connection reset by peer")
	insertRegex        = regexp.MustCompile(`^INSERT INTO (\w+) \(([^)]*)\) VALUES`)
)

type row map[string]any

// fakeDB is an in-memory stand-in for postgres that applies upserts only
// when a transaction commits
type fakeDB struct {
	mu sync.Mutex

	nextID    int64
	companies map[int64]*data.Company
	tables    map[string]map[string]row

	// FailExec fails the nth statement executed, counting from 1
	FailExec   int
	FailCommit bool

	execs    int
	acquired int
	released int
	commits  int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		companies: make(map[int64]*data.Company),
		tables:    make(map[string]map[string]row),
	}
}

func rowKey(r row) string {
	return fmt.Sprintf("%v|%v|%v", r["company_id"], r["fiscal_year"], r["period_type"])
}

func (db *fakeDB) Acquire(_ context.Context) (library.Conn, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.acquired++
	return &fakeConn{db: db}, nil
}

// Row returns the committed row for a period; year is nil for the TTM period
func (db *fakeDB) Row(table string, companyID int64, year any, periodType data.PeriodType) row {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[table][rowKey(row{"company_id": companyID, "fiscal_year": year, "period_type": string(periodType)})]
}

func (db *fakeDB) CompanyMetrics(companyID int64) row {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[data.CompanyMetricsKey][rowKey(row{"company_id": companyID})]
}

func (db *fakeDB) Count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[table])
}

// Snapshot copies every committed row
func (db *fakeDB) Snapshot() map[string]map[string]row {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := make(map[string]map[string]row, len(db.tables))
	for name, rows := range db.tables {
		snapshot[name] = make(map[string]row, len(rows))
		for key, r := range rows {
			snapshot[name][key] = maps.Clone(r)
		}
	}
	return snapshot
}

type fakeConn struct {
	db *fakeDB
}

func (conn *fakeConn) Begin(_ context.Context) (pgx.Tx, error) {
	return &fakeTx{
		db:        conn.db,
		companies: make(map[int64]*data.Company),
		tables:    make(map[string]map[string]row),
	}, nil
}

func (conn *fakeConn) Release() {
	conn.db.mu.Lock()
	defer conn.db.mu.Unlock()
	conn.db.released++
}

type fakeTx struct {
	pgx.Tx

	db        *fakeDB
	companies map[int64]*data.Company
	tables    map[string]map[string]row
	closed    bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}

	tx.db.execs++
	if tx.db.FailExec == tx.db.execs {
		return pgconn.CommandTag{}, errConnectionReset
	}

	match := insertRegex.FindStringSubmatch(sql)
	if match == nil {
		return pgconn.CommandTag{}, fmt.Errorf("unsupported statement: %s", sql)
	}

	table := match[1]
	columns := strings.Split(match[2], ", ")
	if len(args) == 0 || len(args)%len(columns) != 0 {
		return pgconn.CommandTag{}, fmt.Errorf("%d arguments for %d columns", len(args), len(columns))
	}

	if tx.tables[table] == nil {
		tx.tables[table] = make(map[string]row)
	}

	seen := make(map[string]bool)
	for start := 0; start < len(args); start += len(columns) {
		r := make(row, len(columns))
		for idx, col := range columns {
			r[col] = args[start+idx]
		}

		key := rowKey(r)
		if seen[key] {
			return pgconn.CommandTag{}, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[key] = true

		merged := maps.Clone(tx.db.tables[table][key])
		if staged, ok := tx.tables[table][key]; ok {
			merged = staged
		}
		if merged == nil {
			merged = make(row)
		}
		maps.Copy(merged, r)
		tx.tables[table][key] = merged
	}

	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", len(args)/len(columns))), nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if !strings.HasPrefix(sql, "INSERT INTO companies") {
		return fakeRow{err: fmt.Errorf("unsupported query: %s", sql)}
	}

	ticker := args[0].(string)
	sector := args[1].(string)

	for _, existing := range []map[int64]*data.Company{tx.companies, tx.db.companies} {
		for id, company := range existing {
			if company.Ticker == ticker {
				tx.companies[id] = &data.Company{CompanyID: id, Ticker: ticker, Sector: sector}
				return fakeRow{id: id}
			}
		}
	}

	tx.db.nextID++
	id := tx.db.nextID
	tx.companies[id] = &data.Company{CompanyID: id, Ticker: ticker, Sector: sector}
	return fakeRow{id: id}
}

func (tx *fakeTx) Commit(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true

	if tx.db.FailCommit {
		return errConnectionReset
	}

	maps.Copy(tx.db.companies, tx.companies)
	for name, rows := range tx.tables {
		if tx.db.tables[name] == nil {
			tx.db.tables[name] = make(map[string]row)
		}
		maps.Copy(tx.db.tables[name], rows)
	}
	tx.db.commits++

	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	return nil
}

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

// fakeHistory reads committed statements back the way the stored history
// query does
type fakeHistory struct {
	db *fakeDB
}

func (history fakeHistory) Company(_ context.Context, _ pgx.Tx, companyID int64) (*data.Company, error) {
	history.db.mu.Lock()
	defer history.db.mu.Unlock()

	company, ok := history.db.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", library.ErrUnknownCompany, companyID)
	}
	clone := *company
	return &clone, nil
}

func (history fakeHistory) Periods(_ context.Context, _ pgx.Tx, companyID int64) ([]*data.PeriodFacts, error) {
	history.db.mu.Lock()
	defer history.db.mu.Unlock()

	var periods []*data.PeriodFacts
	for key, income := range history.db.tables[data.IncomeStatementsKey] {
		if income["company_id"] != companyID {
			continue
		}

		facts := data.NewPeriodFacts()
		facts.CompanyID = companyID
		facts.PeriodType = data.PeriodType(income["period_type"].(string))
		if year, ok := income["fiscal_year"].(int); ok {
			facts.FiscalYear = &year
		}

		sources := []row{
			income,
			history.db.tables[data.BalanceSheetsKey][key],
			history.db.tables[data.CashFlowStatementsKey][key],
		}
		for _, field := range facts.NumericFields() {
			for _, source := range sources {
				value, ok := source[field.Name]
				if !ok {
					continue
				}
				switch v := value.(type) {
				case *float64:
					if v != nil {
						*field.Value = *v
					}
				case float64:
					*field.Value = v
				}
				break
			}
		}

		periods = append(periods, facts)
	}

	sort.Slice(periods, func(i, j int) bool {
		a, b := periods[i], periods[j]
		if a.IsTTM() != b.IsTTM() {
			return b.IsTTM()
		}
		return a.IsTTM() || *a.FiscalYear < *b.FiscalYear
	})

	return periods, nil
}

type recordingCache struct {
	mu   sync.Mutex
	keys [][]string
	err  error
}

func (c *recordingCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, keys)
	return c.err
}

func (c *recordingCache) Calls() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys
}
