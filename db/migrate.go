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
package db

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationURL converts a postgres DSN to the scheme understood by the pgx
// migration driver
func MigrationURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}

func newMigration(databaseURL string) (*migrate.Migrate, error) {
	migrationDir, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithSourceInstance("iofs", migrationDir, MigrationURL(databaseURL))
}

// Migrate brings the schema up to date. An already current schema is not
// an error.
func Migrate(databaseURL string) error {
	migration, err := newMigration(databaseURL)
	if err != nil {
		return err
	}
	defer migration.Close()

	err = migration.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("database schema is up to date")
		return nil
	}

	return err
}

// Version reports the schema version currently applied
func Version(databaseURL string) (uint, bool, error) {
	migration, err := newMigration(databaseURL)
	if err != nil {
		return 0, false, err
	}
	defer migration.Close()

	version, dirty, err := migration.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}
