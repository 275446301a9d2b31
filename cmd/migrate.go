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
package cmd

import (
	"github.com/penny-vault/pvmetrics/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Run: func(cmd *cobra.Command, args []string) {
		dbURL := viper.GetString("db.url")

		if err := db.Migrate(dbURL); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		version, dirty, err := db.Version(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read schema version")
		}

		log.Info().Uint("Version", version).Bool("Dirty", dirty).Msg("database schema migrated")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
