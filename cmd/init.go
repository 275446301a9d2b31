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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/gomodule/redigo/redis"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvmetrics/db"
	"github.com/penny-vault/pvmetrics/healthcheck"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type dbConfig struct {
	URL string `toml:"url"`
}

type cacheConfig struct {
	RedisURL string `toml:"redis_url,omitempty"`
	Prefix   string `toml:"prefix"`
}

type formulasConfig struct {
	Fcf string `toml:"fcf"`
}

type healthchecksConfig struct {
	APIKey  string `toml:"apikey,omitempty"`
	CheckID string `toml:"check_id,omitempty"`
}

// config is the layout of $HOME/.pvmetrics.toml
type config struct {
	DB           dbConfig           `toml:"db"`
	Cache        cacheConfig        `toml:"cache"`
	Formulas     formulasConfig     `toml:"formulas"`
	Healthchecks healthchecksConfig `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		conf := config{
			Cache:    cacheConfig{Prefix: "pvmetrics"},
			Formulas: formulasConfig{Fcf: string(metrics.FcfFromNetIncome)},
		}
		monitored := false

		form := huh.NewForm(
			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&conf.DB.URL).
					Validate(func(dsn string) error {
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),

			// Cache invalidation and formulas
			huh.NewGroup(
				huh.NewInput().
					Title("Redis URL of the response cache to invalidate (leave blank if there is none)").
					Value(&conf.Cache.RedisURL).
					Validate(func(redisURL string) error {
						if redisURL == "" {
							return nil
						}
						conn, err := redis.DialURL(redisURL)
						if err != nil {
							return err
						}
						return conn.Close()
					}),
				huh.NewSelect[string]().
					Title("How should free cash flow be reconciled?").
					Options(
						huh.NewOption("From net income", string(metrics.FcfFromNetIncome)),
						huh.NewOption("From operating income", string(metrics.FcfFromOperatingIncome)),
					).
					Value(&conf.Formulas.Fcf),
				huh.NewConfirm().
					Title("Should a healthcheck.io monitor be created for scheduled ingests?").
					Value(&monitored),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering database settings")
		}

		if monitored {
			apiKeyForm := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("healthchecks.io API key").
						Value(&conf.Healthchecks.APIKey),
				),
			)
			if err := apiKeyForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering healthcheck settings")
			}
		}

		log.Info().Msg("creating database tables")

		// run migration
		err = db.Migrate(conf.DB.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("database tables created")

		// verify the connection the pipeline will use
		myLibrary, err := library.NewFromDB(ctx, conf.DB.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		myLibrary.Close()

		if monitored {
			host, _ := os.Hostname()
			checkSlug := slug.Make(fmt.Sprintf("pvmetrics ingest %s", host))
			viper.Set("healthchecks.apikey", conf.Healthchecks.APIKey)
			checkID, err := healthcheck.Create(ctx, fmt.Sprintf("pvmetrics ingest (%s)", host), checkSlug,
				[]string{"pvmetrics", "ingest"}, "0 6 * * *")
			if err != nil {
				log.Fatal().Err(err).Msg("creating healthcheck failed")
			}
			conf.Healthchecks.CheckID = checkID
		}

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		configFN := filepath.Join(home, ".pvmetrics.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving database connection info to config file")
		configData, err := toml.Marshal(conf)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		printConfig(conf)

		log.Info().Msg("Your metrics library has been initialized")
	},
}

func printConfig(conf config) {
	var sb strings.Builder
	keyword := func(s string) string {
		if s == "" {
			s = "-"
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
	}

	fmt.Fprintf(&sb,
		"%s\n\nCache: %s\nCache Prefix: %s\nFree Cash Flow: %s\nHealthcheck: %s\n",
		lipgloss.NewStyle().Bold(true).Render("PVMETRICS CONFIGURATION"),
		keyword(conf.Cache.RedisURL),
		keyword(conf.Cache.Prefix),
		keyword(conf.Formulas.Fcf),
		keyword(conf.Healthchecks.CheckID),
	)

	fmt.Println(
		lipgloss.NewStyle().
			Width(60).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Render(sb.String()),
	)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
