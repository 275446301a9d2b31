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
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/penny-vault/pvmetrics/cache"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvmetrics",
	Short: "pvmetrics normalizes company financial statements and scores them",
	Long: `pvmetrics is a command line utility that takes up to ten years of annual
financial statements plus a trailing-twelve-month period for a company,
computes profitability, growth, efficiency, leverage and cash flow metrics for
every period and for the company as a whole, scores the company against a
fixed rule table and saves everything to a PostgreSQL database.

Statements are read from JSON or CSV files, stdin, or http(s) URLs. Real
estate companies are treated as REITs: funds from operations take the place
of free cash flow.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			log.Warn().Err(err).Str("Level", viper.GetString("log.level")).Msg("unknown log level, using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.DefaultContextLogger = &log.Logger

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvmetrics.toml)")

	rootCmd.PersistentFlags().String("db-url", "", "database connection string")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("db-url")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for db-url failed")
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for log-level failed")
	}

	rootCmd.PersistentFlags().String("fcf", string(metrics.FcfFromNetIncome), "free cash flow definition (net-income or operating-income)")
	if err := viper.BindPFlag("formulas.fcf", rootCmd.PersistentFlags().Lookup("fcf")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for fcf failed")
	}

	viper.SetDefault("cache.prefix", "pvmetrics")
	viper.SetDefault("ingest.rate", 10.0)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// a missing .env file is not an error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvmetrics" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvmetrics")
	}

	viper.SetEnvPrefix("pvmetrics")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // PVMETRICS_DB_URL overrides db.url
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

// fcfDefinition reads the configured free cash flow definition
func fcfDefinition() metrics.FcfDefinition {
	def, err := metrics.ParseFcfDefinition(viper.GetString("formulas.fcf"))
	if err != nil {
		log.Fatal().Err(err).Str("Definition", viper.GetString("formulas.fcf")).Msg("invalid formulas.fcf setting")
	}
	return def
}

// newInvalidator returns the configured cache backend
func newInvalidator() cache.Invalidator {
	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return cache.Nop{}
	}
	return cache.NewRedis(redisURL, viper.GetString("cache.prefix"))
}

// openPipeline connects to the library and builds the persistence pipeline.
// The returned func releases both.
func openPipeline(ctx context.Context) (*library.Library, *library.Pipeline, func()) {
	myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to library")
	}

	invalidator := newInvalidator()
	pipeline := myLibrary.Pipeline(invalidator, fcfDefinition())

	return myLibrary, pipeline, func() {
		if closer, ok := invalidator.(*cache.Redis); ok {
			if err := closer.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis pool")
			}
		}
		myLibrary.Close()
	}
}
