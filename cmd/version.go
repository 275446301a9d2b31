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
	"fmt"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvmetrics/db"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/penny-vault/pvmetrics/pkginfo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type versionReport struct {
	*pkginfo.Build
	FcfDefinition metrics.FcfDefinition `json:"fcf_definition"`
	Schema        *uint                 `json:"schema_version,omitempty"`
	SchemaDirty   bool                  `json:"schema_dirty,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		deps, _ := cmd.Flags().GetBool("deps")
		short, _ := cmd.Flags().GetBool("short")
		schema, _ := cmd.Flags().GetBool("schema")
		asJSON, _ := cmd.Flags().GetBool("json")

		build := pkginfo.Current(deps)
		if short {
			fmt.Println(build.Version)
			return
		}

		report := versionReport{
			Build:         build,
			FcfDefinition: fcfDefinition(),
		}

		if schema {
			version, dirty, err := db.Version(viper.GetString("db.url"))
			if err != nil {
				log.Fatal().Err(err).Msg("could not read schema version")
			}
			report.Schema = &version
			report.SchemaDirty = dirty
		}

		if asJSON {
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode version")
			}
			fmt.Println(string(out))
			return
		}

		fmt.Println(build.String())
		fmt.Printf("\nFCF definition: %s\n", report.FcfDefinition)
		if report.Schema != nil {
			fmt.Printf("Schema version: %d", *report.Schema)
			if report.SchemaDirty {
				fmt.Print(" (dirty)")
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("deps", "d", false, "print dependencies")
	versionCmd.Flags().BoolP("short", "s", false, "only print version number")
	versionCmd.Flags().Bool("schema", false, "also print the database schema version")
	versionCmd.Flags().Bool("json", false, "print as json")
}
