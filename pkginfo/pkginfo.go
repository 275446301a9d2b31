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
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	BuildDate  string
	CommitHash string
	Version    string
)

// Build describes the running binary
type Build struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit,omitempty"`
	BuildDate string   `json:"build_date,omitempty"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Deps      []string `json:"deps,omitempty"`
}

func version() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Current reports the build, listing linked modules when withDeps is set
func Current(withDeps bool) *Build {
	build := &Build{
		Version:   version(),
		Commit:    CommitHash,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if withDeps {
		build.Deps = Dependencies()
	}
	return build
}

// String formats the build for the terminal
func (build *Build) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pvmetrics %s %s\n\n", build.Version, build.Platform)
	fmt.Fprintf(&sb, "Build Date: %s\n", build.BuildDate)
	fmt.Fprintf(&sb, "Commit: %s\n", build.Commit)
	fmt.Fprintf(&sb, "Built with: %s", build.GoVersion)

	if len(build.Deps) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(build.Deps, "\n"))
	}

	return sb.String()
}

// UserAgent identifies pvmetrics in outgoing http requests
func UserAgent() string {
	return fmt.Sprintf("pvmetrics/%s (%s; %s)", version(), runtime.GOOS, runtime.GOARCH)
}

// Dependencies lists linked modules as `path="version"`, sorted by path
func Dependencies() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return nil
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		depVersion := dep.Version
		if dep.Replace != nil {
			depVersion = dep.Replace.Version
		}
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, depVersion))
	}

	slices.Sort(deps)
	return deps
}
