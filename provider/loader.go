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
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/pkginfo"
	"github.com/rs/zerolog"
)

var (
	ErrStatus       = errors.New("status code is invalid")
	ErrEmptyPayload = errors.New("payload contains no periods")
	ErrMalformed    = errors.New("payload is malformed")
)

// Loader turns a payload of raw statement facts into submissions
type Loader interface {
	Name() string
	Extensions() []string
	Load(ctx context.Context, payload []byte) ([]*data.Submission, error)
}

var loaders = map[string]Loader{}

func Register(loader Loader) {
	loaders[loader.Name()] = loader
}

func init() {
	Register(JSON{})
	Register(CSV{})
}

// Get returns the loader registered under name
func Get(name string) (Loader, error) {
	if loader, ok := loaders[strings.ToLower(name)]; ok {
		return loader, nil
	}
	return nil, fmt.Errorf("%w: %s", data.ErrUnknownFormat, name)
}

// ForSource picks a loader by the extension of a file name or URL path
func ForSource(source string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(source, "?", 2)[0]))
	for _, name := range Names() {
		loader := loaders[name]
		for _, candidate := range loader.Extensions() {
			if ext == candidate {
				return loader, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", data.ErrUnknownFormat, source)
}

// Names lists the registered loaders
func Names() []string {
	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read fetches a payload from a file, from stdin when source is "-", or
// over http(s)
func Read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return fetch(ctx, source)
	default:
		return os.ReadFile(source)
	}
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	client := resty.New().SetHeader("User-Agent", pkginfo.UserAgent())
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		logger.Error().Err(err).Str("Url", url).Msg("failed to download payload")
		return nil, err
	}

	if resp.StatusCode() >= 400 {
		logger.Error().Int("StatusCode", resp.StatusCode()).Str("Url", url).Bytes("Body", resp.Body()).Msg("error when requesting url")
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return resp.Body(), nil
}
