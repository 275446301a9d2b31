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
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvmetrics/pkginfo"
	"github.com/spf13/viper"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

const pingURL = "https://hc-ping.com"

type createReq struct {
	APIKey      string `json:"api_key"`
	Name        string `json:"name"`
	Description string `json:"desc,omitempty"`
	Grace       int    `json:"grace"`
	Schedule    string `json:"schedule"`
	Slug        string `json:"slug"`
	Tags        string `json:"tags"`
	Timezone    string `json:"tz"`
}

type createResp struct {
	PingURL string `json:"ping_url"`
}

func newClient() *resty.Client {
	return resty.New().SetHeader("User-Agent", pkginfo.UserAgent())
}

// Create a new healthchecks.io check and return the id
func Create(ctx context.Context, name string, slug string, tags []string, schedule string) (string, error) {
	command := createReq{
		APIKey:      viper.GetString("healthchecks.apikey"),
		Name:        name,
		Description: "pvmetrics ingest",
		Slug:        slug,
		Tags:        strings.Join(tags, " "),
		Grace:       3600,
		Schedule:    schedule,
		Timezone:    "America/New_York",
	}

	result := createResp{}

	resp, err := newClient().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(command).
		SetResult(&result).
		Post("https://healthchecks.io/api/v3/checks/")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() > 201 {
		return "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	checkID := strings.Split(result.PingURL, "/")
	healthCheckID := checkID[len(checkID)-1]

	return healthCheckID, nil
}

// Start signals that a run of the check has begun
func Start(ctx context.Context, id string) error {
	return ping(ctx, id, "/start", "")
}

// Success signals that a run finished; body is attached to the ping
func Success(ctx context.Context, id string, body string) error {
	return ping(ctx, id, "", body)
}

// Fail signals that a run failed; body is attached to the ping
func Fail(ctx context.Context, id string, body string) error {
	return ping(ctx, id, "/fail", body)
}

func ping(ctx context.Context, id, suffix, body string) error {
	if id == "" {
		return nil
	}

	resp, err := newClient().R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("%s/%s%s", pingURL, id, suffix))

	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
