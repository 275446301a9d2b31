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
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "pvmetrics"

const (
	OutcomeSaved   = "saved"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

var (
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Company submissions processed, by variant and outcome",
	}, []string{"variant", "outcome"})

	SubmissionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_seconds",
		Help:      "Time to validate, compute and persist one submission",
		Buckets:   prometheus.DefBuckets,
	}, []string{"variant"})

	RowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_written_total",
		Help:      "Rows upserted, by table",
	}, []string{"table"})

	CacheInvalidationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidation_errors_total",
		Help:      "Cache invalidations that failed after a successful commit",
	})
)

func init() {
	prometheus.MustRegister(Submissions, SubmissionDuration, RowsWritten, CacheInvalidationErrors)
}

// ObserveSubmission records the outcome and duration of a submission
func ObserveSubmission(variant, outcome string, start time.Time) {
	Submissions.WithLabelValues(variant, outcome).Inc()
	SubmissionDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Close(); err != nil {
			log.Error().Err(err).Msg("error closing metrics server")
		}
	}()

	go func() {
		log.Info().Str("Addr", addr).Msg("serving prometheus metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("Addr", addr).Msg("metrics server failed")
		}
	}()
}
