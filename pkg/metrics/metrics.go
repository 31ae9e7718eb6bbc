// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/sentry"
)

const (
	// Component labels.
	ComponentReader     = "reader"
	ComponentWriter     = "writer"
	ComponentDownloader = "downloader"
	ComponentUploader   = "uploader"
	ComponentMonitor    = "monitor"
	ComponentStarvation = "starvation_checker"

	// Operation labels.
	OperationRead  = "read"
	OperationWrite = "write"
)

var (
	namespace = "umh"
	subsystem = "acquisition"

	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	collectorExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collector_executions_total",
			Help:      "Total number of batch collector executions, one per transport group and transfer",
		},
		[]string{"component", "instance", "operation"},
	)

	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "group_transfer_duration_seconds",
			Help:      "Duration of a single batch collector execution in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"component", "instance", "operation"},
	)

	cycleTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycle_duration_milliseconds",
			Help:      "Time taken by one download or upload cycle including callbacks (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.01,
			},
		},
		[]string{"component", "instance"},
	)

	rebuildCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rebuilds_total",
			Help:      "Total number of subscription plan rebuilds",
		},
		[]string{"component", "instance"},
	)

	effectiveEndpoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "effective_endpoints",
			Help:      "Number of endpoints transferred by the root of a subscription tree",
		},
		[]string{"component", "instance"},
	)

	monitorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "monitor_state",
			Help:      "Current state of a monitor (0=Idle, 1=Running, 2=Paused, 3=Stopped, -1=Unknown)",
		},
		[]string{"instance"},
	)

	starvationSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "starved_total_seconds",
			Help:      "Total seconds an acquisition loop went without completing a cycle",
		},
		[]string{"instance"},
	)
)

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter initializes the error counter for a component so it is exported before the first failure.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// ObserveCollectorExecution records one batch collector execution.
func ObserveCollectorExecution(component, instance, operation string, duration time.Duration) {
	collectorExecutions.WithLabelValues(component, instance, operation).Inc()
	transferDuration.WithLabelValues(component, instance, operation).Observe(duration.Seconds())
}

// ObserveCycleTime records the time taken by one download or upload cycle.
func ObserveCycleTime(component, instance string, duration time.Duration) {
	cycleTime.WithLabelValues(component, instance).Observe(float64(duration.Milliseconds()))
}

// IncRebuildCount counts one rebuild of a subscription node.
func IncRebuildCount(component, instance string) {
	rebuildCounter.WithLabelValues(component, instance).Inc()
}

// SetEffectiveEndpoints exports the size of the root's effective endpoint set.
func SetEffectiveEndpoints(component, instance string, count int) {
	effectiveEndpoints.WithLabelValues(component, instance).Set(float64(count))
}

// UpdateMonitorState exports the lifecycle state of a monitor.
func UpdateMonitorState(instance, state string) {
	monitorState.WithLabelValues(instance).Set(getStateValue(state))
}

// AddStarvationTime increases the starvation counter by the specified seconds.
func AddStarvationTime(instance string, seconds float64) {
	starvationSeconds.WithLabelValues(instance).Add(seconds)
}

func getStateValue(state string) float64 {
	switch state {
	case "idle":
		return 0
	case "running":
		return 1
	case "paused":
		return 2
	case "stopped":
		return 3
	default:
		return -1
	}
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics and /debug/subscriptions.
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/subscriptions", handleDebug)

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeError, logger.For("metrics"))
		}
	}()

	return server
}
