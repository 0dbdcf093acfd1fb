/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Autoscaler metrics.
var (
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleet",
			Subsystem: "autoscaler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one control-loop tick.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TickErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "autoscaler",
			Name:      "tick_errors_total",
			Help:      "Total number of ticks aborted by stage.",
		},
		[]string{"stage"},
	)

	PlaceholdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "autoscaler",
			Name:      "placeholders_created_total",
			Help:      "Total number of placeholder pods created.",
		},
	)

	PlaceholdersDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "autoscaler",
			Name:      "placeholders_deleted_total",
			Help:      "Total number of placeholder pods deleted, by reason.",
		},
		[]string{"reason"},
	)

	RunnersByClass = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleet",
			Subsystem: "autoscaler",
			Name:      "runners",
			Help:      "Number of runners observed in the last tick, by classification.",
		},
		[]string{"class"},
	)
)

// AutoscalerCollectors returns every metric registered by the autoscaler
// binary.
func AutoscalerCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		TickDuration,
		TickErrorsTotal,
		PlaceholdersCreatedTotal,
		PlaceholdersDeletedTotal,
		RunnersByClass,
	}
}

// Preview-proxy metrics.
var (
	CredentialAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet",
			Subsystem: "previewproxy",
			Name:      "credential_attempt_duration_seconds",
			Help:      "Duration of one credential-resolution attempt, by method and outcome.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "outcome"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "previewproxy",
			Name:      "requests_total",
			Help:      "Total number of proxy requests, by outcome.",
		},
		[]string{"outcome"},
	)
)

// PreviewProxyCollectors returns every metric registered by the preview
// proxy binary.
func PreviewProxyCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		CredentialAttemptDuration,
		RequestsTotal,
	}
}
