// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promInferenceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshmatch_engine_inference_calls_total",
			Help: "Total number of inference API calls",
		},
		[]string{"provider", "feature", "status"},
	)
	promInferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshmatch_engine_inference_duration_milliseconds",
			Help:    "Inference call duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"feature"},
	)
	promFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshmatch_engine_fallbacks_total",
			Help: "Total number of analyses served from fixed fallback defaults",
		},
		[]string{"kind"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promInferenceCalls)
	prometheus.MustRegister(promInferenceDuration)
	prometheus.MustRegister(promFallbacks)
}

func observeInference(provider, feature string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	promInferenceCalls.WithLabelValues(provider, feature, status).Inc()
	promInferenceDuration.WithLabelValues(feature).Observe(float64(elapsed.Milliseconds()))
}

func countFallback(kind string) {
	promFallbacks.WithLabelValues(kind).Inc()
}
