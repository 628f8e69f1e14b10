/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package metrics holds the Prometheus collectors for the launcher. Every
// method is safe on a nil *Collector so callers can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "tigerlauncher"

// Gesture outcomes.
const (
	GestureSelected  = "selected"
	GestureCancelled = "cancelled"
	GestureEmpty     = "empty"
)

// Collector owns a private registry so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	Gestures     *prometheus.CounterVec
	Edits        *prometheus.CounterVec
	Saves        *prometheus.CounterVec
	Dispatches   *prometheus.CounterVec
	Points       prometheus.Gauge
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gestures_total",
			Help:      "Completed drag gestures by outcome.",
		}, []string{"outcome"}),
		Edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "edits_total",
			Help:      "Layout edits by operation.",
		}, []string{"op"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "saves_total",
			Help:      "Persistence writes by kind and status.",
		}, []string{"kind", "status"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched actions by outcome.",
		}, []string{"outcome"}),
		Points: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "points",
			Help:      "Points in the current layout.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.Gestures, c.Edits, c.Saves, c.Dispatches, c.Points,
		c.HTTPRequests, c.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Gesture(outcome string) {
	if c == nil {
		return
	}
	c.Gestures.WithLabelValues(outcome).Inc()
}

func (c *Collector) Edit(op string) {
	if c == nil {
		return
	}
	c.Edits.WithLabelValues(op).Inc()
}

// Save records one persistence write. kind is "points" or "nests".
func (c *Collector) Save(kind string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Saves.WithLabelValues(kind, status).Inc()
}

func (c *Collector) Dispatch(outcome string) {
	if c == nil {
		return
	}
	c.Dispatches.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetPoints(n int) {
	if c == nil {
		return
	}
	c.Points.Set(float64(n))
}

func (c *Collector) HTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
