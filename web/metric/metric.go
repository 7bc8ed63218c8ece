/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metric

import (
	"bytes"

	"github.com/caiflower/hussar/web/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

type HttpMetric struct {
	registry           *prometheus.Registry
	httpRequestTotal   *prometheus.CounterVec
	costHistogram      prometheus.Histogram
	activeConnections  prometheus.Gauge
	handshakeFailTotal prometheus.Counter
}

// NewHttpMetric builds the collectors on a registry of their own, so several servers in one
// process do not collide on the default registerer.
func NewHttpMetric(server string) *HttpMetric {
	constLabels := prometheus.Labels{"server": server}

	buckets := []float64{1, 5, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}
	metric := &HttpMetric{
		registry:           prometheus.NewRegistry(),
		httpRequestTotal:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "hussar_http_requests_total", Help: "handled requests by method and status code", ConstLabels: constLabels}, []string{"method", "code"}),
		costHistogram:      prometheus.NewHistogram(prometheus.HistogramOpts{Name: "hussar_http_request_duration_ms", Help: "request handling time in milliseconds", Buckets: buckets, ConstLabels: constLabels}),
		activeConnections:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "hussar_http_active_connections", Help: "open client connections", ConstLabels: constLabels}),
		handshakeFailTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "hussar_tls_handshake_failures_total", Help: "failed tls handshakes", ConstLabels: constLabels}),
	}

	metric.registry.MustRegister(metric.httpRequestTotal, metric.costHistogram, metric.activeConnections, metric.handshakeFailTotal)
	return metric
}

// SaveMetric records one request. Unparseable requests have no method and are counted as "-".
func (m *HttpMetric) SaveMetric(method, code string, costMs int64) {
	if method == "" {
		method = "-"
	}
	m.httpRequestTotal.WithLabelValues(method, code).Inc()
	m.costHistogram.Observe(float64(costMs))
}

func (m *HttpMetric) ConnOpened() {
	m.activeConnections.Inc()
}

func (m *HttpMetric) ConnClosed() {
	m.activeConnections.Dec()
}

func (m *HttpMetric) HandshakeFailed() {
	m.handshakeFailTotal.Inc()
}

func (m *HttpMetric) Registry() *prometheus.Registry {
	return m.registry
}

// Render writes every collected family in the text exposition format.
func (m *HttpMetric) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	enc := expfmt.NewEncoder(buf, expfmt.FmtText)
	for _, family := range families {
		if err = enc.Encode(family); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Handle serves Render as a route handler.
func (m *HttpMetric) Handle(_ *protocol.Request, resp *protocol.Response) {
	body, err := m.Render()
	if err != nil {
		resp.InternalError()
		return
	}
	resp.SetHeader("Content-Type", string(expfmt.FmtText))
	resp.Body = body
}
