// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records channel traffic. A nil *Metrics records nothing.
type Metrics struct {
	messages     *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	violations   *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics and registers them with reg.
// If reg is nil, the metrics are not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efdstream_messages_total",
				Help: "Total number of messages sent or received",
			},
			[]string{"direction", "op"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efdstream_bytes_total",
				Help: "Total payload bytes sent or received",
			},
			[]string{"direction", "op"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efdstream_protocol_violations_total",
				Help: "Signaled lengths exceeding the buffer capacity",
			},
			[]string{"direction"},
		),
		sendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "efdstream_send_duration_seconds",
				Help:    "Time from writing a payload until its acknowledgement",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"direction"},
		),
	}
}

// MessageSent records an acknowledged message.
func (m *Metrics) MessageSent(direction string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(direction, "send").Inc()
	m.bytes.WithLabelValues(direction, "send").Add(float64(size))
	m.sendDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// MessageReceived records a handled message.
func (m *Metrics) MessageReceived(direction string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(direction, "receive").Inc()
	m.bytes.WithLabelValues(direction, "receive").Add(float64(size))
}

// ProtocolViolation records a discarded length signal.
func (m *Metrics) ProtocolViolation(direction string, _ uint64) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(direction).Inc()
}
