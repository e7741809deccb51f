// Package metrics exposes pipeline health counters. When a
// prometheus.Registerer is supplied they are mirrored into real
// Prometheus metrics for scraping; the atomic counters underneath are
// always authoritative and queryable directly, so callers never need a
// metrics backend wired up just to read the pipeline's own health.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the pipeline's health counters.
type Metrics struct {
	framesDropped  atomic.Uint64
	decodeErrors   atomic.Uint64
	packetsRead    atomic.Uint64
	queueBytes     atomic.Int64

	promFramesDropped prometheus.Counter
	promDecodeErrors  *prometheus.CounterVec
	promQueueBytes    prometheus.Gauge
}

// New builds a Metrics instance. If reg is non-nil, Prometheus
// collectors are created and registered against it; if registration
// fails (e.g. a name collision), the collectors are left nil and the
// atomic counters keep working on their own.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	if reg == nil {
		return m
	}

	framesDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "myplayer",
		Name:      "frames_dropped_total",
		Help:      "Video frames dropped to catch up with the master clock.",
	})
	decodeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "myplayer",
		Name:      "decode_errors_total",
		Help:      "Decoder errors encountered, by stream kind.",
	}, []string{"stream"})
	queueBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "myplayer",
		Name:      "packet_queue_bytes",
		Help:      "Total bytes buffered across all packet queues.",
	})

	if err := reg.Register(framesDropped); err == nil {
		m.promFramesDropped = framesDropped
	}
	if err := reg.Register(decodeErrors); err == nil {
		m.promDecodeErrors = decodeErrors
	}
	if err := reg.Register(queueBytes); err == nil {
		m.promQueueBytes = queueBytes
	}
	return m
}

// IncFramesDropped records one video frame dropped by VideoSync.
func (m *Metrics) IncFramesDropped() {
	m.framesDropped.Add(1)
	if m.promFramesDropped != nil {
		m.promFramesDropped.Inc()
	}
}

// FramesDropped returns the running total of dropped video frames.
func (m *Metrics) FramesDropped() uint64 { return m.framesDropped.Load() }

// IncDecodeErrors records one decode error for the named stream kind
// ("video", "audio" or "subtitle").
func (m *Metrics) IncDecodeErrors(stream string) {
	m.decodeErrors.Add(1)
	if m.promDecodeErrors != nil {
		m.promDecodeErrors.WithLabelValues(stream).Inc()
	}
}

// DecodeErrors returns the running total of decode errors across every
// stream kind.
func (m *Metrics) DecodeErrors() uint64 { return m.decodeErrors.Load() }

// IncPacketsRead records one packet pulled from the source by the reader.
func (m *Metrics) IncPacketsRead() { m.packetsRead.Add(1) }

// PacketsRead returns the running total of packets read from the source.
func (m *Metrics) PacketsRead() uint64 { return m.packetsRead.Load() }

// SetQueueBytes records the combined size of every packet queue, used for
// backpressure observability.
func (m *Metrics) SetQueueBytes(n int64) {
	m.queueBytes.Store(n)
	if m.promQueueBytes != nil {
		m.promQueueBytes.Set(float64(n))
	}
}

// QueueBytes returns the most recently recorded combined packet queue
// size.
func (m *Metrics) QueueBytes() int64 { return m.queueBytes.Load() }
