package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersPlaced    atomic.Uint64
	ordersCancelled atomic.Uint64
	tradesExecuted  atomic.Uint64
	volumeCents     atomic.Int64
	errorsTotal     atomic.Uint64

	// Matching latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	feedSubscribers atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordOrderPlaced records one accepted order with its matching latency.
func (m *Metrics) RecordOrderPlaced(latencyNs int64) {
	m.ordersPlaced.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordOrderCancelled records a cancelled order.
func (m *Metrics) RecordOrderCancelled() {
	m.ordersCancelled.Add(1)
}

// RecordTrade records one executed trade and its cash value.
func (m *Metrics) RecordTrade(valueCents int64) {
	m.tradesExecuted.Add(1)
	m.volumeCents.Add(valueCents)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementSubscribers increments the feed subscriber gauge by 1.
func (m *Metrics) IncrementSubscribers() {
	m.feedSubscribers.Add(1)
}

// DecrementSubscribers decrements the feed subscriber gauge by 1.
func (m *Metrics) DecrementSubscribers() {
	m.feedSubscribers.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersPlaced    uint64
	OrdersCancelled uint64
	TradesExecuted  uint64
	VolumeCents     int64
	ErrorsTotal     uint64
	AvgLatencyNs    int64
	FeedSubscribers int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersPlaced:    m.ordersPlaced.Load(),
		OrdersCancelled: m.ordersCancelled.Load(),
		TradesExecuted:  m.tradesExecuted.Load(),
		VolumeCents:     m.volumeCents.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		AvgLatencyNs:    avgLatency,
		FeedSubscribers: m.feedSubscribers.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersPlaced.Store(0)
	m.ordersCancelled.Store(0)
	m.tradesExecuted.Store(0)
	m.volumeCents.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.feedSubscribers.Store(0)
}
