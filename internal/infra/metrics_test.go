package infra

import (
	"testing"
)

func TestMetrics_RecordOrderPlaced(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderPlaced(1000)
	m.RecordOrderPlaced(2000)
	m.RecordOrderPlaced(3000)

	snap := m.Snapshot()

	if snap.OrdersPlaced != 3 {
		t.Errorf("Expected 3 orders, got %d", snap.OrdersPlaced)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_RecordTrade(t *testing.T) {
	m := &Metrics{}

	m.RecordTrade(4500)
	m.RecordTrade(500)

	snap := m.Snapshot()
	if snap.TradesExecuted != 2 {
		t.Errorf("Expected 2 trades, got %d", snap.TradesExecuted)
	}
	if snap.VolumeCents != 5000 {
		t.Errorf("Expected 5000 cents volume, got %d", snap.VolumeCents)
	}
}

func TestMetrics_Subscribers(t *testing.T) {
	m := &Metrics{}

	m.IncrementSubscribers()
	m.IncrementSubscribers()
	m.IncrementSubscribers()

	snap := m.Snapshot()
	if snap.FeedSubscribers != 3 {
		t.Errorf("Expected 3 subscribers, got %d", snap.FeedSubscribers)
	}

	m.DecrementSubscribers()
	snap = m.Snapshot()
	if snap.FeedSubscribers != 2 {
		t.Errorf("Expected 2 subscribers, got %d", snap.FeedSubscribers)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderPlaced(1000)
	m.RecordOrderCancelled()
	m.RecordError()
	m.IncrementSubscribers()

	m.Reset()
	snap := m.Snapshot()

	if snap.OrdersPlaced != 0 {
		t.Error("Expected 0 orders after reset")
	}
	if snap.OrdersCancelled != 0 {
		t.Error("Expected 0 cancellations after reset")
	}
	if snap.ErrorsTotal != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.FeedSubscribers != 0 {
		t.Error("Expected 0 subscribers after reset")
	}
}
