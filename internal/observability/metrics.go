package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	connections   int64
	subscriptions int64
	publishes     int64
	droppedFrames int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// ConnectionOpened tracks a new realtime connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections++
}

// ConnectionClosed tracks a released realtime connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections--
}

// SubscriptionDelta adjusts the live subscription gauge.
func (m *Metrics) SubscriptionDelta(delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions += delta
}

// RecordPublish tracks a hub fan-out and any frames dropped on full buffers.
func (m *Metrics) RecordPublish(dropped int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes++
	m.droppedFrames += dropped
}

// RealtimeSnapshot reports current hub gauges.
func (m *Metrics) RealtimeSnapshot() (connections, subscriptions, publishes, dropped int64) {
	if m == nil {
		return 0, 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections, m.subscriptions, m.publishes, m.droppedFrames
}
