package logging

import "sync"

// Metrics is a small in-process counter and gauge registry. Subsystems
// record into it through the telemetry wrappers; diagnostics endpoints
// read it back out with Snapshot.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
	}
}

// TelemetryAdd increments a counter by delta.
func (m *Metrics) TelemetryAdd(key string, delta int64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[key] += delta
	m.mu.Unlock()
}

// TelemetryStore overwrites a gauge.
func (m *Metrics) TelemetryStore(key string, value int64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.gauges == nil {
		m.gauges = make(map[string]int64)
	}
	m.gauges[key] = value
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the registry.
type MetricsSnapshot struct {
	Counters map[string]int64 `json:"counters"`
	Gauges   map[string]int64 `json:"gauges"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters: make(map[string]int64),
		Gauges:   make(map[string]int64),
	}
	if m == nil {
		return snapshot
	}
	m.mu.RLock()
	for k, v := range m.counters {
		snapshot.Counters[k] = v
	}
	for k, v := range m.gauges {
		snapshot.Gauges[k] = v
	}
	m.mu.RUnlock()
	return snapshot
}
