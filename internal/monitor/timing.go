// Package monitor implements request timing, process resource sampling,
// and the aggregate health view the /health endpoint reports from.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskboard/taskboard/internal/logging"
)

// DefaultSlowThreshold flags whole-request timings above one second.
const DefaultSlowThreshold = time.Second

// Monitor correlates start/stop timing pairs by operation identifier and
// keeps the aggregate request statistics. Durations come from the
// monotonic clock; wall-clock adjustments never skew them.
type Monitor struct {
	mu      sync.Mutex
	running map[string]time.Time

	slowThreshold time.Duration
	logger        *logging.Logger
	now           func() time.Time

	requestCount  atomic.Int64
	totalDuration atomic.Int64 // nanoseconds, for the running average
}

// NewMonitor creates a Monitor with the given slow-operation threshold.
// Zero or negative threshold selects the default.
func NewMonitor(slowThreshold time.Duration, logger *logging.Logger) *Monitor {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		running:       make(map[string]time.Time),
		slowThreshold: slowThreshold,
		logger:        logger,
		now:           time.Now,
	}
}

// Start records a monotonic start instant for the operation. Starting an
// id that is already running overwrites the previous start; the first
// interval is lost.
func (m *Monitor) Start(id string) {
	m.mu.Lock()
	m.running[id] = m.now()
	m.mu.Unlock()
}

// Stop ends the operation and returns its elapsed duration. Stopping an
// unknown id (never started, or stopped twice) returns ok = false and a
// warning log line; it never panics. The entry is removed either way, so
// a measurement does not outlive its stop.
func (m *Monitor) Stop(id string) (time.Duration, bool) {
	m.mu.Lock()
	start, ok := m.running[id]
	if ok {
		delete(m.running, id)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.WithFields(map[string]interface{}{
			"operation": id,
		}).Warn("timing stop without matching start")
		return 0, false
	}

	elapsed := m.now().Sub(start)
	m.observe(id, elapsed)
	return elapsed, true
}

// Timer measures a single operation without touching the shared
// registry. Handlers that already own the request scope should prefer
// this over Start/Stop.
type Timer struct {
	monitor *Monitor
	id      string
	start   time.Time
	stopped atomic.Bool
}

// StartTimer begins a standalone measurement for the operation.
func (m *Monitor) StartTimer(id string) *Timer {
	return &Timer{monitor: m, id: id, start: m.now()}
}

// Stop ends the measurement and returns the elapsed duration. Only the
// first call observes; later calls warn and return ok = false, matching
// the registry's unmatched-stop behavior.
func (t *Timer) Stop() (time.Duration, bool) {
	if !t.stopped.CompareAndSwap(false, true) {
		t.monitor.logger.WithFields(map[string]interface{}{
			"operation": t.id,
		}).Warn("timing stop without matching start")
		return 0, false
	}
	elapsed := t.monitor.now().Sub(t.start)
	t.monitor.observe(t.id, elapsed)
	return elapsed, true
}

// observe applies the slow-operation policy and feeds the aggregates.
// Observability only: it never alters control flow.
func (m *Monitor) observe(id string, elapsed time.Duration) {
	m.requestCount.Add(1)
	m.totalDuration.Add(int64(elapsed))

	fields := map[string]interface{}{
		"operation": id,
		"duration":  elapsed.String(),
	}
	if elapsed > m.slowThreshold {
		m.logger.WithFields(fields).Warn("slow operation")
	} else {
		m.logger.WithFields(fields).Debug("operation completed")
	}
}

// ActiveOperations reports the number of in-flight registry entries.
func (m *Monitor) ActiveOperations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// RequestCount reports the number of completed measurements.
func (m *Monitor) RequestCount() int64 {
	return m.requestCount.Load()
}

// AverageResponseTime reports the running mean over all completed
// measurements, or zero when nothing completed yet.
func (m *Monitor) AverageResponseTime() time.Duration {
	count := m.requestCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(m.totalDuration.Load() / count)
}
