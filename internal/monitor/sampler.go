package monitor

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/taskboard/taskboard/internal/logging"
)

// DefaultLagThreshold flags sampler ticks that arrive more than 100ms
// late, which indicates the process is starved for CPU.
const DefaultLagThreshold = 100 * time.Millisecond

// ResourceSample is an immutable snapshot of process resource usage.
// Consumers only ever see whole snapshots, published by pointer swap.
type ResourceSample struct {
	RSS              uint64        `json:"rss"`
	HeapUsed         uint64        `json:"heap_used"`
	HeapTotal        uint64        `json:"heap_total"`
	Sys              uint64        `json:"sys"`
	Uptime           time.Duration `json:"uptime"`
	ActiveOperations int           `json:"active_operations"`
	Timestamp        time.Time     `json:"timestamp"`
}

// HealthMetrics is the aggregate view the health endpoint reports.
type HealthMetrics struct {
	RequestCount        int64
	AverageResponseTime time.Duration
	Sample              *ResourceSample
}

// Sampler periodically snapshots process memory and uptime. It runs
// independently of request handling and publishes immutable samples via
// an atomic pointer, so reads never block on the sampling goroutine.
type Sampler struct {
	proc      *process.Process
	monitor   *Monitor
	logger    *logging.Logger
	startTime time.Time

	interval     time.Duration
	lagThreshold time.Duration

	latest atomic.Pointer[ResourceSample]

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewSampler creates a Sampler tied to the current process. Zero or
// negative lagThreshold selects the default.
func NewSampler(interval, lagThreshold time.Duration, monitor *Monitor, logger *logging.Logger) (*Sampler, error) {
	if lagThreshold <= 0 {
		lagThreshold = DefaultLagThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &Sampler{
		proc:         proc,
		monitor:      monitor,
		logger:       logger,
		startTime:    time.Now(),
		interval:     interval,
		lagThreshold: lagThreshold,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// SampleNow takes a snapshot immediately and publishes it as the latest
// sample. A failure to read process memory leaves the previous sample in
// place and is reported to the caller.
func (s *Sampler) SampleNow() (*ResourceSample, error) {
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return nil, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := &ResourceSample{
		RSS:       memInfo.RSS,
		HeapUsed:  ms.HeapAlloc,
		HeapTotal: ms.HeapSys,
		Sys:       ms.Sys,
		Uptime:    time.Since(s.startTime),
		Timestamp: time.Now(),
	}
	if s.monitor != nil {
		sample.ActiveOperations = s.monitor.ActiveOperations()
	}

	s.latest.Store(sample)
	return sample, nil
}

// Start begins periodic sampling. Calling Start more than once is a
// no-op.
func (s *Sampler) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Sampler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Seed the latest sample so health reads do not wait a full interval.
	if _, err := s.SampleNow(); err != nil {
		s.logger.WithError(err).Warn("initial resource sample failed")
	}

	last := time.Now()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			// Scheduler-lag detection: compare the actual gap since the
			// previous tick against the expected interval.
			now := time.Now()
			if lag := now.Sub(last) - s.interval; lag > s.lagThreshold {
				s.logger.WithFields(map[string]interface{}{
					"lag":      lag.String(),
					"interval": s.interval.String(),
				}).Warn("sampler tick delayed")
			}
			last = now

			if _, err := s.SampleNow(); err != nil {
				// Skip this tick; sampling continues on the next one.
				s.logger.WithError(err).Warn("resource sample failed")
			}
		}
	}
}

// Stop cancels periodic sampling and waits for the goroutine to exit.
// Safe to call twice, and safe to call without Start.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.startOnce.Do(func() {
		// Never started: nothing to wait for.
		close(s.done)
	})
	<-s.done
}

// Latest returns the most recent sample, or nil when none was taken yet.
func (s *Sampler) Latest() *ResourceSample {
	return s.latest.Load()
}

// HealthSnapshot combines the latest sample with the aggregate request
// statistics. It never blocks on the sampling goroutine.
func (s *Sampler) HealthSnapshot() HealthMetrics {
	snap := HealthMetrics{Sample: s.latest.Load()}
	if s.monitor != nil {
		snap.RequestCount = s.monitor.RequestCount()
		snap.AverageResponseTime = s.monitor.AverageResponseTime()
	}
	return snap
}

// UptimeSeconds reports process uptime for health reporting.
func (s *Sampler) UptimeSeconds() float64 {
	return time.Since(s.startTime).Seconds()
}
