// Package ratelimit provides sliding-window admission control keyed by
// client identity. The window for a key never retains timestamps older
// than the configured duration, and check-then-append is atomic per key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskboard/taskboard/internal/logging"
)

// Limiter decides whether a request identified by key is admitted at the
// given instant. Implementations must serialize check-then-append per
// key; distinct keys must not contend.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// SlidingWindow is the in-process Limiter. Each key owns a timestamp
// sequence guarded by its own mutex; the registry mutex only covers
// lookup and insert, so admission checks for different keys run in
// parallel.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[string]*window

	maxRequests int
	window      time.Duration

	sweeper *cron.Cron
	logger  *logging.Logger
}

type window struct {
	mu     sync.Mutex
	stamps []time.Time
	// gone is set by the sweeper after the entry is removed from the
	// registry. A caller holding a stale pointer must retry.
	gone bool
}

// NewSlidingWindow creates a limiter admitting at most maxRequests per
// key within the trailing window.
func NewSlidingWindow(maxRequests int, windowDur time.Duration, logger *logging.Logger) *SlidingWindow {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SlidingWindow{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		window:      windowDur,
		logger:      logger,
	}
}

// Allow reports whether the request is admitted. Timestamps older than
// now - window are evicted first; on admission now is appended, on
// denial nothing is recorded.
func (s *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	for {
		s.mu.Lock()
		w, ok := s.windows[key]
		if !ok {
			w = &window{}
			s.windows[key] = w
		}
		s.mu.Unlock()

		w.mu.Lock()
		if w.gone {
			// Swept out between lookup and lock. Start over.
			w.mu.Unlock()
			continue
		}
		w.evict(now.Add(-s.window))
		allowed := len(w.stamps) < s.maxRequests
		if allowed {
			w.stamps = append(w.stamps, now)
		}
		w.mu.Unlock()
		return allowed, nil
	}
}

// evict drops timestamps at or before the cutoff. Stamps arrive in
// non-decreasing order per key, so a prefix scan suffices.
func (w *window) evict(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// StartSweeper schedules periodic removal of keys whose windows have
// drained, bounding memory for keys that stop making requests. Sweeping
// never changes admission behavior: a swept key is one that would evict
// to empty on its next touch anyway.
func (s *SlidingWindow) StartSweeper(interval time.Duration) error {
	if s.sweeper != nil {
		return fmt.Errorf("ratelimit: sweeper already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), s.sweep); err != nil {
		return fmt.Errorf("ratelimit: schedule sweep: %w", err)
	}
	c.Start()
	s.sweeper = c
	return nil
}

// StopSweeper cancels the periodic sweep. Safe to call without a started
// sweeper, and safe to call twice.
func (s *SlidingWindow) StopSweeper() {
	if s.sweeper == nil {
		return
	}
	ctx := s.sweeper.Stop()
	<-ctx.Done()
	s.sweeper = nil
}

func (s *SlidingWindow) sweep() {
	cutoff := time.Now().Add(-s.window)
	removed := 0

	s.mu.Lock()
	for key, w := range s.windows {
		w.mu.Lock()
		w.evict(cutoff)
		if len(w.stamps) == 0 {
			w.gone = true
			delete(s.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	total := len(s.windows)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": total,
		}).Debug("rate limit sweep completed")
	}
}

// Len reports the number of tracked keys. Intended for tests and the
// admin stats endpoint.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
