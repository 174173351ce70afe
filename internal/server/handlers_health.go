package server

import (
	"net/http"
	"time"

	"github.com/taskboard/taskboard/internal/middleware"
	"github.com/taskboard/taskboard/internal/monitor"
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.deps.Sampler != nil {
		body["uptime_seconds"] = s.deps.Sampler.UptimeSeconds()

		sample := s.deps.Sampler.Latest()
		if sample == nil {
			// First request before the sampler's initial tick.
			sample, _ = s.deps.Sampler.SampleNow()
		}
		if sample != nil {
			body["memory"] = map[string]uint64{
				"rss":        sample.RSS,
				"heap_used":  sample.HeapUsed,
				"heap_total": sample.HeapTotal,
			}
		}
	}

	middleware.WriteJSON(w, http.StatusOK, body)
}

func (s *server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{}

	if s.deps.Monitor != nil {
		body["request_count"] = s.deps.Monitor.RequestCount()
		body["average_response_time_ms"] = float64(s.deps.Monitor.AverageResponseTime()) / float64(time.Millisecond)
		body["active_operations"] = s.deps.Monitor.ActiveOperations()
	}

	var sample *monitor.ResourceSample
	if s.deps.Sampler != nil {
		sample = s.deps.Sampler.Latest()
		if sample == nil {
			sample, _ = s.deps.Sampler.SampleNow()
		}
	}
	if sample != nil {
		body["resources"] = sample
	}

	middleware.WriteJSON(w, http.StatusOK, body)
}
