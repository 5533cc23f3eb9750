package api

import (
	"context"
	"net/http"
	"os"
	"sort"
	"time"
)

// healthCheckTimeout bounds each collaborator check.
const healthCheckTimeout = 2 * time.Second

// probeHealth reports whether the probe script is where it is expected.
type probeHealth struct {
	Script  string `json:"script"`
	Present bool   `json:"present"`
	Command string `json:"command"`
}

// queueHealth is the backlog of one event queue.
type queueHealth struct {
	Pending int    `json:"pending"`
	Dropped uint64 `json:"dropped"`
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	SiteID     string            `json:"site_id,omitempty"`
	UptimeS    int64             `json:"uptime_s"`
	Probe      *probeHealth      `json:"probe,omitempty"`
	Components map[string]string `json:"components,omitempty"`

	// Events reports each notification queue. Dropped events do not
	// degrade the status because reads are unaffected.
	Events map[string]queueHealth `json:"events,omitempty"`
}

// handleHealth reports service status without running the probe.
// It answers 503 when the probe script is missing or a collaborator fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.version,
		SiteID:  s.siteID,
		UptimeS: int64(time.Since(s.started).Seconds()),
	}

	if s.probe != nil {
		info, err := os.Stat(s.probe.ScriptPath())
		resp.Probe = &probeHealth{
			Script:  s.probe.ScriptPath(),
			Present: err == nil && !info.IsDir(),
			Command: s.probe.CommandLine(),
		}
		if !resp.Probe.Present {
			resp.Status = "degraded"
		}
	}

	if len(s.components) > 0 {
		resp.Components = make(map[string]string, len(s.components))
		names := make([]string, 0, len(s.components))
		for name := range s.components {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.components[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	if len(s.queues) > 0 {
		resp.Events = make(map[string]queueHealth, len(s.queues))
		for name, q := range s.queues {
			resp.Events[name] = queueHealth{Pending: q.Pending(), Dropped: q.Dropped()}
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
