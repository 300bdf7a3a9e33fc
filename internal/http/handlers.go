package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if s.limiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"status":         "ok",
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime())

	fmt.Fprintf(w, "# HELP security_suspicious_requests_total Requests flagged as probes\n")
	fmt.Fprintf(w, "# TYPE security_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "security_suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP security_blocked_requests_total Requests rejected by method\n")
	fmt.Fprintf(w, "# TYPE security_blocked_requests_total counter\n")
	fmt.Fprintf(w, "security_blocked_requests_total %d\n\n", securityMetrics.BlockedRequests)

	if s.limiter != nil {
		rl := s.limiter.GetMetrics()
		fmt.Fprintf(w, "# HELP rate_limit_hits_total Requests rejected by the rate limiter\n")
		fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
		fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rl.TotalHits)

		fmt.Fprintf(w, "# HELP rate_limit_active_clients Tracked client addresses\n")
		fmt.Fprintf(w, "# TYPE rate_limit_active_clients gauge\n")
		fmt.Fprintf(w, "rate_limit_active_clients %d\n", rl.ClientCount)
	}
}
