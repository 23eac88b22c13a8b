package middleware

import (
	"net/http"
	"sync/atomic"
)

// Metrics holds process-wide request counters.
type Metrics struct {
	Requests     atomic.Int64
	ClientErrors atomic.Int64
	ServerErrors atomic.Int64
	InFlight     atomic.Int64
}

type MetricsSnapshot struct {
	Requests     int64 `json:"request_count"`
	ClientErrors int64 `json:"client_error_count"`
	ServerErrors int64 `json:"server_error_count"`
	InFlight     int64 `json:"in_flight"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:     m.Requests.Load(),
		ClientErrors: m.ClientErrors.Load(),
		ServerErrors: m.ServerErrors.Load(),
		InFlight:     m.InFlight.Load(),
	}
}

// Middleware counts requests and their 4xx/5xx outcomes. Long-lived editor
// connections stay in InFlight until they close.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Requests.Add(1)
		m.InFlight.Add(1)
		defer m.InFlight.Add(-1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode >= 500:
			m.ServerErrors.Add(1)
		case rw.statusCode >= 400:
			m.ClientErrors.Add(1)
		}
	})
}
