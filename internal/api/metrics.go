package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// metrics 以原子计数器记录 HTTP 层的基础指标。
type metrics struct {
	requests    atomic.Int64
	inFlight    atomic.Int64
	errors      atomic.Int64
	startedUnix int64
}

// MetricsSnapshot 是指标接口返回的快照。
type MetricsSnapshot struct {
	Requests      int64 `json:"requests"`
	InFlight      int64 `json:"in_flight"`
	Errors        int64 `json:"errors"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func newMetrics() *metrics {
	return &metrics{startedUnix: time.Now().Unix()}
}

func (m *metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:      m.requests.Load(),
		InFlight:      m.inFlight.Load(),
		Errors:        m.errors.Load(),
		UptimeSeconds: time.Now().Unix() - m.startedUnix,
	}
}

// instrument 包装处理器以统计请求量与错误量。
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status >= http.StatusInternalServerError {
			m.errors.Add(1)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
