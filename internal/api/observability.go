package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-room labels beyond room id for
// the player-count gauge, and that label set is bounded by live room count).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "room_tick_duration_seconds",
		Help:    "Time spent advancing one room's world by one global tick",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	roomPlayerCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "room_player_count",
		Help: "Current number of bound players in a room",
	}, []string{"room"})

	kicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anticheat_kicks_total",
		Help: "Total anticheat/manual kicks, by reason",
	}, []string{"reason"})

	authCodesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "join_auth_codes_issued_total",
		Help: "Total one-time join auth codes issued",
	})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rooms_active",
		Help: "Currently live rooms",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active room WebSocket connections",
	})
)

// PromMetrics adapts the Prometheus collectors above to room.Metrics, so
// every room worker reports into the same bounded-cardinality vectors.
type PromMetrics struct{}

func (PromMetrics) RecordTick(d time.Duration)          { tickDuration.Observe(d.Seconds()) }
func (PromMetrics) SetPlayerCount(roomID string, n int) { roomPlayerCount.WithLabelValues(roomID).Set(float64(n)) }
func (PromMetrics) SetRoomsActive(n int)                { roomsActive.Set(float64(n)) }
func (PromMetrics) IncKick(reason string)               { kicksTotal.WithLabelValues(reason).Inc() }
func (PromMetrics) IncAuthCodeIssued()                  { authCodesIssuedTotal.Inc() }

// ObservabilityConfig configures the loopback-only debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // MUST be loopback in production; see StartDebugServer
}

// DefaultObservabilityConfig returns safe defaults: enabled, bound to
// localhost only.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server: pprof,
// /metrics, and /debug/healthz. It MUST bind to localhost unless the
// ALLOW_DEBUG_EXTERNAL escape hatch is set.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 debug server disabled")
		return nil
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:6060"
	}
	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️  debug server forced to localhost for security")
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	go func() {
		log.Printf("📊 debug server on %s (pprof, /metrics, /debug/healthz)", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("⚠️  debug server error: %v", err)
		}
	}()

	return nil
}

func isLoopback(addr string) bool {
	return strings.HasPrefix(addr, "127.0.0.1") || strings.HasPrefix(addr, "localhost")
}

// RecordConnectionRejected increments the rejection counter. reason must be
// one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// SetRoomsActive reports the current number of live rooms.
func SetRoomsActive(n int) { roomsActive.Set(float64(n)) }

// UpdateWSConnections updates the active room-socket gauge.
func UpdateWSConnections(n int) { wsConnectionsActive.Set(float64(n)) }
