// Package metric provides Prometheus metrics for Gedis.
//
// A Registry owns a private prometheus.Registry so tests can create as
// many as they like. All observation methods are safe on a nil *Registry,
// which lets components run without metrics.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

const namespace = "gedis"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Actor call metrics
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec

	// RESP server metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	CommandsRejected  *prometheus.CounterVec
	AuthTotal         *prometheus.CounterVec

	// Registry metrics
	ReloadsTotal *prometheus.CounterVec

	// Gateway metrics
	HTTPRequests *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with Go and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "calls_total",
			Help:      "Actor method calls by result.",
		}, []string{"actor", "method", "result"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "call_duration_seconds",
			Help:      "Actor method call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"actor"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "connections_active",
			Help:      "Open RESP connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "connections_total",
			Help:      "Accepted RESP connections.",
		}),
		CommandsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "commands_rejected_total",
			Help:      "Commands rejected before dispatch, by reason.",
		}, []string{"reason"}),
		AuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "auth_total",
			Help:      "AUTH handshakes by result.",
		}, []string{"result"}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "reloads_total",
			Help:      "Hot reloads of actor sources by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway requests by status code.",
		}, []string{"code"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.CallsTotal,
		r.CallDuration,
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.CommandsRejected,
		r.AuthTotal,
		r.ReloadsTotal,
		r.HTTPRequests,
	)
	return r
}

// Prometheus returns the underlying prometheus registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.reg.MustRegister(cs...)
}

// Handler returns the /metrics handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveCall records one actor call. An empty kind means success.
func (r *Registry) ObserveCall(actor, method string, kind domain.ErrorKind, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	r.CallsTotal.WithLabelValues(actor, method, result).Inc()
	r.CallDuration.WithLabelValues(actor).Observe(d.Seconds())
}

// ConnOpened records an accepted connection.
func (r *Registry) ConnOpened() {
	if r == nil {
		return
	}
	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
}

// ConnClosed records a closed connection.
func (r *Registry) ConnClosed() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
}

// CommandRejected records a command refused before dispatch.
func (r *Registry) CommandRejected(reason string) {
	if r == nil {
		return
	}
	r.CommandsRejected.WithLabelValues(reason).Inc()
}

// ObserveAuth records the outcome of an AUTH command.
func (r *Registry) ObserveAuth(err error) {
	if r == nil {
		return
	}
	r.AuthTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveReload records the outcome of a hot reload.
func (r *Registry) ObserveReload(err error) {
	if r == nil {
		return
	}
	r.ReloadsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveHTTP records a gateway response.
func (r *Registry) ObserveHTTP(status int) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.KindOf(err))
}
