// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namePrefix = "summit_"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	VersionsPublished prometheus.Counter
	PublishFailures   prometheus.Counter
	Rollbacks         *prometheus.CounterVec
	PushMessages      *prometheus.CounterVec
	ArtifactOps       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is non-nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "login_attempts_total",
				Help: "Login attempts by result (success, invalid, rate_limited)",
			},
			[]string{"result"},
		),
		VersionsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: namePrefix + "versions_published_total",
				Help: "Total number of versions published",
			},
		),
		PublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: namePrefix + "publish_failures_total",
				Help: "Total number of publish attempts that were rolled back",
			},
		),
		Rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "rollbacks_total",
				Help: "Rollbacks to a previous version by result",
			},
			[]string{"result"},
		),
		PushMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "push_messages_total",
				Help: "Push messages by delivery status",
			},
			[]string{"status"},
		),
		ArtifactOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "artifact_ops_total",
				Help: "Artifact storage operations by operation and result",
			},
			[]string{"op", "result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoginAttempts,
			m.VersionsPublished,
			m.PublishFailures,
			m.Rollbacks,
			m.PushMessages,
			m.ArtifactOps,
		)
	}
	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (m *Metrics) LoginAttempt(res string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(res).Inc()
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.VersionsPublished.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Metrics) RolledBack(ok bool) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(result(ok)).Inc()
}

// PushDelivered records the outcome of one dispatch
func (m *Metrics) PushDelivered(successful, failed int) {
	if m == nil {
		return
	}
	m.PushMessages.WithLabelValues("ok").Add(float64(successful))
	m.PushMessages.WithLabelValues("error").Add(float64(failed))
}

func (m *Metrics) ArtifactOp(op string, ok bool) {
	if m == nil {
		return
	}
	m.ArtifactOps.WithLabelValues(op, result(ok)).Inc()
}
