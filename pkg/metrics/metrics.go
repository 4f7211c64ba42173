// Package metrics defines the Prometheus collectors exported by the licensing
// server. A nil *Metrics is valid and records nothing, so components can be
// built without a registry in tests and CLI commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licensing"

type Metrics struct {
	registry *prometheus.Registry

	licensesIssued   *prometheus.CounterVec
	licensesRenewed  *prometheus.CounterVec
	licensesRevoked  *prometheus.CounterVec
	validations      *prometheus.CounterVec
	sweepTransitions prometheus.Counter
	alerts           *prometheus.CounterVec
	keyRotations     *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		licensesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_issued_total",
			Help:      "Licenses issued, by license type.",
		}, []string{"license_type"}),
		licensesRenewed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_renewed_total",
			Help:      "Licenses renewed or reactivated, by license type.",
		}, []string{"license_type"}),
		licensesRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_revoked_total",
			Help:      "Licenses revoked, by license type.",
		}, []string{"license_type"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validations_total",
			Help:      "Token validations, by result code. Successful validations use code \"ok\".",
		}, []string{"code"}),
		sweepTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_transitions_total",
			Help:      "Licenses moved to Expired by the expiration sweep.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_alerts_total",
			Help:      "Audit alert dispatches, by outcome.",
		}, []string{"outcome"}),
		keyRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_activations_total",
			Help:      "Signing key activations, by algorithm.",
		}, []string{"algorithm"}),
	}
	reg.MustRegister(
		m.licensesIssued,
		m.licensesRenewed,
		m.licensesRevoked,
		m.validations,
		m.sweepTransitions,
		m.alerts,
		m.keyRotations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) LicenseIssued(licenseType string) {
	if m == nil {
		return
	}
	m.licensesIssued.WithLabelValues(licenseType).Inc()
}

func (m *Metrics) LicenseRenewed(licenseType string) {
	if m == nil {
		return
	}
	m.licensesRenewed.WithLabelValues(licenseType).Inc()
}

func (m *Metrics) LicenseRevoked(licenseType string) {
	if m == nil {
		return
	}
	m.licensesRevoked.WithLabelValues(licenseType).Inc()
}

func (m *Metrics) TokenValidated(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.validations.WithLabelValues(code).Inc()
}

func (m *Metrics) LicensesExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepTransitions.Add(float64(n))
}

func (m *Metrics) AlertDispatched(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) KeyActivated(algorithm string) {
	if m == nil {
		return
	}
	m.keyRotations.WithLabelValues(algorithm).Inc()
}
