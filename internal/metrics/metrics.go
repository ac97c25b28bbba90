// Package metrics exposes Prometheus collectors for the authorization flow,
// the token endpoint and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authz"

// Metrics owns a private registry so that several servers (or tests) can
// coexist in one process.
type Metrics struct {
	registry       *prometheus.Registry
	flowSteps      *prometheus.CounterVec
	tokensIssued   *prometheus.CounterVec
	tokensRejected *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_steps_total",
			Help:      "Browser flow outcomes by endpoint.",
		}, []string{"endpoint", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Bearer tokens issued by grant type.",
		}, []string{"grant_type"}),
		tokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_rejected_total",
			Help:      "Rejected token requests by grant type and error code.",
		}, []string{"grant_type", "error"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	m.registry.MustRegister(
		m.flowSteps,
		m.tokensIssued,
		m.tokensRejected,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) FlowStep(endpoint, outcome string) {
	m.flowSteps.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) TokenIssued(grant oauthmodel.GrantType) {
	m.tokensIssued.WithLabelValues(grantLabel(grant)).Inc()
}

func (m *Metrics) TokenRejected(grant oauthmodel.GrantType, code oauthmodel.ErrorCode) {
	m.tokensRejected.WithLabelValues(grantLabel(grant), string(code)).Inc()
}

// ObserveRequest records one HTTP request. route should be the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Grant types come from client input; anything unknown shares one label.
func grantLabel(grant oauthmodel.GrantType) string {
	switch grant {
	case oauthmodel.AuthorizationCodeGrant, oauthmodel.ClientCredentialsGrant:
		return string(grant)
	case "":
		return "none"
	default:
		return "other"
	}
}
