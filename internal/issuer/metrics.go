package issuer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the issuer service.
type Metrics struct {
	LicensesIssued   *prometheus.CounterVec
	IssueFailures    *prometheus.CounterVec
	AuthFailures     prometheus.Counter
	ValidateRequests *prometheus.CounterVec
}

// NewMetrics creates and registers the issuer metrics on the given
// registry. Pass prometheus.NewRegistry() in tests to avoid global
// registration collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LicensesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpguard_licenses_issued_total",
			Help: "Licenses minted, by tier.",
		}, []string{"tier"}),
		IssueFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpguard_license_issue_failures_total",
			Help: "Failed issuance requests, by reason.",
		}, []string{"reason"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpguard_license_auth_failures_total",
			Help: "Requests rejected by the shared-secret gate.",
		}),
		ValidateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpguard_license_validate_requests_total",
			Help: "Online revalidation requests, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.LicensesIssued, m.IssueFailures, m.AuthFailures, m.ValidateRequests)
	return m
}
