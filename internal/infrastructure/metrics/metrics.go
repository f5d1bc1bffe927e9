// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"errors"

	"csx-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger operations by kind (transfer, purchase, incentive, listing_create, listing_cancel) and outcome.",
}, []string{"operation", "outcome"})

var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "ledger",
	Name:      "credits_moved_total",
	Help:      "Credits moved between accounts, by transaction type.",
}, []string{"type"})

var LockContention = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "ledger",
	Name:      "lock_contention_total",
	Help:      "Operations rejected because per-account locks could not be acquired in time.",
})

var CertificatesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "certificates",
	Name:      "issued_total",
	Help:      "Certificate issuance attempts by outcome.",
}, []string{"outcome"})

var CertificateVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "certificates",
	Name:      "verifications_total",
	Help:      "Verification results by message (valid, not found, tampering detected, ...).",
}, []string{"result"})

var ScoringDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "csx",
	Subsystem: "scoring",
	Name:      "duration_seconds",
	Help:      "Time spent computing a carbon score, by source (ml, rules).",
	Buckets:   prometheus.DefBuckets,
}, []string{"source"})

// ObserveLedger counts one ledger operation and any lock contention it hit.
func ObserveLedger(operation string, err error) {
	LedgerOperations.WithLabelValues(operation, Outcome(err)).Inc()
	if err != nil && errors.Is(err, domain.ErrContention) {
		LockContention.Inc()
	}
}

// Outcome labels errors coarsely for counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var TenderApplications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "csx",
	Subsystem: "tenders",
	Name:      "applications_total",
	Help:      "Tender applications by outcome (accepted, not_eligible, duplicate, error).",
}, []string{"outcome"})
