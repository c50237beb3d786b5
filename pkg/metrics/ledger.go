package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded on the submissions counter.
const (
	OutcomeAppended = "appended"
	OutcomeUpdated  = "updated"
	OutcomeRefused  = "refused"
	OutcomeFailed   = "failed"
)

// LedgerMetrics records ledger writes and the notifications that follow them.
type LedgerMetrics struct {
	submissions      *prometheus.CounterVec
	schemaExtensions *prometheus.CounterVec
	duplicates       *prometheus.CounterVec
	notifySent       *prometheus.CounterVec
	notifyFailed     *prometheus.CounterVec
	reconcile        *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"tenant", "outcome"})
	schemaExtensions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_schema_extensions_total",
		Help: "Item columns allocated in the ledger header.",
	}, []string{"tenant"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_duplicate_orders_total",
		Help: "Ledger rows found sharing a user and date with an earlier row.",
	}, []string{"tenant"})
	notifySent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_sent_total",
		Help: "Order notifications delivered to the channel.",
	}, []string{"tenant"})
	notifyFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_failed_total",
		Help: "Order notifications the channel rejected.",
	}, []string{"tenant"})
	reconcile := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_reconcile_duration_seconds",
		Help:    "Time spent from ledger read to row write.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tenant"})
	reg.MustRegister(submissions, schemaExtensions, duplicates, notifySent, notifyFailed, reconcile)
	return &LedgerMetrics{
		submissions:      submissions,
		schemaExtensions: schemaExtensions,
		duplicates:       duplicates,
		notifySent:       notifySent,
		notifyFailed:     notifyFailed,
		reconcile:        reconcile,
	}
}

// IncSubmission counts one submission for tenant with the given outcome.
func (m *LedgerMetrics) IncSubmission(tenant, outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(tenant), normalizeLabel(outcome)).Inc()
}

// AddSchemaExtensions counts newly allocated item columns.
func (m *LedgerMetrics) AddSchemaExtensions(tenant string, n int) {
	if m == nil || m.schemaExtensions == nil || n <= 0 {
		return
	}
	m.schemaExtensions.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}

func (m *LedgerMetrics) AddDuplicates(tenant string, n int) {
	if m == nil || m.duplicates == nil || n <= 0 {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}

func (m *LedgerMetrics) IncNotificationSent(tenant string) {
	if m == nil || m.notifySent == nil {
		return
	}
	m.notifySent.WithLabelValues(normalizeLabel(tenant)).Inc()
}

func (m *LedgerMetrics) IncNotificationFailed(tenant string) {
	if m == nil || m.notifyFailed == nil {
		return
	}
	m.notifyFailed.WithLabelValues(normalizeLabel(tenant)).Inc()
}

// ObserveReconcile records how long a submission held the ledger.
func (m *LedgerMetrics) ObserveReconcile(tenant string, duration time.Duration) {
	if m == nil || m.reconcile == nil {
		return
	}
	m.reconcile.WithLabelValues(normalizeLabel(tenant)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
