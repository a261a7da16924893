package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BidMetrics tracks bid admission outcomes.
type BidMetrics struct {
	accepted  prometheus.Counter
	rejected  *prometheus.CounterVec
	conflicts prometheus.Counter
}

// NewBidMetrics registers the bid admission metrics on the provided registerer.
func NewBidMetrics(reg prometheus.Registerer) *BidMetrics {
	if reg == nil {
		return &BidMetrics{}
	}
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Bids admitted to the ledger.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Bids rejected during validation, labelled by reason.",
	}, []string{"reason"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_admission_conflicts_total",
		Help: "Guarded price updates that lost the race and were retried.",
	})
	reg.MustRegister(accepted, rejected, conflicts)
	return &BidMetrics{
		accepted:  accepted,
		rejected:  rejected,
		conflicts: conflicts,
	}
}

// IncAccepted increments the accepted bids counter.
func (b *BidMetrics) IncAccepted() {
	if b == nil || b.accepted == nil {
		return
	}
	b.accepted.Inc()
}

// IncRejected increments the rejected counter for the given reason.
func (b *BidMetrics) IncRejected(reason string) {
	if b == nil || b.rejected == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	b.rejected.WithLabelValues(reason).Inc()
}

// IncConflict increments the lost-race retry counter.
func (b *BidMetrics) IncConflict() {
	if b == nil || b.conflicts == nil {
		return
	}
	b.conflicts.Inc()
}
