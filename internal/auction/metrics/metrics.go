package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for bidding, lifecycle passes and
// notification delivery. All methods are safe on a nil receiver.
type Metrics struct {
	BidsAccepted     prometheus.Counter
	BidsRejected     *prometheus.CounterVec
	ConflictRetries  prometheus.Counter
	AdmissionLatency prometheus.Histogram

	// Pass outcomes by pass ("scheduler", "payment_sweep") and outcome
	PassOutcomes       *prometheus.CounterVec
	PassEntityFailures *prometheus.CounterVec
	PassDuration       *prometheus.HistogramVec

	NotificationsDelivered prometheus.Counter
	NotificationFailures   prometheus.Counter
	NotificationsAbandoned prometheus.Counter
	NotifierBreakerState   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auctioneer_bids_accepted_total",
			Help: "Total bids admitted",
		}),
		BidsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auctioneer_bids_rejected_total",
			Help: "Total bids rejected by reason code",
		}, []string{"code"}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auctioneer_bid_conflict_retries_total",
			Help: "Bid admissions retried after a concurrent write",
		}),
		AdmissionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "auctioneer_bid_admission_duration_seconds",
			Help:    "Duration of bid admission including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PassOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auctioneer_pass_outcomes_total",
			Help: "Entities transitioned by background passes",
		}, []string{"pass", "outcome"}),
		PassEntityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auctioneer_pass_entity_failures_total",
			Help: "Entities skipped by background passes after an error",
		}, []string{"pass"}),
		PassDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auctioneer_pass_duration_seconds",
			Help:    "Duration of a background pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"pass"}),
		NotificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auctioneer_notifications_delivered_total",
			Help: "Outbox entries delivered",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auctioneer_notification_failures_total",
			Help: "Failed outbox delivery attempts",
		}),
		NotificationsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auctioneer_notifications_abandoned_total",
			Help: "Outbox entries given up on after the maximum number of attempts",
		}),
		NotifierBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "auctioneer_notifier_circuit_breaker_state",
			Help: "Notifier circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncrementBidAccepted() {
	if m != nil {
		m.BidsAccepted.Inc()
	}
}

func (m *Metrics) IncrementBidRejected(code string) {
	if m != nil {
		m.BidsRejected.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncrementConflictRetry() {
	if m != nil {
		m.ConflictRetries.Inc()
	}
}

func (m *Metrics) ObserveAdmissionLatency(d time.Duration) {
	if m != nil {
		m.AdmissionLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPassOutcome(pass, outcome string) {
	if m != nil {
		m.PassOutcomes.WithLabelValues(pass, outcome).Inc()
	}
}

func (m *Metrics) IncrementPassEntityFailure(pass string) {
	if m != nil {
		m.PassEntityFailures.WithLabelValues(pass).Inc()
	}
}

func (m *Metrics) ObservePassDuration(pass string, d time.Duration) {
	if m != nil {
		m.PassDuration.WithLabelValues(pass).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementNotificationDelivered() {
	if m != nil {
		m.NotificationsDelivered.Inc()
	}
}

func (m *Metrics) IncrementNotificationFailure() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

func (m *Metrics) IncrementNotificationAbandoned() {
	if m != nil {
		m.NotificationsAbandoned.Inc()
	}
}

func (m *Metrics) SetNotifierBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.NotifierBreakerState.Set(1)
	} else {
		m.NotifierBreakerState.Set(0)
	}
}
