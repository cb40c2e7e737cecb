package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the raid detector and its
// action pipeline.
type Metrics struct {
	MessagesObserved prometheus.Counter
	MessagesExempt   prometheus.Counter
	Verdicts         *prometheus.CounterVec
	StepFailures     *prometheus.CounterVec
	Bans             prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		MessagesObserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "raidguard_messages_observed_total",
			Help: "Messages that reached the raid detector",
		}),
		MessagesExempt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "raidguard_messages_exempt_total",
			Help: "Messages skipped by the trust gate",
		}),
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "raidguard_verdicts_total",
			Help: "Raid verdicts by reason",
		}, []string{"reason"}),
		StepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "raidguard_pipeline_step_failures_total",
			Help: "Action pipeline steps that failed and were skipped",
		}, []string{"step"}),
		Bans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "raidguard_bans_total",
			Help: "Members banned by the action pipeline",
		}),
	}
}
