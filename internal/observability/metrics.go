package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibyl_questions_total",
			Help: "Questions processed, labelled by routed intent.",
		},
		[]string{"intent"},
	)

	sqlBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibyl_sql_blocked_total",
			Help: "Candidate statements rejected before execution.",
		},
		[]string{"reason"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sibyl_query_duration_seconds",
			Help:    "Wall time of validated statements against the data store.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(questionsTotal, sqlBlockedTotal, queryDurationSeconds)
}

func ObserveQuestion(intent string) {
	questionsTotal.WithLabelValues(intent).Inc()
}

// ObserveBlocked records a rejected statement; reason is "validation" or
// "injection".
func ObserveBlocked(reason string) {
	sqlBlockedTotal.WithLabelValues(reason).Inc()
}

func ObserveQueryDuration(d time.Duration) {
	queryDurationSeconds.Observe(d.Seconds())
}
