package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bursary_scores_total",
		Help: "Scored applications by decision.",
	}, []string{"decision"})

	scoreRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bursary_score_rejections_total",
		Help: "Requests refused before scoring, by reason.",
	}, []string{"reason"})

	ruleSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bursary_rule_skips_total",
		Help: "Bonus rules skipped because they failed to parse or evaluate.",
	})

	scoreIndex = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bursary_score_index",
		Help:    "Distribution of the rounded score index.",
		Buckets: prometheus.LinearBuckets(0, 10, 13),
	})
)
