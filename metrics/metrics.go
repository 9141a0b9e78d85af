package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeUnresolved = "unresolved"
)

var (
	// Dispatches 按attack和结果统计的执行次数
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chaosmonkey",
			Name:      "dispatches_total",
			Help:      "Attack dispatches by attack ref and outcome",
		},
		[]string{"attack", "outcome"},
	)

	// DispatchDuration attack执行耗时
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chaosmonkey",
			Name:      "dispatch_duration_seconds",
			Help:      "Attack run time in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"attack"},
	)

	// SkippedJobs 无法反序列化而跳过的Job
	SkippedJobs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chaosmonkey",
			Name:      "skipped_jobs_total",
			Help:      "Stored jobs skipped because their state could not be restored",
		},
	)

	PlansCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chaosmonkey",
			Name:      "plans_created_total",
			Help:      "Plans created",
		},
	)
)
