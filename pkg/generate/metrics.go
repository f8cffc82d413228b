package generate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsDone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_generations_completed_total",
		Help: "Generations that streamed to completion.",
	})
	generationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_generations_failed_total",
		Help: "Generations resolved to the failed state by a provider error.",
	})
)
