package repair

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepActions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tanchat_repair_actions_total",
	Help: "Incomplete messages acted on by repair sweeps.",
})
