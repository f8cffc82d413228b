package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_tasks_scheduled_total",
		Help: "Tasks accepted for delayed execution.",
	})
	tasksDone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_tasks_done_total",
		Help: "Tasks whose handler returned without error.",
	})
	tasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_tasks_failed_total",
		Help: "Tasks whose handler returned an error or panicked.",
	})
	tasksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanchat_tasks_dropped_total",
		Help: "Due tasks dropped because the queue was full.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tanchat_task_queue_depth",
		Help: "Due tasks waiting for a worker.",
	})
)
