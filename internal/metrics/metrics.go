// Package metrics exposes Prometheus instruments for the queue engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelq"

var (
	registerOnce sync.Once

	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Item state transitions by source and target state",
	}, []string{"from", "to"})
	items = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "items",
		Help:      "Items currently held in each queue",
	}, []string{"queue"})
	taskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_runs_total",
		Help:      "Scheduler task runs by task and result",
	}, []string{"task", "result"})
	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Scheduler task run durations",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"task"})
	debridRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debrid_requests_total",
		Help:      "Debrid API requests by endpoint and result",
	}, []string{"endpoint", "result"})
	upgrades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upgrades_total",
		Help:      "Upgrade attempts by result",
	}, []string{"result"})
	paused = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_paused",
		Help:      "1 while queue processing is paused",
	})
)

// Register adds every instrument to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(transitions, items, taskRuns, taskDuration, debridRequests, upgrades, paused)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// IncTransition counts one committed state change.
func IncTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// SetItems sets the size of a queue.
func SetItems(queue string, n int) {
	items.WithLabelValues(queue).Set(float64(n))
}

func IncDebridRequest(endpoint, result string) {
	debridRequests.WithLabelValues(endpoint, result).Inc()
}

func IncUpgrade(result string) {
	upgrades.WithLabelValues(result).Inc()
}

// ObserveTask records one scheduler run.
func ObserveTask(task string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	taskRuns.WithLabelValues(task, result).Inc()
	taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// SetPaused flips the paused gauge.
func SetPaused(p bool) {
	if p {
		paused.Set(1)
		return
	}
	paused.Set(0)
}
