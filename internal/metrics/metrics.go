// Package metrics aggregates per-solve telemetry. Samples are append-only and
// summarized on demand; the summary is never cached, so it cannot go stale.
// Every sample is also mirrored into Prometheus collectors for /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"solverd/pkg/types"
)

var (
	solvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solverd",
			Subsystem: "solve",
			Name:      "attempts_total",
			Help:      "Completed solve attempts by execution path and outcome",
		},
		[]string{"path", "outcome"},
	)

	solveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solverd",
			Subsystem: "solve",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of completed solves",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	solveThroughput = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solverd",
			Subsystem: "solve",
			Name:      "tokens_per_second",
			Help:      "Generation throughput of completed solves",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 400, 800},
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(solvesTotal, solveDuration, solveThroughput)
}

// Aggregator retains every recorded sample. No sample is dropped or
// overwritten; callers reference only the aggregate, never a sample identity.
type Aggregator struct {
	mu      sync.Mutex
	samples []types.PerformanceSample
}

func NewAggregator() *Aggregator { return &Aggregator{} }

// Record appends one completed attempt's sample.
func (a *Aggregator) Record(s types.PerformanceSample) {
	a.mu.Lock()
	a.samples = append(a.samples, s)
	a.mu.Unlock()

	outcome := "success"
	if !s.Success {
		outcome = "error"
	}
	solvesTotal.WithLabelValues(string(s.Path), outcome).Inc()
	solveDuration.WithLabelValues(string(s.Path)).Observe(time.Duration(s.LatencyMs * int64(time.Millisecond)).Seconds())
	if s.TokensPerSecond > 0 {
		solveThroughput.WithLabelValues(string(s.Path)).Observe(s.TokensPerSecond)
	}
}

// Summary computes the rolling aggregate over all samples, on demand.
func (a *Aggregator) Summary() types.MetricsSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := types.MetricsSummary{Count: len(a.samples)}
	if out.Count == 0 {
		return out
	}
	var tpsSum float64
	var tpsN, ok int
	for _, s := range a.samples {
		if s.TokensPerSecond > 0 {
			tpsSum += s.TokensPerSecond
			tpsN++
		}
		if s.Success {
			ok++
		}
	}
	if tpsN > 0 {
		out.MeanThroughput = tpsSum / float64(tpsN)
	}
	out.SuccessRate = float64(ok) / float64(out.Count)
	return out
}
