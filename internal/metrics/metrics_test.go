package metrics

import (
	"testing"

	"solverd/pkg/types"
)

func TestSummaryEmpty(t *testing.T) {
	a := NewAggregator()
	s := a.Summary()
	if s.Count != 0 || s.MeanThroughput != 0 || s.SuccessRate != 0 {
		t.Fatalf("empty aggregator must give zero summary, got %+v", s)
	}
}

func TestSummaryComputedOnDemand(t *testing.T) {
	a := NewAggregator()
	a.Record(types.PerformanceSample{TokensPerSecond: 100, LatencyMs: 50, Success: true, Path: types.PathNative})
	a.Record(types.PerformanceSample{TokensPerSecond: 200, LatencyMs: 80, Success: true, Path: types.PathNative})
	a.Record(types.PerformanceSample{TokensPerSecond: 0, LatencyMs: 10, Success: false, Path: types.PathHeuristic})

	s := a.Summary()
	if s.Count != 3 {
		t.Fatalf("expected 3 samples, got %d", s.Count)
	}
	if s.MeanThroughput != 150 {
		t.Fatalf("expected mean throughput 150 over nonzero samples, got %v", s.MeanThroughput)
	}
	if s.SuccessRate < 0.66 || s.SuccessRate > 0.67 {
		t.Fatalf("expected success rate 2/3, got %v", s.SuccessRate)
	}

	// A later sample must be reflected immediately: nothing is cached.
	a.Record(types.PerformanceSample{TokensPerSecond: 50, LatencyMs: 20, Success: true, Path: types.PathHeuristic})
	if got := a.Summary().Count; got != 4 {
		t.Fatalf("expected 4 samples after record, got %d", got)
	}
}
