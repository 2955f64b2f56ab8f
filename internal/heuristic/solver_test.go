package heuristic

import (
	"context"
	"strings"
	"testing"

	"solverd/pkg/types"
)

func TestLinearEquation(t *testing.T) {
	s := New()
	var steps []types.ReasoningStep
	res, err := s.Solve(context.Background(), "Solve 2x + 3 = 7", func(st types.ReasoningStep) {
		steps = append(steps, st)
	}, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Solution != "x = 2" {
		t.Fatalf("expected x = 2, got %q", res.Solution)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(steps), steps)
	}
	for i, st := range steps {
		if st.Index != i+1 || !st.Complete {
			t.Fatalf("bad step %d: %+v", i, st)
		}
	}
	if res.TokensPerSecond <= 0 {
		t.Fatalf("throughput must be positive, got %v", res.TokensPerSecond)
	}
}

func TestLinearWithSubtraction(t *testing.T) {
	s := New()
	res, err := s.Solve(context.Background(), "3y - 6 = 9", nil, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Solution != "y = 5" {
		t.Fatalf("expected y = 5, got %q", res.Solution)
	}
}

func TestArithmetic(t *testing.T) {
	s := New()
	res, err := s.Solve(context.Background(), "What is 6 * 7?", nil, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Solution != "42" {
		t.Fatalf("expected 42, got %q", res.Solution)
	}
}

func TestUnrecognizedProblemStillSucceeds(t *testing.T) {
	s := New()
	res, err := s.Solve(context.Background(), "prove the Riemann hypothesis", nil, nil)
	if err != nil {
		t.Fatalf("fallback must always succeed, got %v", err)
	}
	if res.Solution == "" {
		t.Fatal("expected a non-empty best-effort answer")
	}
}

func TestTokenStreamMirrorsStepGrammar(t *testing.T) {
	s := New()
	var b strings.Builder
	_, err := s.Solve(context.Background(), "Solve 2x + 3 = 7", nil, func(tok string) {
		b.WriteString(tok)
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "Step 1:") || !strings.Contains(out, "Final Answer: x = 2") {
		t.Fatalf("streamed text missing step grammar:\n%s", out)
	}
}
