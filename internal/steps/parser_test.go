package steps

import (
	"testing"

	"solverd/pkg/types"
)

func collect(p *Parser, chunks ...string) []types.ReasoningStep {
	var out []types.ReasoningStep
	for _, c := range chunks {
		out = append(out, p.Append(c)...)
	}
	return out
}

func TestTwoStepsWithFinalAnswer(t *testing.T) {
	p := NewParser()
	got := collect(p,
		"Step 1: Setup\nDo X.\n",
		"Step 2: Solve\nDo Y.\nFinal Answer: 5",
	)
	got = append(got, p.Flush(true)...)
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d: %+v", len(got), got)
	}
	if got[0].Index != 1 || got[0].Title != "Setup" || got[0].Body != "Do X." || !got[0].Complete {
		t.Fatalf("bad step 1: %+v", got[0])
	}
	if got[1].Index != 2 || got[1].Title != "Solve" || got[1].Body != "Do Y." || !got[1].Complete {
		t.Fatalf("bad step 2: %+v", got[1])
	}
	if r := p.Result(); r != "5" {
		t.Fatalf("expected result %q, got %q", "5", r)
	}
}

func TestStepHeldBackUntilTerminatorSeen(t *testing.T) {
	p := NewParser()
	if got := p.Append("Step 1: Begin\npartial body"); len(got) != 0 {
		t.Fatalf("unterminated step must be held back, got %+v", got)
	}
	got := p.Append(" grows\nStep 2: Next\n")
	if len(got) != 1 {
		t.Fatalf("expected step 1 confirmed by step 2 marker, got %+v", got)
	}
	if got[0].Body != "partial body grows" {
		t.Fatalf("body must include late-arriving text, got %q", got[0].Body)
	}
}

func TestMarkerSplitAcrossChunks(t *testing.T) {
	p := NewParser()
	var got []types.ReasoningStep
	for _, c := range []string{"Ste", "p 1", ": Iso", "late\nbody\nSte", "p 2: Check\nmore\n"} {
		got = append(got, p.Append(c)...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 confirmed step, got %d: %+v", len(got), got)
	}
	if got[0].Title != "Isolate" || got[0].Body != "body" {
		t.Fatalf("split marker parsed wrong: %+v", got[0])
	}
	got = append(got, p.Flush(true)...)
	if len(got) != 2 || got[1].Title != "Check" || got[1].Body != "more" {
		t.Fatalf("flush missed trailing step: %+v", got)
	}
}

func TestIndicesAreSequentialRegardlessOfLiterals(t *testing.T) {
	p := NewParser()
	got := collect(p, "Step 3: A\nx\nStep 9: B\ny\nStep 1: C\nz\n")
	got = append(got, p.Flush(true)...)
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got))
	}
	for i, s := range got {
		if s.Index != i+1 {
			t.Fatalf("expected index %d, got %d", i+1, s.Index)
		}
	}
}

func TestNoMarkersWholeBufferIsResult(t *testing.T) {
	p := NewParser()
	if got := collect(p, "The answer ", "is 42.\n"); len(got) != 0 {
		t.Fatalf("expected zero steps, got %+v", got)
	}
	if got := p.Flush(true); len(got) != 0 {
		t.Fatalf("flush must not invent steps, got %+v", got)
	}
	if r := p.Result(); r != "The answer is 42." {
		t.Fatalf("expected whole buffer as result, got %q", r)
	}
}

func TestMarkersWithoutFinalAnswerUseLastLine(t *testing.T) {
	p := NewParser()
	collect(p, "Step 1: Work\nsome work\nx = 2\n")
	p.Flush(true)
	if r := p.Result(); r != "x = 2" {
		t.Fatalf("expected last non-empty line, got %q", r)
	}
}

func TestFlushIncompleteMarksStep(t *testing.T) {
	p := NewParser()
	p.Append("Step 1: Start\nhalf a bo")
	got := p.Flush(false)
	if len(got) != 1 || got[0].Complete {
		t.Fatalf("expected one incomplete step, got %+v", got)
	}
	if got[0].Body != "half a bo" {
		t.Fatalf("unexpected body %q", got[0].Body)
	}
}

func TestEmptyStreamYieldsNothing(t *testing.T) {
	p := NewParser()
	if got := p.Flush(true); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if r := p.Result(); r != "" {
		t.Fatalf("expected empty result, got %q", r)
	}
}

func TestStepAfterFinalAnswerIgnored(t *testing.T) {
	p := NewParser()
	got := collect(p, "Step 1: Only\nbody\nFinal Answer: 7\nStep 2: Stray\nnoise\n")
	got = append(got, p.Flush(true)...)
	if len(got) != 1 {
		t.Fatalf("markers after the final answer must not become steps: %+v", got)
	}
	if r := p.Result(); r != "7" {
		t.Fatalf("expected answer text, got %q", r)
	}
}

func TestResultStopsAtEndOfAnswerLine(t *testing.T) {
	p := NewParser()
	p.Append("Step 1: Work\nbody\nFinal Answer: 42\n\nHope that helps!\n")
	p.Flush(true)
	if r := p.Result(); r != "42" {
		t.Fatalf("trailing text leaked into result: %q", r)
	}
}

func TestSingleTokenChunksEmitInOrder(t *testing.T) {
	text := "Step 1: A\none\nStep 2: B\ntwo\nStep 3: C\nthree\nFinal Answer: done\n"
	p := NewParser()
	var got []types.ReasoningStep
	for _, r := range text {
		got = append(got, p.Append(string(r))...)
	}
	got = append(got, p.Flush(true)...)
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(got), got)
	}
	for i, s := range got {
		if s.Index != i+1 {
			t.Fatalf("out of order at %d: %+v", i, s)
		}
	}
	if r := p.Result(); r != "done" {
		t.Fatalf("expected %q, got %q", "done", r)
	}
}
