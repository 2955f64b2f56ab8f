// Package heuristic is the always-available fallback solver. It has no
// lifecycle state: pattern-match the problem, generate the reasoning steps
// directly, and report a solver result the orchestrator can normalize.
package heuristic

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"solverd/pkg/types"
)

var (
	// ax + b = c, ax - b = c, x + b = c, ax = c ...
	linearRe = regexp.MustCompile(`([+-]?\d*\.?\d*)\s*([a-zA-Z])\s*(?:([+-])\s*(\d+\.?\d*)\s*)?=\s*([+-]?\d+\.?\d*)`)
	// a op b arithmetic
	arithRe = regexp.MustCompile(`([-+]?\d+\.?\d*)\s*([-+*/×÷])\s*([-+]?\d+\.?\d*)`)
)

// Solver solves a small class of problems by pattern matching. Always
// succeeds: unrecognized problems yield a stepless best-effort answer.
type Solver struct{}

func New() *Solver { return &Solver{} }

// Solve generates steps and a solution for the problem. onStep receives each
// step in order; onToken, when non-nil, receives the composed output text in
// small chunks to mirror the streaming shape of the native path.
func (s *Solver) Solve(ctx context.Context, problem string, onStep func(types.ReasoningStep), onToken func(string)) (types.SolverResult, error) {
	start := time.Now()
	var steps []types.ReasoningStep
	var solution string

	if m := linearRe.FindStringSubmatch(problem); m != nil {
		steps, solution = solveLinear(m)
	} else if m := arithRe.FindStringSubmatch(problem); m != nil {
		steps, solution = solveArithmetic(m)
	} else {
		solution = strings.TrimSpace(problem)
		if solution == "" {
			solution = "no problem given"
		} else {
			solution = "unable to derive a structured solution for: " + solution
		}
	}

	tokens := 0
	emit := func(text string) {
		if onToken == nil {
			return
		}
		for _, w := range strings.SplitAfter(text, " ") {
			if w == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			onToken(w)
			tokens++
		}
	}
	for _, st := range steps {
		emit(fmt.Sprintf("Step %d: %s\n%s\n", st.Index, st.Title, st.Body))
		if onStep != nil {
			onStep(st)
		}
	}
	emit("Final Answer: " + solution + "\n")
	if tokens == 0 {
		tokens = len(strings.Fields(solution)) + 1
	}

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	return types.SolverResult{
		Solution:        solution,
		TokensPerSecond: float64(tokens) / elapsed.Seconds(),
		DurationMs:      elapsed.Milliseconds(),
	}, nil
}

// solveLinear handles a*v + b = c (b optional, sign captured separately).
func solveLinear(m []string) ([]types.ReasoningStep, string) {
	a := parseCoeff(m[1])
	v := m[2]
	sign := m[3]
	b := 0.0
	if m[4] != "" {
		b, _ = strconv.ParseFloat(m[4], 64)
		if sign == "-" {
			b = -b
		}
	}
	c, _ := strconv.ParseFloat(m[5], 64)

	eq := fmt.Sprintf("%s%s %s %s = %s", fnum(a), v, plusMinus(b), fnum(abs(b)), fnum(c))
	if b == 0 {
		eq = fmt.Sprintf("%s%s = %s", fnum(a), v, fnum(c))
	}
	rhs := c - b
	steps := []types.ReasoningStep{
		{Index: 1, Title: "Identify the equation", Body: eq, Complete: true},
		{Index: 2, Title: "Isolate the variable term", Body: fmt.Sprintf("%s%s = %s - %s = %s", fnum(a), v, fnum(c), fnum(b), fnum(rhs)), Complete: true},
	}
	if a == 0 {
		return steps, "undefined (zero coefficient)"
	}
	x := rhs / a
	steps = append(steps, types.ReasoningStep{
		Index: 3, Title: "Solve for " + v,
		Body:     fmt.Sprintf("%s = %s / %s = %s", v, fnum(rhs), fnum(a), fnum(x)),
		Complete: true,
	})
	return steps, fmt.Sprintf("%s = %s", v, fnum(x))
}

func solveArithmetic(m []string) ([]types.ReasoningStep, string) {
	a, _ := strconv.ParseFloat(m[1], 64)
	b, _ := strconv.ParseFloat(m[3], 64)
	op := m[2]
	var val float64
	switch op {
	case "+":
		val = a + b
	case "-":
		val = a - b
	case "*", "×":
		val = a * b
	default:
		if b == 0 {
			return []types.ReasoningStep{
				{Index: 1, Title: "Check the divisor", Body: "division by zero is undefined", Complete: true},
			}, "undefined"
		}
		val = a / b
	}
	body := fmt.Sprintf("%s %s %s = %s", fnum(a), op, fnum(b), fnum(val))
	return []types.ReasoningStep{
		{Index: 1, Title: "Evaluate the expression", Body: body, Complete: true},
	}, fnum(val)
}

func parseCoeff(s string) float64 {
	switch s {
	case "", "+":
		return 1
	case "-":
		return -1
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func fnum(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func plusMinus(b float64) string {
	if b < 0 {
		return "-"
	}
	return "+"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
