package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"solverd/pkg/types"
)

// SolveSync runs a solve without streaming and returns the full result.
func (o *Orchestrator) SolveSync(ctx context.Context, req types.SolveRequest) (types.GenerationResult, error) {
	return o.Solve(ctx, req.Problem, Options{Config: req.Config})
}

// SolveStream centralizes the streaming solve behavior: it runs the solve
// with token and step callbacks and writes NDJSON lines to w, flushing after
// each line. Line shapes: {"token":...}, {"step":{...}} and a final
// {"done":true,"result":{...}}.
func (o *Orchestrator) SolveStream(ctx context.Context, req types.SolveRequest, w io.Writer, flush func()) error {
	if strings.TrimSpace(req.Problem) == "" {
		return ErrInvalidRequest("problem is required")
	}
	var writeErr error
	emit := func(line []byte) {
		if writeErr != nil {
			return
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			writeErr = err
			return
		}
		if flush != nil {
			flush()
		}
	}
	opts := Options{
		Config: req.Config,
		OnToken: func(tok string) {
			emit(tokenLineJSON(tok))
		},
		OnStep: func(st types.ReasoningStep) {
			emit(stepLineJSON(st))
		},
	}
	res, err := o.Solve(ctx, req.Problem, opts)
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	end := struct {
		Done   bool                   `json:"done"`
		Result types.GenerationResult `json:"result"`
	}{Done: true, Result: res}
	jb, _ := json.Marshal(end)
	emit(jb)
	return writeErr
}

func tokenLineJSON(tok string) []byte {
	type tokenMsg struct {
		Token string `json:"token"`
	}
	b, _ := json.Marshal(tokenMsg{Token: tok})
	return b
}

func stepLineJSON(st types.ReasoningStep) []byte {
	type stepMsg struct {
		Step types.ReasoningStep `json:"step"`
	}
	b, _ := json.Marshal(stepMsg{Step: st})
	return b
}
