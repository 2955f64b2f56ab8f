package orchestrator

import (
	"context"
	"strings"
	"time"

	"solverd/internal/native"
	"solverd/internal/session"
	"solverd/internal/steps"
	"solverd/pkg/types"
)

// Solve answers the problem. The native on-device path is attempted whenever
// the capability is present and the model is loaded or loadable; any failure
// there falls through to the heuristic solver. Callers cannot distinguish the
// paths from the result shape; only WasNativeExecution records it for
// telemetry. Failure is observed only when both paths fail, in which case the
// original primary error is surfaced.
func (o *Orchestrator) Solve(ctx context.Context, problem string, opts Options) (types.GenerationResult, error) {
	cfg := types.DefaultGenerationConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	var primaryErr error
	if o.lc.NativeSupported() {
		res, err := o.solveNative(ctx, problem, cfg, opts)
		if err == nil {
			o.record(res, types.PathNative)
			return res, nil
		}
		// Caller cancellation is not a primary failure to mask with fallback.
		if ctx.Err() != nil {
			return types.GenerationResult{FinishReason: types.FinishError}, ctx.Err()
		}
		primaryErr = err
		o.record(types.GenerationResult{FinishReason: types.FinishError}, types.PathNative)
		o.diag.Err("primary", err)
		o.logger.Warn().Err(err).Msg("native path failed, falling back")
	} else {
		primaryErr = native.ErrCapabilityAbsent()
	}

	res, err := o.solveFallback(ctx, problem, opts)
	if err != nil {
		o.diag.Err("fallback", err)
		o.record(types.GenerationResult{FinishReason: types.FinishError}, types.PathHeuristic)
		return types.GenerationResult{FinishReason: types.FinishError}, primaryErr
	}
	o.record(res, types.PathHeuristic)
	return res, nil
}

// solveNative runs one generation on the on-device runtime, streaming when an
// OnToken callback was supplied.
func (o *Orchestrator) solveNative(ctx context.Context, problem string, cfg types.GenerationConfig, opts Options) (types.GenerationResult, error) {
	if !o.lc.IsLoaded() {
		if err := o.lc.Load(ctx, o.modelPath); err != nil {
			return types.GenerationResult{}, err
		}
	}
	prompt := buildPrompt(problem)
	if opts.OnToken != nil {
		return o.streamNative(ctx, prompt, cfg, opts)
	}
	return o.blockingNative(ctx, prompt, cfg, opts)
}

type streamOutcome struct{ err error }

func (o *Orchestrator) streamNative(ctx context.Context, prompt string, cfg types.GenerationConfig, opts Options) (types.GenerationResult, error) {
	rt := o.lc.Runtime()
	parser := steps.NewParser()
	collected := make([]types.ReasoningStep, 0, 4)
	tokens := 0
	done := make(chan streamOutcome, 1)

	emit := func(confirmed []types.ReasoningStep) {
		for _, st := range confirmed {
			collected = append(collected, st)
			if opts.OnStep != nil {
				opts.OnStep(st)
			}
		}
	}
	token, err := o.sessions.Open(cfg, session.Callbacks{
		OnToken: func(t string) {
			tokens++
			opts.OnToken(t)
			emit(parser.Append(t))
		},
		OnComplete: func(string) { done <- streamOutcome{} },
		OnError:    func(err error) { done <- streamOutcome{err: err} },
	})
	if err != nil {
		return types.GenerationResult{}, err
	}

	start := time.Now()
	if err := rt.StartStreaming(ctx, prompt, cfg, token); err != nil {
		o.sessions.Cancel(token)
		return types.GenerationResult{}, err
	}
	select {
	case out := <-done:
		if out.err != nil {
			return types.GenerationResult{}, out.err
		}
	case <-ctx.Done():
		o.sessions.Cancel(token)
		return types.GenerationResult{}, ctx.Err()
	}
	elapsed := time.Since(start)

	emit(parser.Flush(true))
	text := parser.Result()
	if strings.TrimSpace(text) == "" {
		return types.GenerationResult{}, native.ErrGenerationFailure("empty output")
	}
	reason := types.FinishStop
	if cfg.MaxTokens > 0 && tokens >= cfg.MaxTokens {
		reason = types.FinishLength
	}
	return types.GenerationResult{
		Text:               text,
		FinishReason:       reason,
		TokenCount:         tokens,
		DurationMs:         elapsed.Milliseconds(),
		TokensPerSecond:    throughput(tokens, elapsed),
		Steps:              collected,
		WasNativeExecution: true,
	}, nil
}

func (o *Orchestrator) blockingNative(ctx context.Context, prompt string, cfg types.GenerationConfig, opts Options) (types.GenerationResult, error) {
	rt := o.lc.Runtime()
	raw, err := rt.GenerateText(ctx, prompt, cfg)
	if err != nil {
		return types.GenerationResult{}, err
	}
	if strings.TrimSpace(raw.Text) == "" {
		return types.GenerationResult{}, native.ErrGenerationFailure("empty output")
	}

	// Same parser as the streaming path, one pass over the complete text.
	parser := steps.NewParser()
	confirmed := parser.Append(raw.Text)
	confirmed = append(confirmed, parser.Flush(true)...)
	for _, st := range confirmed {
		if opts.OnStep != nil {
			opts.OnStep(st)
		}
	}
	reason := raw.FinishReason
	if reason == "" || reason == types.FinishError {
		reason = types.FinishStop
	}
	count := raw.TokensGenerated
	if count == 0 {
		// Some backends report text without accounting; tokenize it ourselves.
		if n, cerr := rt.TokenCount(raw.Text); cerr == nil {
			count = n
		}
	}
	return types.GenerationResult{
		Text:               parser.Result(),
		FinishReason:       reason,
		TokenCount:         count,
		DurationMs:         raw.InferenceTimeMs,
		TokensPerSecond:    raw.TokensPerSecond,
		Steps:              confirmed,
		WasNativeExecution: true,
	}, nil
}

// solveFallback runs the heuristic solver and normalizes its result into the
// uniform GenerationResult shape.
func (o *Orchestrator) solveFallback(ctx context.Context, problem string, opts Options) (types.GenerationResult, error) {
	collected := make([]types.ReasoningStep, 0, 4)
	onStep := func(st types.ReasoningStep) {
		collected = append(collected, st)
		if opts.OnStep != nil {
			opts.OnStep(st)
		}
	}
	sr, err := o.fallback.Solve(ctx, problem, onStep, opts.OnToken)
	if err != nil {
		return types.GenerationResult{}, err
	}
	tokens := int(sr.TokensPerSecond*float64(sr.DurationMs)/1000 + 0.5)
	if tokens < 1 {
		tokens = 1
	}
	return types.GenerationResult{
		Text:               sr.Solution,
		FinishReason:       types.FinishStop,
		TokenCount:         tokens,
		DurationMs:         sr.DurationMs,
		TokensPerSecond:    sr.TokensPerSecond,
		Steps:              collected,
		WasNativeExecution: false,
	}, nil
}

func (o *Orchestrator) record(res types.GenerationResult, path types.ExecutionPath) {
	o.agg.Record(types.PerformanceSample{
		TokensPerSecond: res.TokensPerSecond,
		LatencyMs:       res.DurationMs,
		Success:         res.FinishReason != types.FinishError,
		Path:            path,
	})
}

func throughput(tokens int, elapsed time.Duration) float64 {
	s := elapsed.Seconds()
	if s <= 0 {
		s = 0.001
	}
	return float64(tokens) / s
}

func buildPrompt(problem string) string {
	return "You are a careful tutor. Solve the problem below.\n" +
		"Show your reasoning as sections starting with a line like \"Step 1: <short label>\",\n" +
		"each followed by the work for that step, and end with a line \"Final Answer: <answer>\".\n\n" +
		"Problem: " + problem + "\n"
}
