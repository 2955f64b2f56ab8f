// Package orchestrator is the entry point for solve requests. It decides the
// execution path (on-device native vs heuristic fallback), drives the
// lifecycle manager, session registry and step parser, and normalizes every
// outcome into the same result shape.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solverd/internal/diag"
	"solverd/internal/lifecycle"
	"solverd/internal/metrics"
	"solverd/internal/native"
	"solverd/internal/session"
	"solverd/pkg/types"
)

// Fallback is a drop-in alternate generator with no lifecycle state, always
// available, used when the native path is absent or fails.
type Fallback interface {
	Solve(ctx context.Context, problem string, onStep func(types.ReasoningStep), onToken func(string)) (types.SolverResult, error)
}

// Options carries the per-request callbacks and parameters for Solve.
// A non-nil OnToken selects the streaming path.
type Options struct {
	OnStep  func(types.ReasoningStep)
	OnToken func(string)
	Config  *types.GenerationConfig
}

// Orchestrator multiplexes any number of concurrent Solve calls. The only
// shared mutable state lives in the lifecycle manager and session registry,
// each behind its own lock.
type Orchestrator struct {
	lc        *lifecycle.Manager
	sessions  *session.Registry
	fallback  Fallback
	agg       *metrics.Aggregator
	diag      *diag.Log
	modelPath string
	models    []types.Model
	logger    zerolog.Logger
	started   time.Time
}

// Config encapsulates Orchestrator construction. Fallback must be non-nil;
// the rest default to fresh instances.
type Config struct {
	Lifecycle *lifecycle.Manager
	Sessions  *session.Registry
	Fallback  Fallback
	Metrics   *metrics.Aggregator
	Diag      *diag.Log
	// ModelPath is the model file loaded on first native solve.
	ModelPath string
	// Models is the discovered registry, reported over the API.
	Models []types.Model
}

func New(cfg Config) *Orchestrator {
	lc := cfg.Lifecycle
	if lc == nil {
		lc = lifecycle.New(lifecycle.Config{})
	}
	d := cfg.Diag
	if d == nil {
		d = diag.New(0)
	}
	sess := cfg.Sessions
	if sess == nil {
		sess = session.New(session.Config{Gate: lc, Stopper: lc.Runtime(), Diag: d})
	}
	agg := cfg.Metrics
	if agg == nil {
		agg = metrics.NewAggregator()
	}
	return &Orchestrator{
		lc:        lc,
		sessions:  sess,
		fallback:  cfg.Fallback,
		agg:       agg,
		diag:      d,
		modelPath: cfg.ModelPath,
		models:    cfg.Models,
		logger:    zerolog.Nop(),
		started:   time.Now(),
	}
}

// ListModels returns the models discovered at startup.
func (o *Orchestrator) ListModels() []types.Model {
	return append([]types.Model(nil), o.models...)
}

// SetLogger installs a structured logger used for solve activity.
func (o *Orchestrator) SetLogger(l zerolog.Logger) { o.logger = l }

// Diagnostics exposes the bounded error log.
func (o *Orchestrator) Diagnostics() *diag.Log { return o.diag }

// Start launches the event routing goroutine that feeds boundary token
// events into the registry. Returns immediately; routing stops with ctx.
func (o *Orchestrator) Start(ctx context.Context) {
	rt := o.lc.Runtime()
	if rt == nil {
		return
	}
	go o.sessions.Route(ctx, rt.Events())
}

// Status reports the orchestrator surface state for UI/diagnostics.
func (o *Orchestrator) Status() types.StatusResponse {
	snap := o.lc.Snapshot()
	resp := types.StatusResponse{
		NativeSupported: o.lc.NativeSupported(),
		ModelLoaded:     snap.State == lifecycle.StateLoaded,
		State:           string(snap.State),
		ActiveSessions:  o.sessions.Active(),
		LastError:       snap.Err,
		UptimeSeconds:   int64(time.Since(o.started).Seconds()),
	}
	if resp.ModelLoaded {
		if info, err := o.lc.Info(); err == nil {
			resp.ModelInfo = &info
		}
	}
	if rt := o.lc.Runtime(); rt != nil {
		pm := rt.PerformanceMetrics()
		resp.Runtime = &types.RuntimeMetrics{
			TokensPerSecond: pm.TokensPerSecond,
			LastInferenceMs: pm.LastInferenceMs,
			TotalInferences: pm.TotalInferences,
		}
		resp.MemoryUsageMB = rt.MemoryUsageMB()
	}
	if s := o.agg.Summary(); s.Count > 0 {
		resp.Metrics = &s
	}
	return resp
}

// OptimizeForDevice best-effort tunes the native runtime: pin compute units,
// optionally switch quantization, clear the KV cache and trigger a memory
// cleanup. Individual failures are recorded and skipped, not surfaced.
func (o *Orchestrator) OptimizeForDevice(ctx context.Context, units types.ComputeUnit, quant types.QuantizationMode) error {
	rt := o.lc.Runtime()
	if rt == nil {
		return native.ErrCapabilityAbsent()
	}
	if units == "" {
		units = types.ComputeAll
	}
	if err := rt.SetComputeUnits(units); err != nil {
		o.diag.Err("optimize", err)
	}
	if quant != "" {
		if err := rt.SetQuantizationMode(quant); err != nil {
			o.diag.Err("optimize", err)
		}
	}
	if err := rt.ClearKVCache(); err != nil {
		o.diag.Err("optimize", err)
	}
	rt.TriggerMemoryCleanup()
	o.logger.Info().Str("units", string(units)).Str("quant", string(quant)).Msg("device optimization applied")
	return nil
}

// Ready reports whether the native model is loaded. The fallback path keeps
// the orchestrator serviceable either way.
func (o *Orchestrator) Ready() bool { return true }
