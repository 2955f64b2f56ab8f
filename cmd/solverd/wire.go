package main

import (
	"github.com/rs/zerolog"

	"solverd/internal/config"
	"solverd/internal/diag"
	"solverd/internal/heuristic"
	"solverd/internal/lifecycle"
	"solverd/internal/native"
	"solverd/internal/orchestrator"
	"solverd/internal/registry"
	"solverd/internal/session"
	"solverd/pkg/types"
)

// buildOrchestrator assembles the full solve stack from config. A missing or
// empty models directory is tolerated: the heuristic fallback keeps the
// daemon serviceable without any model on disk.
func buildOrchestrator(cfg *config.Config, logger zerolog.Logger) *orchestrator.Orchestrator {
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed, continuing without registry")
	}
	var modelPath string
	if cfg.DefaultModel != "" {
		if m, ok := registry.Find(models, cfg.DefaultModel); ok {
			modelPath = m.Path
		} else {
			logger.Warn().Str("model", cfg.DefaultModel).Msg("default model not found in registry")
		}
	} else if len(models) > 0 {
		modelPath = models[0].Path
	}

	rt, ok := native.Detect(cfg.ContextSize, cfg.Threads)
	if ok && cfg.ComputeUnits != "" {
		if err := rt.SetComputeUnits(types.ComputeUnit(cfg.ComputeUnits)); err != nil {
			logger.Warn().Err(err).Msg("compute units not applied")
		}
	}

	d := diag.New(cfg.DiagCapacity)
	d.SetLogger(logger.With().Str("component", "diag").Logger())

	lc := lifecycle.New(lifecycle.Config{Runtime: rt})
	lc.SetLogger(logger.With().Str("component", "lifecycle").Logger())

	sess := session.New(session.Config{Gate: lc, Stopper: rt, Diag: d})
	sess.SetLogger(logger.With().Str("component", "session").Logger())

	o := orchestrator.New(orchestrator.Config{
		Lifecycle: lc,
		Sessions:  sess,
		Fallback:  heuristic.New(),
		Diag:      d,
		ModelPath: modelPath,
		Models:    models,
	})
	o.SetLogger(logger.With().Str("component", "orchestrator").Logger())

	logger.Info().
		Bool("native", ok).
		Int("models", len(models)).
		Str("model_path", modelPath).
		Msg("solver stack assembled")
	return o
}
