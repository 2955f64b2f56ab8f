// Package native defines the boundary to an on-device inference runtime.
// The runtime may be entirely absent on a given host; presence is queried
// through Detect, never assumed.
package native

import (
	"context"

	"solverd/pkg/types"
)

// Built reports whether this binary was compiled with an on-device backend.
func Built() bool { return nativeBuilt }

// TokenEvent is an out-of-band delivery from the runtime for one streaming
// generation, paired to its request by correlation token.
type TokenEvent struct {
	// Correlation token supplied to StartStreaming.
	Correlation string
	// Text of the generated token. Empty on pure completion/error events.
	Text string
	// Done marks the final event of the stream.
	Done bool
	// Err, when non-nil, terminates the stream with a failure.
	Err error
}

// RawResult is the runtime's native report for one completed generation.
type RawResult struct {
	Text            string
	TokensGenerated int
	TokensPerSecond float64
	InferenceTimeMs int64
	FinishReason    types.FinishReason
}

// Metrics is the runtime's own rolling performance view.
type Metrics struct {
	TokensPerSecond float64
	LastInferenceMs int64
	TotalInferences int64
}

// Runtime is the asynchronous capability boundary to the on-device model.
// Lifecycle serialization is NOT the runtime's job; callers (the lifecycle
// manager) must never interleave lifecycle operations.
type Runtime interface {
	LoadModel(ctx context.Context, path string) error
	UnloadModel(ctx context.Context) error
	IsModelLoaded() bool
	ModelInfo() (types.ModelInfo, error)

	// GenerateText runs one blocking generation.
	GenerateText(ctx context.Context, prompt string, cfg types.GenerationConfig) (RawResult, error)
	// StartStreaming begins an asynchronous generation whose tokens arrive on
	// Events, tagged with the given correlation token. It returns as soon as
	// the generation is admitted.
	StartStreaming(ctx context.Context, prompt string, cfg types.GenerationConfig, correlation string) error
	// StopStreaming best-effort halts the generation for the given token.
	StopStreaming(correlation string) error
	// Events delivers token/completion/error events for all in-flight streams.
	Events() <-chan TokenEvent

	// TokenCount tokenizes text and reports how many tokens it spans.
	TokenCount(text string) (int, error)

	Warmup(ctx context.Context) error
	ClearKVCache() error
	PerformanceMetrics() Metrics
	MemoryUsageMB() int
	TriggerMemoryCleanup()
	SetComputeUnits(u types.ComputeUnit) error
	SetQuantizationMode(m types.QuantizationMode) error
}
