package types

// FinishReason is the terminal cause of a generation's completion.
type FinishReason string

const (
	// FinishLength means the generation hit the max output size.
	FinishLength FinishReason = "length"
	// FinishStop means a stop marker was produced.
	FinishStop FinishReason = "stop"
	// FinishError means the generation failed.
	FinishError FinishReason = "error"
)

// ExecutionPath records which route produced a result.
type ExecutionPath string

const (
	PathNative    ExecutionPath = "native"
	PathHeuristic ExecutionPath = "heuristic"
)

// ComputeUnit selects which hardware units the native runtime may use.
type ComputeUnit string

const (
	ComputeCPUOnly   ComputeUnit = "cpu_only"
	ComputeCPUAndGPU ComputeUnit = "cpu_and_gpu"
	ComputeCPUAndNPU ComputeUnit = "cpu_and_npu"
	ComputeAll       ComputeUnit = "all"
)

// QuantizationMode selects the runtime quantization of model weights.
type QuantizationMode string

const (
	QuantNone QuantizationMode = "none"
	QuantFP16 QuantizationMode = "fp16"
	QuantInt8 QuantizationMode = "int8"
	QuantInt4 QuantizationMode = "int4"
)

// GenerationConfig holds per-request sampling parameters. It is a value type
// and must not be mutated after a request is issued.
type GenerationConfig struct {
	// Maximum number of new tokens to generate.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	Stop []string `json:"stop,omitempty"`
	// Reuse the KV cache from the previous request when the prompt shares a prefix.
	// example: true
	ReuseCache bool `json:"reuse_cache,omitempty" example:"true"`
}

// DefaultGenerationConfig returns the parameters used when a request omits them.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:   512,
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
	}
}

// ReasoningStep is one structured step extracted from generated output.
// Steps are 1-indexed, emitted in order, and never revised once emitted.
type ReasoningStep struct {
	// 1-based position in emission order.
	// example: 1
	Index int `json:"index" example:"1"`
	// Short label from the step marker line.
	// example: Isolate the variable
	Title string `json:"title" example:"Isolate the variable"`
	// Body text between this marker and the next.
	Body string `json:"body"`
	// Whether the body was terminated by a marker rather than stream end.
	// example: true
	Complete bool `json:"complete" example:"true"`
}

// GenerationResult is the uniform result shape returned for every solve,
// regardless of which execution path produced it.
type GenerationResult struct {
	// Full result text (the final answer when one was marked).
	Text string `json:"text"`
	// Why the generation ended.
	// example: stop
	FinishReason FinishReason `json:"finish_reason" example:"stop"`
	// Number of tokens generated.
	// example: 128
	TokenCount int `json:"token_count" example:"128"`
	// Wall-clock duration in milliseconds.
	// example: 840
	DurationMs int64 `json:"duration_ms" example:"840"`
	// Derived throughput in tokens per second.
	// example: 152.4
	TokensPerSecond float64 `json:"tokens_per_second" example:"152.4"`
	// Steps extracted from the output, in emission order.
	Steps []ReasoningStep `json:"steps,omitempty"`
	// True when the on-device runtime produced this result. Telemetry only;
	// the rest of the shape is identical on both paths.
	WasNativeExecution bool `json:"was_native_execution"`
}

// RuntimeMetrics is the native runtime's own rolling performance view.
type RuntimeMetrics struct {
	// example: 148.2
	TokensPerSecond float64 `json:"tokens_per_second" example:"148.2"`
	// example: 910
	LastInferenceMs int64 `json:"last_inference_ms" example:"910"`
	// example: 12
	TotalInferences int64 `json:"total_inferences" example:"12"`
}

// ModelInfo describes the model currently held by the native runtime.
type ModelInfo struct {
	// example: phi-4-mini
	Name string `json:"name" example:"phi-4-mini"`
	// example: 1.2.0
	Version string `json:"version,omitempty" example:"1.2.0"`
	// example: int4
	Quantization QuantizationMode `json:"quantization,omitempty" example:"int4"`
	// Resident memory attributed to the model, in MB.
	// example: 2300
	MemoryUsageMB int `json:"memory_usage_mb,omitempty" example:"2300"`
	// Compute units the runtime can schedule this model on.
	SupportedUnits []ComputeUnit `json:"supported_units,omitempty"`
	// Absolute path the model was loaded from.
	Path string `json:"path,omitempty"`
}

// Model represents a discoverable or loadable model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: phi-4-mini-q4
	ID string `json:"id" example:"phi-4-mini-q4"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	Path string `json:"path"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Optional family (e.g., llama, phi).
	Family string `json:"family,omitempty" example:"phi"`
}

// SolverResult is the raw outcome of a heuristic/remote solver, before the
// orchestrator normalizes it into a GenerationResult.
type SolverResult struct {
	Solution        string  `json:"solution"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	DurationMs      int64   `json:"duration_ms"`
}

// PerformanceSample is one completed attempt's telemetry record.
type PerformanceSample struct {
	TokensPerSecond float64       `json:"tokens_per_second"`
	LatencyMs       int64         `json:"latency_ms"`
	Success         bool          `json:"success"`
	Path            ExecutionPath `json:"path"`
}

// MetricsSummary is the on-demand aggregate over all recorded samples.
type MetricsSummary struct {
	// Number of samples recorded.
	// example: 42
	Count int `json:"count" example:"42"`
	// Mean tokens/sec across samples with throughput > 0.
	// example: 148.9
	MeanThroughput float64 `json:"mean_throughput" example:"148.9"`
	// Fraction of samples that did not finish with an error.
	// example: 0.95
	SuccessRate float64 `json:"success_rate" example:"0.95"`
}
