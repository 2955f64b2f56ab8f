package types

// SolveRequest represents a solve request payload.
type SolveRequest struct {
	// Required problem statement to solve.
	// example: Solve 2x + 3 = 7
	Problem string `json:"problem" example:"Solve 2x + 3 = 7"`
	// If true, stream tokens and steps as NDJSON lines.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Optional generation parameters; defaults applied when omitted.
	Config *GenerationConfig `json:"config,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a native on-device runtime is present on this host.
	// example: true
	NativeSupported bool `json:"native_supported" example:"true"`
	// Whether the model is currently loaded.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Lifecycle state (unloaded, loading, loaded, unloading, failed).
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Info for the loaded model, when available.
	ModelInfo *ModelInfo `json:"model_info,omitempty"`
	// Aggregate solve telemetry, when any samples exist.
	Metrics *MetricsSummary `json:"metrics,omitempty"`
	// The runtime's own rolling counters, when a native runtime is present.
	Runtime *RuntimeMetrics `json:"runtime,omitempty"`
	// Resident memory attributed to the runtime, in MB.
	// example: 2300
	MemoryUsageMB int `json:"memory_usage_mb,omitempty" example:"2300"`
	// Number of live streaming sessions.
	// example: 1
	ActiveSessions int `json:"active_sessions" example:"1"`
	// Last lifecycle error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// OptimizeRequest selects the compute units for device optimization.
type OptimizeRequest struct {
	// Compute units to pin (cpu_only, cpu_and_gpu, cpu_and_npu, all). Empty means all.
	// example: all
	ComputeUnits ComputeUnit `json:"compute_units,omitempty" example:"all"`
	// Quantization to request (none, fp16, int8, int4). Empty keeps the
	// current mode.
	// example: int4
	Quantization QuantizationMode `json:"quantization,omitempty" example:"int4"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: problem is required
	Error string `json:"error" example:"problem is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
