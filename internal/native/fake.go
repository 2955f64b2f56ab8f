package native

import (
	"context"
	"sync"

	"solverd/pkg/types"
)

// Fake is a scriptable in-memory Runtime for tests. Zero value is usable:
// loads succeed instantly and generations return canned text. Behavior is
// overridden per test via the exported hook fields.
type Fake struct {
	mu     sync.Mutex
	loaded bool
	path   string
	events chan TokenEvent

	// Hooks; when nil a benign default applies.
	LoadFn     func(ctx context.Context, path string) error
	UnloadFn   func(ctx context.Context) error
	GenerateFn func(ctx context.Context, prompt string, cfg types.GenerationConfig) (RawResult, error)
	StreamFn   func(ctx context.Context, prompt string, cfg types.GenerationConfig, correlation string) error

	// Call accounting.
	LoadCalls    int
	UnloadCalls  int
	WarmupCalls  int
	CleanupCalls int
	ClearCalls   int
	StopCalls    []string
	Units        types.ComputeUnit
	Quant        types.QuantizationMode
}

func NewFake() *Fake {
	return &Fake{events: make(chan TokenEvent, 64)}
}

// Emit pushes an event as if the runtime delivered it out-of-band.
func (f *Fake) Emit(ev TokenEvent) { f.eventsCh() <- ev }

func (f *Fake) eventsCh() chan TokenEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = make(chan TokenEvent, 64)
	}
	return f.events
}

func (f *Fake) LoadModel(ctx context.Context, path string) error {
	f.mu.Lock()
	f.LoadCalls++
	fn := f.LoadFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, path); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.loaded = true
	f.path = path
	f.mu.Unlock()
	return nil
}

func (f *Fake) UnloadModel(ctx context.Context) error {
	f.mu.Lock()
	f.UnloadCalls++
	fn := f.UnloadFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.loaded = false
	f.path = ""
	f.mu.Unlock()
	return nil
}

func (f *Fake) IsModelLoaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *Fake) ModelInfo() (types.ModelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return types.ModelInfo{}, ErrGenerationFailure("no model loaded")
	}
	return types.ModelInfo{Name: "fake-model", Version: "0.0.1", Path: f.path}, nil
}

func (f *Fake) GenerateText(ctx context.Context, prompt string, cfg types.GenerationConfig) (RawResult, error) {
	f.mu.Lock()
	fn := f.GenerateFn
	loaded := f.loaded
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, prompt, cfg)
	}
	if !loaded {
		return RawResult{}, ErrGenerationFailure("no model loaded")
	}
	return RawResult{
		Text:            "Step 1: Echo\n" + prompt + "\nFinal Answer: ok",
		TokensGenerated: 8,
		TokensPerSecond: 80,
		InferenceTimeMs: 100,
		FinishReason:    types.FinishStop,
	}, nil
}

func (f *Fake) StartStreaming(ctx context.Context, prompt string, cfg types.GenerationConfig, correlation string) error {
	f.mu.Lock()
	fn := f.StreamFn
	loaded := f.loaded
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, prompt, cfg, correlation)
	}
	if !loaded {
		return ErrGenerationFailure("no model loaded")
	}
	return nil
}

func (f *Fake) StopStreaming(correlation string) error {
	f.mu.Lock()
	f.StopCalls = append(f.StopCalls, correlation)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Events() <-chan TokenEvent { return f.eventsCh() }

// TokenCount approximates four characters per token.
func (f *Fake) TokenCount(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

func (f *Fake) Warmup(ctx context.Context) error {
	f.mu.Lock()
	f.WarmupCalls++
	f.mu.Unlock()
	return nil
}

func (f *Fake) ClearKVCache() error {
	f.mu.Lock()
	f.ClearCalls++
	f.mu.Unlock()
	return nil
}

func (f *Fake) PerformanceMetrics() Metrics {
	return Metrics{TokensPerSecond: 80, LastInferenceMs: 100, TotalInferences: 1}
}

func (f *Fake) MemoryUsageMB() int { return 64 }

func (f *Fake) TriggerMemoryCleanup() {
	f.mu.Lock()
	f.CleanupCalls++
	f.mu.Unlock()
}

func (f *Fake) SetComputeUnits(u types.ComputeUnit) error {
	f.mu.Lock()
	f.Units = u
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetQuantizationMode(m types.QuantizationMode) error {
	f.mu.Lock()
	f.Quant = m
	f.mu.Unlock()
	return nil
}
