//go:build llama

package native

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"

	"solverd/pkg/types"
)

// nativeBuilt indicates this binary was compiled with real llama support.
var nativeBuilt = true

// Detect reports the on-device runtime for this build. With the llama tag the
// capability is always present; whether a model is loaded is a separate matter.
func Detect(ctxSize, threads int) (Runtime, bool) {
	return newLlamaRuntime(ctxSize, threads), true
}

// llamaRuntime adapts go-llama.cpp to the Runtime boundary. The underlying
// model context is not safe for concurrent prediction, so all generations are
// serialized on genMu; streams queue behind one another.
type llamaRuntime struct {
	mu      sync.Mutex
	genMu   sync.Mutex
	model   *llama.LLama
	path    string
	ctxSize int
	threads int
	units   types.ComputeUnit
	quant   types.QuantizationMode
	sizeMB  int

	events  chan TokenEvent
	cancels map[string]context.CancelFunc

	totalInf int64
	lastMs   int64
	lastTPS  float64
}

func newLlamaRuntime(ctxSize, threads int) *llamaRuntime {
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaRuntime{
		ctxSize: ctxSize,
		threads: threads,
		units:   types.ComputeAll,
		events:  make(chan TokenEvent, 256),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (r *llamaRuntime) LoadModel(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetContext(r.ctxSize)}
	if r.units == types.ComputeCPUOnly {
		mo = append(mo, llama.SetGPULayers(0))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return err
	}
	sizeMB := 0
	if fi, serr := os.Stat(path); serr == nil {
		sizeMB = int(fi.Size() / (1024 * 1024))
	}
	r.mu.Lock()
	if r.model != nil {
		r.model.Free()
	}
	r.model = m
	r.path = path
	r.sizeMB = sizeMB
	r.mu.Unlock()
	return nil
}

func (r *llamaRuntime) UnloadModel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		r.model.Free()
		r.model = nil
		r.path = ""
		r.sizeMB = 0
	}
	return nil
}

func (r *llamaRuntime) IsModelLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model != nil
}

func (r *llamaRuntime) ModelInfo() (types.ModelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model == nil {
		return types.ModelInfo{}, errors.New("no model loaded")
	}
	return types.ModelInfo{
		Name:           baseName(r.path),
		Quantization:   r.quant,
		MemoryUsageMB:  r.sizeMB,
		SupportedUnits: []types.ComputeUnit{types.ComputeCPUOnly, types.ComputeCPUAndGPU, types.ComputeAll},
		Path:           r.path,
	}, nil
}

func (r *llamaRuntime) GenerateText(ctx context.Context, prompt string, cfg types.GenerationConfig) (RawResult, error) {
	return r.generate(ctx, prompt, cfg, nil)
}

func (r *llamaRuntime) generate(ctx context.Context, prompt string, cfg types.GenerationConfig, onToken func(string) bool) (RawResult, error) {
	r.mu.Lock()
	m := r.model
	r.mu.Unlock()
	if m == nil {
		return RawResult{}, ErrGenerationFailure("no model loaded")
	}
	r.genMu.Lock()
	defer r.genMu.Unlock()

	tokens := 0
	m.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		if onToken != nil {
			return onToken(tok)
		}
		return true
	})
	start := time.Now()
	text, err := m.Predict(prompt, predictOptions(cfg, r.threads)...)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return RawResult{}, ctx.Err()
		}
		return RawResult{}, ErrGenerationFailure(err.Error())
	}
	tps := 0.0
	if s := elapsed.Seconds(); s > 0 {
		tps = float64(tokens) / s
	}
	reason := types.FinishStop
	if cfg.MaxTokens > 0 && tokens >= cfg.MaxTokens {
		reason = types.FinishLength
	}
	r.mu.Lock()
	r.totalInf++
	r.lastMs = elapsed.Milliseconds()
	r.lastTPS = tps
	r.mu.Unlock()
	return RawResult{
		Text:            text,
		TokensGenerated: tokens,
		TokensPerSecond: tps,
		InferenceTimeMs: elapsed.Milliseconds(),
		FinishReason:    reason,
	}, nil
}

func (r *llamaRuntime) StartStreaming(ctx context.Context, prompt string, cfg types.GenerationConfig, correlation string) error {
	if !r.IsModelLoaded() {
		return ErrGenerationFailure("no model loaded")
	}
	genCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[correlation] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.cancels, correlation)
			r.mu.Unlock()
		}()
		_, err := r.generate(genCtx, prompt, cfg, func(tok string) bool {
			select {
			case r.events <- TokenEvent{Correlation: correlation, Text: tok}:
				return true
			case <-genCtx.Done():
				return false
			}
		})
		if err != nil && genCtx.Err() == nil {
			r.events <- TokenEvent{Correlation: correlation, Err: err}
			return
		}
		r.events <- TokenEvent{Correlation: correlation, Done: true}
	}()
	return nil
}

func (r *llamaRuntime) StopStreaming(correlation string) error {
	r.mu.Lock()
	cancel := r.cancels[correlation]
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *llamaRuntime) Events() <-chan TokenEvent { return r.events }

func (r *llamaRuntime) TokenCount(text string) (int, error) {
	r.mu.Lock()
	m := r.model
	r.mu.Unlock()
	if m == nil {
		return 0, errors.New("no model loaded")
	}
	_, toks, err := m.TokenizeString(text, llama.SetTokens(r.ctxSize))
	if err != nil {
		return 0, err
	}
	return len(toks), nil
}

func (r *llamaRuntime) Warmup(ctx context.Context) error {
	_, err := r.generate(ctx, "2+2=", types.GenerationConfig{MaxTokens: 4, Temperature: 0.1}, nil)
	return err
}

// ClearKVCache is a no-op for this backend: go-llama.cpp does not retain a
// prompt cache across Predict calls unless one is explicitly configured.
func (r *llamaRuntime) ClearKVCache() error { return nil }

func (r *llamaRuntime) PerformanceMetrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Metrics{TokensPerSecond: r.lastTPS, LastInferenceMs: r.lastMs, TotalInferences: r.totalInf}
}

func (r *llamaRuntime) MemoryUsageMB() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizeMB
}

func (r *llamaRuntime) TriggerMemoryCleanup() { runtime.GC() }

// SetComputeUnits takes effect on the next LoadModel; a loaded model keeps
// its current placement.
func (r *llamaRuntime) SetComputeUnits(u types.ComputeUnit) error {
	switch u {
	case types.ComputeCPUOnly, types.ComputeCPUAndGPU, types.ComputeCPUAndNPU, types.ComputeAll:
	default:
		return errors.New("unknown compute unit: " + string(u))
	}
	r.mu.Lock()
	r.units = u
	r.mu.Unlock()
	return nil
}

// SetQuantizationMode records the requested mode; for file-quantized weights
// it is advisory and applies to the next model selection.
func (r *llamaRuntime) SetQuantizationMode(m types.QuantizationMode) error {
	switch m {
	case types.QuantNone, types.QuantFP16, types.QuantInt8, types.QuantInt4:
	default:
		return errors.New("unknown quantization mode: " + string(m))
	}
	r.mu.Lock()
	r.quant = m
	r.mu.Unlock()
	return nil
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func predictOptions(cfg types.GenerationConfig, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, cfg.MaxTokens)),
		llama.SetThreads(maxInt(1, threads)),
	}
	if cfg.TopP > 0 {
		po = append(po, llama.SetTopP(float32(cfg.TopP)))
	}
	if cfg.TopK > 0 {
		po = append(po, llama.SetTopK(cfg.TopK))
	}
	if cfg.Temperature > 0 {
		po = append(po, llama.SetTemperature(float32(cfg.Temperature)))
	}
	if len(cfg.Stop) > 0 {
		po = append(po, llama.SetStopWords(cfg.Stop...))
	}
	return po
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
