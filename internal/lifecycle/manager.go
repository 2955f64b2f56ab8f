// Package lifecycle owns the state of the on-device model and serializes
// lifecycle transitions. Exactly one Manager exists per runtime; callers hold
// a reference, there is no package-level state.
package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solverd/internal/common/fsutil"
	"solverd/internal/native"
	"solverd/pkg/types"
)

// attempt tracks one in-flight load or unload so concurrent callers can join
// it instead of starting a second one. err is valid once done is closed.
type attempt struct {
	done chan struct{}
	err  error
}

// Manager guards the model lifecycle behind a single mutex. Valid transitions:
// unloaded -> loading -> {loaded, failed}; loaded -> unloading -> unloaded.
// No operation requiring "loaded" proceeds from any other state.
type Manager struct {
	mu        sync.Mutex
	rt        native.Runtime
	state     State
	path      string
	lastErr   string
	loading   *attempt
	unloading *attempt
	publisher EventPublisher
	logger    zerolog.Logger
}

// Config encapsulates Manager construction. Runtime may be nil on hosts with
// no native capability; all operations then fail fast with a typed error.
type Config struct {
	Runtime   native.Runtime
	Publisher EventPublisher
}

func New(cfg Config) *Manager {
	p := cfg.Publisher
	if p == nil {
		p = noopPublisher{}
	}
	return &Manager{
		rt:        cfg.Runtime,
		state:     StateUnloaded,
		publisher: p,
		logger:    zerolog.Nop(),
	}
}

// SetLogger installs a structured logger used for lifecycle transitions.
func (m *Manager) SetLogger(l zerolog.Logger) { m.logger = l }

// NativeSupported reports whether an on-device runtime exists on this host.
func (m *Manager) NativeSupported() bool { return m.rt != nil }

// Runtime exposes the underlying boundary for generation calls. Nil when the
// capability is absent.
func (m *Manager) Runtime() native.Runtime { return m.rt }

// Load brings the model at path to the loaded state. A concurrent Load while
// one is in flight does not start a second attempt: it joins the in-flight
// one and returns its outcome. Failure transitions to failed and is reported;
// this component never retries on its own. After a successful load the
// runtime is warmed up before readiness is signaled.
func (m *Manager) Load(ctx context.Context, path string) error {
	if m.rt == nil {
		return native.ErrCapabilityAbsent()
	}
	if strings.TrimSpace(path) == "" {
		return ErrLifecycleFailure("load", "model path is empty")
	}
	for {
		m.mu.Lock()
		switch m.state {
		case StateLoaded:
			if m.path == path {
				m.mu.Unlock()
				return nil
			}
			// Different model requested: unload the current one first.
			m.mu.Unlock()
			if err := m.Unload(ctx); err != nil {
				return err
			}
			continue
		case StateLoading:
			a := m.loading
			m.mu.Unlock()
			select {
			case <-a.done:
				return a.err
			case <-ctx.Done():
				return ctx.Err()
			}
		case StateUnloading:
			// Wait for the unload to settle, then start a fresh load.
			a := m.unloading
			m.mu.Unlock()
			select {
			case <-a.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		default: // unloaded, failed
			a := &attempt{done: make(chan struct{})}
			m.loading = a
			m.state = StateLoading
			m.lastErr = ""
			m.mu.Unlock()

			err := m.runLoad(ctx, path)

			m.mu.Lock()
			m.loading = nil
			if err != nil {
				m.state = StateFailed
				m.lastErr = err.Error()
			} else {
				m.state = StateLoaded
				m.path = path
			}
			m.mu.Unlock()
			a.err = err
			close(a.done)
			return err
		}
	}
}

func (m *Manager) runLoad(ctx context.Context, path string) error {
	start := time.Now()
	m.publisher.Publish(Event{Name: "load_start", ModelPath: path, Fields: map[string]any{}})
	m.logger.Info().Str("path", path).Msg("model load start")
	if err := m.rt.LoadModel(ctx, path); err != nil {
		m.publisher.Publish(Event{Name: "load_error", ModelPath: path, Fields: map[string]any{"error": err.Error()}})
		m.logger.Error().Str("path", path).Err(err).Msg("model load failed")
		return ErrLifecycleFailure("load", err.Error())
	}
	// Warm-up pass before signaling readiness so the first caller does not
	// observe the cold-start latency spike. A failed warm-up is logged, not
	// surfaced: the model is loaded either way.
	if err := m.rt.Warmup(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("post-load warmup failed")
	}
	durMS := int(time.Since(start) / time.Millisecond)
	m.publisher.Publish(Event{Name: "load_ready", ModelPath: path, Fields: map[string]any{"dur_ms": durMS}})
	m.logger.Info().Str("path", path).Int("dur_ms", durMS).Msg("model load ready")
	return nil
}

// Unload releases the model. No-op success when already unloaded. When called
// while a load is in flight, the unload queues until the load settles and
// then runs. From failed it simply clears the error and returns to unloaded.
func (m *Manager) Unload(ctx context.Context) error {
	if m.rt == nil {
		return native.ErrCapabilityAbsent()
	}
	for {
		m.mu.Lock()
		switch m.state {
		case StateUnloaded:
			m.mu.Unlock()
			return nil
		case StateFailed:
			m.state = StateUnloaded
			m.lastErr = ""
			m.path = ""
			m.mu.Unlock()
			return nil
		case StateLoading:
			a := m.loading
			m.mu.Unlock()
			select {
			case <-a.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case StateUnloading:
			a := m.unloading
			m.mu.Unlock()
			select {
			case <-a.done:
				return a.err
			case <-ctx.Done():
				return ctx.Err()
			}
		default: // loaded
			a := &attempt{done: make(chan struct{})}
			m.unloading = a
			m.state = StateUnloading
			path := m.path
			m.mu.Unlock()

			m.publisher.Publish(Event{Name: "unload_start", ModelPath: path, Fields: map[string]any{}})
			err := m.rt.UnloadModel(ctx)

			m.mu.Lock()
			m.unloading = nil
			// Local state is released regardless of the runtime's answer.
			m.state = StateUnloaded
			m.path = ""
			if err != nil {
				m.lastErr = err.Error()
				err = ErrLifecycleFailure("unload", err.Error())
			}
			m.mu.Unlock()
			a.err = err
			close(a.done)
			m.publisher.Publish(Event{Name: "unload_done", ModelPath: path, Fields: map[string]any{}})
			return err
		}
	}
}

// IsLoaded reports whether the model is in the loaded state.
func (m *Manager) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateLoaded
}

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, ModelPath: m.path, Err: m.lastErr}
}

// WarmUp runs an explicit warm-up pass. Requires the loaded state.
func (m *Manager) WarmUp(ctx context.Context) error {
	if m.rt == nil {
		return native.ErrCapabilityAbsent()
	}
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st != StateLoaded {
		return ErrNotLoaded(st)
	}
	return m.rt.Warmup(ctx)
}

// Info returns the runtime's view of the loaded model.
func (m *Manager) Info() (types.ModelInfo, error) {
	if m.rt == nil {
		return types.ModelInfo{}, native.ErrCapabilityAbsent()
	}
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st != StateLoaded {
		return types.ModelInfo{}, ErrNotLoaded(st)
	}
	info, err := m.rt.ModelInfo()
	if err != nil {
		return types.ModelInfo{}, err
	}
	if info.MemoryUsageMB == 0 && info.Path != "" {
		// Runtimes that don't track resident size fall back to file size.
		info.MemoryUsageMB = fsutil.FileSizeMB(info.Path)
	}
	return info, nil
}
