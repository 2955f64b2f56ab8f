package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solverd/internal/native"
	"solverd/internal/orchestrator"
	"solverd/internal/session"
	"solverd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	SolveStream(ctx context.Context, req types.SolveRequest, w io.Writer, flush func()) error
	SolveSync(ctx context.Context, req types.SolveRequest) (types.GenerationResult, error)
	OptimizeForDevice(ctx context.Context, units types.ComputeUnit, quant types.QuantizationMode) error
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"models": svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/solve", func(w http.ResponseWriter, r *http.Request) { handleSolve(svc, w, r) })

	r.Post("/optimize", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		var req types.OptimizeRequest
		if r.ContentLength > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		if !validComputeUnit(req.ComputeUnits) {
			writeJSONError(w, http.StatusBadRequest, "unknown compute_units value")
			return
		}
		if !validQuantization(req.Quantization) {
			writeJSONError(w, http.StatusBadRequest, "unknown quantization value")
			return
		}
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.OptimizeForDevice(joinedCtx, req.ComputeUnits, req.Quantization); err != nil {
			if native.IsCapabilityAbsent(err) {
				writeJSONError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"optimized": true})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func handleSolve(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Problem) == "" {
		writeJSONError(w, http.StatusBadRequest, "problem is required")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo {
		logSolveStart(r)
	}
	// Join server base context with request context so shutdown cancels work too.
	joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if solveTimeout > 0 {
		var tcancel context.CancelFunc
		joinedCtx, tcancel = context.WithTimeout(joinedCtx, time.Duration(solveTimeout)*time.Second)
		defer tcancel()
	}

	if !req.Stream {
		res, err := svc.SolveSync(joinedCtx, req)
		if err != nil {
			status := solveErrorStatus(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo {
				logSolveEnd(r, status, time.Since(start), err)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
		if lvl >= LevelInfo {
			logSolveEnd(r, http.StatusOK, time.Since(start), nil)
		}
		return
	}

	// Stream NDJSON lines; the orchestrator owns the wire format.
	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	writer := io.Writer(w)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{})
	}
	if err := svc.SolveStream(joinedCtx, req, writer, flush); err != nil {
		// If context was canceled (client disconnect), just return.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := solveErrorStatus(err)
		writeJSONError(w, status, err.Error())
		if lvl >= LevelInfo {
			logSolveEnd(r, status, time.Since(start), err)
		}
		return
	}
	if lvl >= LevelInfo {
		logSolveEnd(r, http.StatusOK, time.Since(start), nil)
	}
}

// solveErrorStatus maps well-known solve errors to HTTP status codes.
func solveErrorStatus(err error) int {
	switch {
	case orchestrator.IsInvalidRequest(err):
		return http.StatusBadRequest
	case session.IsNotReady(err):
		return http.StatusConflict
	case native.IsCapabilityAbsent(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

func validComputeUnit(u types.ComputeUnit) bool {
	switch u {
	case "", types.ComputeCPUOnly, types.ComputeCPUAndGPU, types.ComputeCPUAndNPU, types.ComputeAll:
		return true
	}
	return false
}

func validQuantization(m types.QuantizationMode) bool {
	switch m {
	case "", types.QuantNone, types.QuantFP16, types.QuantInt8, types.QuantInt4:
		return true
	}
	return false
}
