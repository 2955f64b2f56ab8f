package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"solverd/internal/native"
	"solverd/pkg/types"
)

type mockService struct {
	models      []types.Model
	status      types.StatusResponse
	ready       bool
	solveErr    error
	optimized   types.ComputeUnit
	quantized   types.QuantizationMode
	optimizeErr error
}

func (m *mockService) ListModels() []types.Model    { return append([]types.Model(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) SolveStream(ctx context.Context, req types.SolveRequest, w io.Writer, flush func()) error {
	if m.solveErr != nil {
		return m.solveErr
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(map[string]any{"token": "x"})
	if flush != nil {
		flush()
	}
	_ = enc.Encode(map[string]any{"step": types.ReasoningStep{Index: 1, Title: "Check", Complete: true}})
	if flush != nil {
		flush()
	}
	_ = enc.Encode(map[string]any{"done": true, "result": types.GenerationResult{Text: "x = 2"}})
	if flush != nil {
		flush()
	}
	return nil
}

func (m *mockService) SolveSync(ctx context.Context, req types.SolveRequest) (types.GenerationResult, error) {
	if m.solveErr != nil {
		return types.GenerationResult{}, m.solveErr
	}
	return types.GenerationResult{Text: "x = 2", FinishReason: types.FinishStop}, nil
}

func (m *mockService) OptimizeForDevice(ctx context.Context, units types.ComputeUnit, quant types.QuantizationMode) error {
	if m.optimizeErr != nil {
		return m.optimizeErr
	}
	m.optimized = units
	m.quantized = quant
	return nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{ID: "m1.gguf"}, {ID: "m2.gguf"}}}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body map[string][]types.Model
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body["models"]) != 2 {
		t.Fatalf("models len=%d", len(body["models"]))
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{NativeSupported: true, State: "loaded"}}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.NativeSupported || body.State != "loaded" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &mockService{ready: false}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestSolveStreams(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{"problem":"Solve 2x + 3 = 7","stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Fatalf("content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 NDJSON lines, got %d: %q", len(lines), w.Body.String())
	}
	if !strings.Contains(lines[0], `"token"`) || !strings.Contains(lines[1], `"step"`) || !strings.Contains(lines[2], `"done"`) {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestSolveSync(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{"problem":"Solve 2x + 3 = 7"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var res types.GenerationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.Text != "x = 2" || res.FinishReason != types.FinishStop {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSolveValidation(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)

	// missing content type
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{"problem":"p"}`)))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}

	// malformed JSON
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{nope`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}

	// empty problem
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{"problem":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSolveErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"capability absent", native.ErrCapabilityAbsent(), http.StatusServiceUnavailable},
		{"http error", mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot},
		{"opaque", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{solveErr: tc.err}
			r := NewMux(svc)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/solve", bytes.NewBufferString(`{"problem":"p"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d want=%d", w.Code, tc.want)
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body.Code != tc.want {
				t.Fatalf("body code=%d", body.Code)
			}
		})
	}
}

func TestOptimizeHandler(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewBufferString(`{"compute_units":"cpu_only","quantization":"int4"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.optimized != types.ComputeCPUOnly {
		t.Fatalf("units=%q", svc.optimized)
	}
	if svc.quantized != types.QuantInt4 {
		t.Fatalf("quant=%q", svc.quantized)
	}
}

func TestOptimizeHandler_BadQuantization(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewBufferString(`{"quantization":"q4_k"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.quantized != "" {
		t.Fatalf("quant recorded on rejected request: %q", svc.quantized)
	}
}

func TestOptimizeHandler_BadUnits(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewBufferString(`{"compute_units":"gpu_warp"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestOptimizeHandler_CapabilityAbsent(t *testing.T) {
	svc := &mockService{optimizeErr: native.ErrCapabilityAbsent()}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	// prime the counters with one instrumented request
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "solverd_http_requests_total") {
		t.Fatalf("missing http metrics in exposition")
	}
}
