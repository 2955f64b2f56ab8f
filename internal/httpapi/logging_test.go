package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"bogus": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%d want %d", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest("POST", "/solve?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override: got %d", got)
	}
	r = httptest.NewRequest("POST", "/solve?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("legacy numeric override: got %d", got)
	}
	r = httptest.NewRequest("POST", "/solve", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override: got %d", got)
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	lw := &loggingLineWriter{}
	if _, err := lw.Write([]byte("{\"token\":\"a\"}\n{\"to")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := lw.Write([]byte("ken\":\"b\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(lw.buf) != 0 {
		t.Fatalf("expected drained buffer, got %q", lw.buf)
	}
}
