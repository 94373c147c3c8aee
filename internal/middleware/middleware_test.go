package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseWriterDefaults(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	if rw.statusCode != http.StatusOK {
		t.Errorf("default status = %d, want 200", rw.statusCode)
	}
	if rw.bytesWritten != 0 {
		t.Errorf("bytesWritten = %d, want 0", rw.bytesWritten)
	}
	if rw.wroteHeader {
		t.Error("wroteHeader should start false")
	}
}

func TestResponseWriterWriteHeaderOnce(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("status = %d, the first WriteHeader should win", rw.statusCode)
	}
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	data := []byte(`{"items":[]}`)
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(data) || rw.bytesWritten != int64(len(data)) {
		t.Errorf("wrote %d, counted %d, want %d", n, rw.bytesWritten, len(data))
	}
	if !rw.wroteHeader {
		t.Error("implicit header should mark wroteHeader")
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
	}{
		{"regular request", "/api/search", DefaultLoggingConfig()},
		{"skipped prefix", "/metrics", LoggingConfig{SkipPaths: []string{"/metrics"}}},
		{"health check logged", "/healthz", LoggingConfig{LogHealthChecks: true}},
		{"health check skipped", "/healthz", LoggingConfig{LogHealthChecks: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})

			wrapped := Logger(tt.config)(handler)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest("GET", tt.path, http.NoBody))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			if w.Body.String() != "ok" {
				t.Errorf("body = %q, want ok", w.Body.String())
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"two\nlines", "two lines"},
		{"carriage\rreturn", "carriage return"},
		{"nul\x00byte", "nulbyte"},
		{"ansi\x1b[31mred", "ansi[31mred"},
		{"tab\tkept", "tab\tkept"},
	}

	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"x-forwarded-for", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"x-forwarded-for chain", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "203.0.113.9"},
		{"x-real-ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		acceptEncoding string
		wantGzip       bool
	}{
		{"large json", strings.Repeat(`{"id":"f"}`, 200), "application/json", "gzip", true},
		{"small response", `{"items":[]}`, "application/json", "gzip", false},
		{"jpeg stays raw", strings.Repeat("x", 4096), "image/jpeg", "gzip", false},
		{"no gzip support", strings.Repeat(`{"id":"f"}`, 200), "application/json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			})

			wrapped := Compression(DefaultCompressionConfig())(handler)
			req := httptest.NewRequest("GET", "/api/search", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			gotGzip := w.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}

			body := w.Body.Bytes()
			if gotGzip {
				gr, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer gr.Close()
				body, err = io.ReadAll(gr)
				if err != nil {
					t.Fatalf("decompress: %v", err)
				}
			}
			if string(body) != tt.body {
				t.Error("round-tripped body does not match the original")
			}
		})
	}
}

func TestCompressionBuffersSmallWrites(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 50; i++ {
			w.Write([]byte(strings.Repeat(`{"id":1}`, 10)))
		}
	})

	wrapped := Compression(DefaultCompressionConfig())(handler)
	req := httptest.NewRequest("GET", "/api/search", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("many small writes crossing the threshold should compress")
	}
}

func TestDefaultMetricsConfigSkipsProbes(t *testing.T) {
	config := DefaultMetricsConfig()
	for _, path := range []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"} {
		found := false
		for _, skip := range config.SkipPaths {
			if skip == path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s missing from default SkipPaths", path)
		}
	}
}

func TestMetricsMiddlewarePassthrough(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		wrapped := Metrics(MetricsConfig{})(handler)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", http.NoBody))

		if w.Code != status {
			t.Errorf("status = %d, want %d", w.Code, status)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/search", "/api/search"},
		{"/api/search/async/start", "/api/search/async/start"},
		{"/api/search/async/3f2a", "/api/search/async/{job_id}"},
		{"/api/search/async/3f2a/status", "/api/search/async/{job_id}/status"},
		{"/api/files/abc123", "/api/files/{id}"},
		{"/api/stats", "/api/stats"},
		{"/", "/"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestNormalizePathBoundsCardinality(t *testing.T) {
	jobPaths := []string{
		"/api/search/async/3f2a0c",
		"/api/search/async/9d1b77",
		"/api/search/async/000000",
	}
	for _, path := range jobPaths {
		if got := normalizePath(path); got != "/api/search/async/{job_id}" {
			t.Errorf("normalizePath(%q) = %q, job ids must collapse to one label", path, got)
		}
	}
}
