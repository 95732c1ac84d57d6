package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/intelflow/internal/metrics"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "inner")
	})

	handler := Chain(inner, tag("first"), tag("second"), tag("third"))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	// 第一个中间件在最外层
	assert.Equal(t, []string{"first", "second", "third", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	t.Run("generates id and injects context", func(t *testing.T) {
		var ctxID string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = RequestIDFromContext(r.Context())
		})

		handler := RequestID()(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		handler.ServeHTTP(w, r)

		headerID := w.Header().Get("X-Request-ID")
		assert.NotEmpty(t, headerID)
		assert.True(t, len(headerID) > 4 && headerID[:4] == "req-")
		assert.Equal(t, headerID, ctxID)
	})

	t.Run("preserves client provided id", func(t *testing.T) {
		var ctxID string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = RequestIDFromContext(r.Context())
		})

		handler := RequestID()(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "client-supplied-id")
		handler.ServeHTTP(w, r)

		assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "client-supplied-id", ctxID)
	})
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestRecovery(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	handler := Recovery(zaptest.NewLogger(t))(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestAPIKeyAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	skipPaths := []string{"/health", "/metrics"}

	t.Run("disabled when no keys configured", func(t *testing.T) {
		handler := APIKeyAuth(nil, skipPaths, zaptest.NewLogger(t))(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/questions", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid key passes", func(t *testing.T) {
		handler := APIKeyAuth([]string{"secret-1", "secret-2"}, skipPaths, zaptest.NewLogger(t))(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/questions", nil)
		r.Header.Set("X-API-Key", "secret-2")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		handler := APIKeyAuth([]string{"secret-1"}, skipPaths, zaptest.NewLogger(t))(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/questions", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		handler := APIKeyAuth([]string{"secret-1"}, skipPaths, zaptest.NewLogger(t))(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/questions", nil)
		r.Header.Set("X-API-Key", "wrong")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skip paths bypass auth", func(t *testing.T) {
		handler := APIKeyAuth([]string{"secret-1"}, skipPaths, zaptest.NewLogger(t))(inner)

		for _, path := range skipPaths {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, path, nil)
			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code, "path %s should not require a key", path)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	// rps 1、burst 2：同一 IP 前两个请求放行，第三个被限
	handler := RateLimiter(ctx, 1, 2, zaptest.NewLogger(t))(inner)

	do := func(remoteAddr string) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		r.RemoteAddr = remoteAddr
		handler.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1234"))

	// 其他 IP 独立令牌桶
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234"))
}

func TestCORS(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin gets cors headers", func(t *testing.T) {
		handler := CORS([]string{"https://app.example.com"})(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		r.Header.Set("Origin", "https://app.example.com")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	})

	t.Run("unlisted origin gets no cors headers", func(t *testing.T) {
		handler := CORS([]string{"https://app.example.com"})(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight for allowed origin", func(t *testing.T) {
		handler := CORS([]string{"https://app.example.com"})(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/questions", nil)
		r.Header.Set("Origin", "https://app.example.com")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight rejected when origins unconfigured", func(t *testing.T) {
		handler := CORS(nil)(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/questions", nil)
		r.Header.Set("Origin", "https://app.example.com")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("same origin request passes unchanged", func(t *testing.T) {
		handler := CORS(nil)(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/v1/questions", "/api/v1/questions"},
		{"/api/v1/runs", "/api/v1/runs"},
		{"/api/v1/runs/0b96a7a2-8a8b-4b9e-9c40-3a1f6f0a6e21", "/api/v1/runs/:id"},
		{"/api/v1/runs/0b96a7a2-8a8b-4b9e-9c40-3a1f6f0a6e21/events", "/api/v1/runs/:id/events"},
		{"/api/v1/runs/12345", "/api/v1/runs/:id"},
		{"/api/v1/runs/deadbeefcafe", "/api/v1/runs/:id"},
		{"/api/v1/runs/abc", "/api/v1/runs/abc"},
		{"/api/v1/unknown", "/api/v1/unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.path), "path %s", tt.path)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	collector := metrics.NewCollector("mwtest", zaptest.NewLogger(t))

	t.Run("explicit status preserved", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("short and stout"))
		})
		handler := MetricsMiddleware(collector)(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/runs/12345", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "short and stout", w.Body.String())
	})

	t.Run("implicit 200 on bare write", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
		handler := MetricsMiddleware(collector)(inner)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})
}
