package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func doRequest(h http.Handler, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "203.0.113.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	t.Run("normalizes and restores body", func(t *testing.T) {
		body := `{"email":"  Alice@Example.com ","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Equal(t, "alice@example.com", httpx.JSONFieldKeyExtractor("email")(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("non json body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=bob"))
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))
	})

	t.Run("non string field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42}`))
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	extractor := httpx.CompositeKeyExtractor(":",
		httpx.IPKeyExtractor,
		httpx.JSONFieldKeyExtractor("email"),
	)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"alice@example.com"}`))
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1:alice@example.com", extractor(req))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1", extractor(req), "empty parts are skipped")
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks requests over limit", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3})(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, doRequest(h, "192.168.1.1:1", "").Code, "request %d", i+1)
		}

		rec := doRequest(h, "192.168.1.1:1", "")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})(okHandler)

		require.Equal(t, http.StatusOK, doRequest(h, "192.168.1.1:1", "").Code)
		require.Equal(t, http.StatusTooManyRequests, doRequest(h, "192.168.1.1:1", "").Code)
		require.Equal(t, http.StatusOK, doRequest(h, "192.168.1.2:1", "").Code)
	})

	t.Run("ip and email share a bucket per pair", func(t *testing.T) {
		h := httpx.RateLimitByIPAndJSONField(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, "email")(okHandler)

		require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1", `{"email":"a@x.io"}`).Code)
		require.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1", `{"email":"A@x.io"}`).Code)
		require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1", `{"email":"b@x.io"}`).Code)
	})

	t.Run("reject hooks fire", func(t *testing.T) {
		var rejected atomic.Int32
		h := httpx.RateLimitByIP(
			httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1},
			func(*http.Request) { rejected.Add(1) },
		)(okHandler)

		doRequest(h, "10.0.0.9:1", "")
		doRequest(h, "10.0.0.9:1", "")
		doRequest(h, "10.0.0.9:1", "")
		require.EqualValues(t, 2, rejected.Load())
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(
			httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1},
			func(*http.Request) string { return "" },
		)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, doRequest(h, "", "").Code)
		}
	})
}

func TestDefaultRateLimits(t *testing.T) {
	limits := httpx.DefaultRateLimits()

	for name, config := range map[string]httpx.RateLimitConfig{
		"strict":   limits.Strict,
		"moderate": limits.Moderate,
		"public":   limits.Public,
	} {
		require.Greater(t, config.RequestsPerWindow, 0, name)
		require.Greater(t, config.Window, time.Duration(0), name)
		require.Greater(t, config.Burst, 0, name)
	}

	require.Less(t, limits.Strict.RequestsPerWindow, limits.Moderate.RequestsPerWindow)
	require.Less(t, limits.Moderate.RequestsPerWindow, limits.Public.RequestsPerWindow)
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1000000, Window: time.Minute, Burst: 1000})(okHandler)

	b.ResetTimer()
	for range b.N {
		doRequest(h, "192.168.1.1:12345", "")
	}
}
