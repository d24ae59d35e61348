package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passThroughHandler(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestInputValidation_AllowsNormalRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header map[string]string
	}{
		{name: "search", target: "/search"},
		{name: "recommendations with track id", target: "/recommendations/3135556"},
		{name: "identify with request id header", target: "/identify",
			header: map[string]string{"X-Request-ID": "550e8400-e29b-41d4-a716-446655440000"}},
		{name: "path at the limit", target: "/" + strings.Repeat("a", maxPathLen-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := InputValidation()(passThroughHandler(&reached))

			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, reached)
		})
	}
}

func TestInputValidation_RejectsOversizedPath(t *testing.T) {
	reached := false
	handler := InputValidation()(passThroughHandler(&reached))

	req := httptest.NewRequest(http.MethodGet, "/"+strings.Repeat("a", maxPathLen+1), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestURITooLong, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "path too long")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestInputValidation_RejectsOversizedQuery(t *testing.T) {
	reached := false
	handler := InputValidation()(passThroughHandler(&reached))

	req := httptest.NewRequest(http.MethodGet, "/search?q="+strings.Repeat("x", maxQueryLen+1), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestURITooLong, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "query string too long")
}

func TestInputValidation_RejectsOversizedHeader(t *testing.T) {
	reached := false
	handler := InputValidation()(passThroughHandler(&reached))

	req := httptest.NewRequest(http.MethodPost, "/identify", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("h", maxHeaderValueLen+1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "header too large")
}

func TestInputValidation_HeaderValueAtLimitPasses(t *testing.T) {
	reached := false
	handler := InputValidation()(passThroughHandler(&reached))

	req := httptest.NewRequest(http.MethodPost, "/identify", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("h", maxHeaderValueLen))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}
