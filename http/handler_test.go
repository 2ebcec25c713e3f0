package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleWithCORS(t *testing.T) {
	var called bool
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/units", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		require.False(t, called)
	})

	t.Run("request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		require.True(t, called)
	})
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleVersion("v1.2.3").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "v1.2.3", rec.Body.String())
}

func TestMetricsPathFormatter(t *testing.T) {
	tests := []struct {
		status   int
		path     string
		expected string
	}{
		{status: http.StatusOK, path: "/map", expected: "/map"},
		{status: http.StatusNoContent, path: "/units/12", expected: "/units/{id}"},
		{status: http.StatusNotFound, path: "/units/12", expected: ""},
		{status: http.StatusBadRequest, path: "/heights", expected: ""},
		{status: http.StatusMethodNotAllowed, path: "/map", expected: ""},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			require.Equal(t, test.expected, MetricsPathFormatter(test.status, test.path))
		})
	}
}
