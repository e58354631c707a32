package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery_NoPanic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Recovery(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}

func TestRecovery_Panic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    any
		wantText string
	}{
		{name: "string value", value: "test panic", wantText: "test panic"},
		{name: "non-string value", value: 42, wantText: "error=42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", http.NoBody)
			req.Header.Set(requestIDHeader, "req-42")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := RequestLog(slog.New(slog.DiscardHandler))(
				Recovery(logger)(func(_ echo.Context) error {
					panic(tt.value)
				}),
			)

			require.NoError(t, handler(c))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t,
				`{"title":"Internal Server Error","status":500,"detail":"internal server error"}`,
				rec.Body.String(),
			)

			logOutput := buf.String()
			assert.Contains(t, logOutput, "panic recovered")
			assert.Contains(t, logOutput, tt.wantText)
			assert.Contains(t, logOutput, "path=/api/v1/extract")
			assert.Contains(t, logOutput, "request_id=req-42")
			assert.Contains(t, logOutput, "stack=")
		})
	}
}

func TestRecovery_PanicAfterCommit(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stream", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Recovery(slog.New(slog.DiscardHandler))(func(c echo.Context) error {
		_ = c.String(http.StatusOK, "partial")
		panic("late")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}
