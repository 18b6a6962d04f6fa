package kos

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

func guarded(cfg config.KOSConfig) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(quietLogger())
	guard := NewWriteGuard(&config.Config{KOS: cfg})
	e.POST("/write", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, guard.Require())
	return e
}

func post(e *echo.Echo, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	if token != "" {
		req.Header.Set(AuthTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestWriteGuard_Token(t *testing.T) {
	e := guarded(config.KOSConfig{AuthToken: "abc"})

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid", "abc", http.StatusNoContent},
		{"missing", "", http.StatusBadRequest},
		{"wrong", "abd", http.StatusBadRequest},
		{"prefix", "ab", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(e, tt.token))
		})
	}
}

func TestWriteGuard_NoTokenConfigured(t *testing.T) {
	e := guarded(config.KOSConfig{})
	assert.Equal(t, http.StatusBadRequest, post(e, ""))
	assert.Equal(t, http.StatusBadRequest, post(e, "anything"))
}

func TestWriteGuard_RateLimit(t *testing.T) {
	e := guarded(config.KOSConfig{AuthToken: "abc", MutationRate: 0.001, MutationBurst: 2})

	assert.Equal(t, http.StatusNoContent, post(e, "abc"))
	assert.Equal(t, http.StatusNoContent, post(e, "abc"))
	assert.Equal(t, http.StatusTooManyRequests, post(e, "abc"))

	// rejected tokens do not consume the budget
	assert.Equal(t, http.StatusBadRequest, post(e, "nope"))
}
