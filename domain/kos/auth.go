package kos

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

// AuthTokenHeader carries the shared secret required by mutating routes.
const AuthTokenHeader = "X-KOS-Auth-Token"

// WriteGuard checks the auth token and rate limits mutating requests.
type WriteGuard struct {
	token   string
	limiter *rate.Limiter
}

// NewWriteGuard creates a guard from the KOS configuration. A zero mutation rate disables limiting.
func NewWriteGuard(cfg *config.Config) *WriteGuard {
	g := &WriteGuard{token: cfg.KOS.AuthToken}
	if cfg.KOS.MutationRate > 0 {
		burst := cfg.KOS.MutationBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.KOS.MutationRate), burst)
	}
	return g
}

// Require returns middleware enforcing the guard.
func (g *WriteGuard) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(AuthTokenHeader)
			if g.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(g.token)) != 1 {
				return apperror.ErrMissingAuthToken
			}
			if g.limiter != nil && !g.limiter.Allow() {
				return apperror.ErrTooManyRequests
			}
			return next(c)
		}
	}
}
