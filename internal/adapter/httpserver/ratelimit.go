package httpserver

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/shunguan/voteable/internal/adapter/metrics"
	apperrors "github.com/shunguan/voteable/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits requests per client IP. Rejections answer 429 with a rate_limited error body.
func newRateLimiter(ratePerSecond float64, burst int, m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		// The limiter hands the deny result to c.Error and never returns it up
		// the chain, so the response is written here.
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			e := apperrors.RateLimitedError("rate limit exceeded").WithContext("client_ip", identifier)
			logError(c, e)
			m.ObserveRateLimited(c.Path())
			m.ObserveError(string(e.Type), e.Code)
			if err := c.JSON(e.HTTPStatus(), e.ToResponse()); err != nil {
				return fmt.Errorf("failed to write rate limit response: %w", err)
			}
			return nil
		},
	})
}
