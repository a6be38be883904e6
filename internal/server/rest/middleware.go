package rest

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/auth"
	"github.com/dmitrijs2005/bloghub/internal/server/metrics"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// requestIDMiddleware takes the request id from the header or mints one, and
// propagates it through the request context and the response header.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(common.RequestIDHeaderName)
			if !validRequestID(id) {
				id = uuid.NewString()
			}

			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			c.Response().Header().Set(common.RequestIDHeaderName, id)

			return next(c)
		}
	}
}

// maxRequestIDLen bounds a client-supplied request id.
const maxRequestIDLen = 64

// validRequestID accepts short ids made of letters, digits, '-', '_' and '.'.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// accessLogMiddleware logs one line per request and records its latency.
func accessLogMiddleware(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let echo write the response so the status is final
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			elapsed := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(req.Method, route, status, elapsed)

			args := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"latency_ms", elapsed.Milliseconds(),
			}
			if status >= 500 {
				if err != nil {
					args = append(args, "error", err)
				}
				log.Error(req.Context(), "request failed", args...)
			} else {
				log.Info(req.Context(), "request completed", args...)
			}
			return nil
		}
	}
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller identity in the echo context.
func requireAuth(users UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(common.AuthorizationHeaderName)
			token, ok := strings.CutPrefix(header, common.BearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				return errorResponse(common.ErrorUnauthorized)
			}

			id, err := users.Authenticate(c.Request().Context(), strings.TrimSpace(token))
			if err != nil {
				return errorResponse(err)
			}

			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func identity(c echo.Context) *auth.Identity {
	id, _ := c.Get(identityKey).(*auth.Identity)
	return id
}
