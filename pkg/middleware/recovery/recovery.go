// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// Recovery creates middleware that recovers from panics in HTTP handlers.
// The panic value and stack are logged; the client only sees
// {"error":"internal server error"}. http.ErrAbortHandler is re-panicked
// so net/http can abort the connection.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				log.WithContext(c.Request().Context()).Error("panic recovered",
					"method", c.Request().Method,
					"route", c.Route(),
					"panic", r,
					"stack", string(debug.Stack()),
				)

				router.WriteUnhandledError(c.Response())
			}()

			return next(c)
		}
	}
}
