// Package metrics records Prometheus request series for the public API.
package metrics

import (
	"net/http"
	"time"

	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// Metrics observes every request under its route pattern. A handler error
// that left nothing written is counted as the 500 the router will send.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			done := metrics.TrackInFlight()
			defer done()

			start := time.Now()
			err := next(c)

			rw := c.Response()
			status := rw.Status()
			if err != nil && !rw.Written() {
				status = http.StatusInternalServerError
			}
			metrics.ObserveRequest(c.Request().Method, c.Route(), status, time.Since(start))
			return err
		}
	}
}
