// Package requestsize caps request body size.
package requestsize

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nimburion/itemservice/pkg/server/router"
)

// Middleware answers 413 for bodies larger than limit bytes.
// A declared Content-Length over the limit is refused before the handler
// runs. Otherwise the body is wrapped so Bind fails with *http.MaxBytesError,
// which is mapped to 413 unless the handler already wrote a response.
// A limit of zero or less turns the check off.
func Middleware(limit int64) router.MiddlewareFunc {
	if limit <= 0 {
		return func(next router.HandlerFunc) router.HandlerFunc { return next }
	}
	tooLarge := map[string]string{
		"error": fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit),
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if req == nil || req.Body == nil {
				return next(c)
			}
			if req.ContentLength > limit {
				return c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
			c.SetRequest(req)

			err := next(c)
			if overflow := new(http.MaxBytesError); errors.As(err, &overflow) && !c.Response().Written() {
				return c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			}
			return err
		}
	}
}
