// Package gin implements router.Router on gin-gonic/gin.
package gin

import (
	"net/http"

	ginpkg "github.com/gin-gonic/gin"

	"github.com/nimburion/itemservice/pkg/server/router"
)

// GinRouter registers routes on a bare gin engine. Gin's own middleware,
// logging and recovery included, is not installed.
type GinRouter struct {
	router.Middlewares
	engine *ginpkg.Engine
}

// NewRouter creates a GinRouter in release mode that answers 405 for known paths.
func NewRouter() *GinRouter {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	engine := ginpkg.New()
	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = false
	return &GinRouter{engine: engine}
}

func (r *GinRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *GinRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *GinRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *GinRouter) handle(method, path string, h router.HandlerFunc, middleware []router.MiddlewareFunc) {
	chain := router.Chain(h, r.Snapshot(), middleware)
	r.engine.Handle(method, path, func(gc *ginpkg.Context) {
		router.Serve(router.NewExchange(gc.Writer, gc.Request, path, gc.Param), chain)
	})
}
