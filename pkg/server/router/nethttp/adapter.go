// Package nethttp implements router.Router on the standard library ServeMux.
package nethttp

import (
	"net/http"

	"github.com/nimburion/itemservice/pkg/server/router"
)

// NetHTTPRouter registers routes as method patterns on an http.ServeMux.
// ServeMux answers 405 with an Allow header when only the method differs.
type NetHTTPRouter struct {
	router.Middlewares
	mux *http.ServeMux
}

// NewRouter creates a new NetHTTPRouter.
func NewRouter() *NetHTTPRouter {
	return &NetHTTPRouter{mux: http.NewServeMux()}
}

func (r *NetHTTPRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *NetHTTPRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *NetHTTPRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *NetHTTPRouter) handle(method, path string, h router.HandlerFunc, middleware []router.MiddlewareFunc) {
	chain := router.Chain(h, r.Snapshot(), middleware)
	r.mux.HandleFunc(method+" "+muxPattern(path), func(w http.ResponseWriter, req *http.Request) {
		router.Serve(router.NewExchange(w, req, path, req.PathValue), chain)
	})
}

// muxPattern turns /item/:id into /item/{id}. The root path is anchored with {$}
// because a bare "/" pattern matches every path.
func muxPattern(path string) string {
	if path == "/" {
		return "/{$}"
	}
	return router.ConvertParams(path, func(name string) string { return "{" + name + "}" })
}
