// Package gorilla implements router.Router on gorilla/mux.
package gorilla

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nimburion/itemservice/pkg/server/router"
)

// GorillaRouter registers each route with a method matcher on a mux.Router.
type GorillaRouter struct {
	router.Middlewares
	mux *mux.Router
}

// NewRouter creates a new GorillaRouter.
func NewRouter() *GorillaRouter {
	return &GorillaRouter{mux: mux.NewRouter()}
}

func (r *GorillaRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *GorillaRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *GorillaRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *GorillaRouter) handle(method, path string, h router.HandlerFunc, middleware []router.MiddlewareFunc) {
	chain := router.Chain(h, r.Snapshot(), middleware)
	template := router.ConvertParams(path, func(name string) string { return "{" + name + "}" })
	r.mux.HandleFunc(template, func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		router.Serve(router.NewExchange(w, req, path, func(name string) string { return vars[name] }), chain)
	}).Methods(method)
}
