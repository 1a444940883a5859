package router

import (
	"net/http"
	"strings"
	"sync"
)

// ParamFunc looks up a path parameter captured by an adapter's matcher.
type ParamFunc func(name string) string

// Exchange is the Context implementation shared by the adapters. Only path
// parameter lookup differs between them.
type Exchange struct {
	req    *http.Request
	resp   ResponseWriter
	route  string
	param  ParamFunc
	values map[string]interface{}
}

// NewExchange wraps w so the response status is tracked.
func NewExchange(w http.ResponseWriter, r *http.Request, route string, param ParamFunc) *Exchange {
	if param == nil {
		param = func(string) string { return "" }
	}
	return &Exchange{req: r, resp: NewStatusWriter(w), route: route, param: param}
}

func (e *Exchange) Request() *http.Request { return e.req }
func (e *Exchange) SetRequest(r *http.Request) { e.req = r }
func (e *Exchange) Response() ResponseWriter { return e.resp }
func (e *Exchange) SetResponse(w ResponseWriter) { e.resp = w }
func (e *Exchange) Route() string { return e.route }
func (e *Exchange) Param(name string) string { return e.param(name) }
func (e *Exchange) Query(name string) string { return e.req.URL.Query().Get(name) }
func (e *Exchange) Bind(v interface{}) error { return DecodeJSON(e.req, v) }
func (e *Exchange) String(code int, s string) error { return WriteString(e.resp, code, s) }

func (e *Exchange) JSON(code int, v interface{}) error {
	return WriteJSON(e.resp, code, v)
}

func (e *Exchange) Get(key string) interface{} {
	return e.values[key]
}

func (e *Exchange) Set(key string, value interface{}) {
	if e.values == nil {
		e.values = make(map[string]interface{})
	}
	e.values[key] = value
}

// Serve runs h and answers 500 when it fails before writing a response.
func Serve(c Context, h HandlerFunc) {
	if err := h(c); err != nil {
		WriteUnhandledError(c.Response())
	}
}

// Chain wraps h so that global middleware runs first, then route middleware, in order.
func Chain(h HandlerFunc, global, route []MiddlewareFunc) HandlerFunc {
	for i := len(route) - 1; i >= 0; i-- {
		h = route[i](h)
	}
	for i := len(global) - 1; i >= 0; i-- {
		h = global[i](h)
	}
	return h
}

// Middlewares holds an adapter's global middleware. Embedding it provides Use.
type Middlewares struct {
	mu   sync.Mutex
	list []MiddlewareFunc
}

// Use appends middleware for routes registered afterwards.
func (m *Middlewares) Use(middleware ...MiddlewareFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, middleware...)
}

// Snapshot returns a copy of the middleware registered so far.
func (m *Middlewares) Snapshot() []MiddlewareFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MiddlewareFunc(nil), m.list...)
}

// ConvertParams rewrites :name segments with wrap, e.g. to {name} for ServeMux and gorilla.
func ConvertParams(path string, wrap func(name string) string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = wrap(seg[1:])
		}
	}
	return strings.Join(segments, "/")
}
