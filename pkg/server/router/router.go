// Package router defines the routing abstraction the servers are built on.
// Adapters in the gin, gorilla and nethttp subpackages implement it.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// Router registers handlers by method and path. Paths use :name segments for parameters.
// Global middleware is captured when a route is registered, so Use comes first.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	Use(middleware ...MiddlewareFunc)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc handles one request. A returned error that left the response
// unwritten becomes a generic 500.
type HandlerFunc func(Context) error

// MiddlewareFunc decorates a HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context is the per-request view handed to handlers and middleware.
type Context interface {
	Request() *http.Request
	// SetRequest replaces the request seen by later middleware and the handler.
	SetRequest(r *http.Request)
	Response() ResponseWriter
	// SetResponse replaces the writer, e.g. with one that records the body.
	SetResponse(w ResponseWriter)

	// Route is the registered pattern, e.g. /item/:id.
	Route() string
	Param(name string) string
	Query(name string) string

	// Bind decodes the JSON body into v, see DecodeJSON.
	Bind(v interface{}) error
	JSON(code int, v interface{}) error
	String(code int, s string) error

	// Get and Set carry values between middleware and handler for one request.
	Get(key string) interface{}
	Set(key string, value interface{})
}

// ResponseWriter is an http.ResponseWriter that remembers the status it sent.
type ResponseWriter interface {
	http.ResponseWriter
	// Status is the written status, or 200 before anything was written.
	Status() int
	Written() bool
}

var (
	// ErrEmptyBody is returned by Bind when the request carries no body.
	ErrEmptyBody = errors.New("request body is empty")
	// ErrUnsupportedMediaType is returned by Bind for non-JSON content types.
	ErrUnsupportedMediaType = errors.New("unsupported content type")
)

// DecodeJSON decodes exactly one JSON value from the request body into v.
// Numbers decoded into interface values are kept as json.Number.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}
	defer r.Body.Close()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != "application/json" && !isJSONSuffix(mediaType)) {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, r.Header.Get("Content-Type"))
	}

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after top-level JSON value")
	}
	return nil
}

func isJSONSuffix(mediaType string) bool {
	return len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json"
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// WriteString writes s as a plain text response.
func WriteString(w http.ResponseWriter, code int, s string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, err := io.WriteString(w, s)
	return err
}

// WriteUnhandledError answers a request whose handler returned an error without responding.
// The error text is not exposed.
func WriteUnhandledError(w ResponseWriter) {
	if w.Written() {
		return
	}
	_ = WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
