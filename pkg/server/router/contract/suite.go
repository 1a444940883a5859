// Package contract holds the conformance suite every router adapter must pass.
package contract

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/server/router"
)

// Factory builds a fresh, empty router for each case.
type Factory func() router.Router

// TestRouterContract checks routing, middleware order, parameters, binding and
// error handling against the router built by newRouter.
func TestRouterContract(t *testing.T, newRouter Factory) {
	t.Helper()

	t.Run("routing", func(t *testing.T) { testRouting(t, newRouter()) })
	t.Run("middleware_order", func(t *testing.T) { testMiddlewareOrder(t, newRouter()) })
	t.Run("middleware_short_circuit", func(t *testing.T) { testShortCircuit(t, newRouter()) })
	t.Run("params", func(t *testing.T) { testParams(t, newRouter()) })
	t.Run("route_pattern", func(t *testing.T) { testRoutePattern(t, newRouter()) })
	t.Run("bind", func(t *testing.T) { testBind(t, newRouter()) })
	t.Run("responses", func(t *testing.T) { testResponses(t, newRouter()) })
	t.Run("values", func(t *testing.T) { testValues(t, newRouter()) })
	t.Run("unhandled_errors", func(t *testing.T) { testUnhandledErrors(t, newRouter()) })
	t.Run("response_writer", func(t *testing.T) { testResponseWriter(t, newRouter()) })
}

func text(code int, body string) router.HandlerFunc {
	return func(c router.Context) error { return c.String(code, body) }
}

func testRouting(t *testing.T, r router.Router) {
	r.GET("/", text(http.StatusOK, "root"))
	r.GET("/item/:id", func(c router.Context) error { return c.String(http.StatusOK, "item "+c.Param("id")) })
	r.POST("/item", text(http.StatusCreated, "created"))

	cases := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/", http.StatusOK, "root"},
		{http.MethodGet, "/item/7", http.StatusOK, "item 7"},
		{http.MethodPost, "/item", http.StatusCreated, "created"},
		{http.MethodGet, "/item", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		res := Do(r, tc.method, tc.path, nil, "")
		assert.Equal(t, tc.code, res.Code, "%s %s", tc.method, tc.path)
		if tc.body != "" {
			assert.Equal(t, tc.body, res.Body.String(), "%s %s", tc.method, tc.path)
		}
	}
}

func testMiddlewareOrder(t *testing.T, r router.Router) {
	var order []string
	trace := func(name string) router.MiddlewareFunc {
		return func(next router.HandlerFunc) router.HandlerFunc {
			return func(c router.Context) error {
				order = append(order, name)
				return next(c)
			}
		}
	}

	r.Use(trace("global-1"), trace("global-2"))
	r.GET("/m", func(c router.Context) error {
		order = append(order, "handler")
		return c.String(http.StatusOK, "ok")
	}, trace("route"))

	res := Do(r, http.MethodGet, "/m", nil, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"global-1", "global-2", "route", "handler"}, order)
}

func testShortCircuit(t *testing.T, r router.Router) {
	called := false
	r.GET("/stop", func(c router.Context) error {
		called = true
		return c.String(http.StatusOK, "never")
	}, func(router.HandlerFunc) router.HandlerFunc {
		return func(router.Context) error { return errors.New("stop") }
	})

	res := Do(r, http.MethodGet, "/stop", nil, "")
	assert.False(t, called, "handler must not run when middleware fails")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func testParams(t *testing.T, r router.Router) {
	r.GET("/item/:id", func(c router.Context) error {
		assert.Empty(t, c.Param("missing"))
		return c.String(http.StatusOK, c.Param("id"))
	})
	r.GET("/users/:userId/posts/:postId", func(c router.Context) error {
		return c.String(http.StatusOK, c.Param("userId")+":"+c.Param("postId"))
	})
	r.GET("/q", func(c router.Context) error { return c.String(http.StatusOK, c.Query("q")) })

	assert.Equal(t, "42", Do(r, http.MethodGet, "/item/42", nil, "").Body.String())
	assert.Equal(t, "abc-DEF_1", Do(r, http.MethodGet, "/item/abc-DEF_1", nil, "").Body.String())
	assert.Equal(t, "u1:p9", Do(r, http.MethodGet, "/users/u1/posts/p9", nil, "").Body.String())
	assert.NotEqual(t, http.StatusOK, Do(r, http.MethodGet, "/item/", nil, "").Code, "empty parameter must not match")
	assert.Equal(t, "one", Do(r, http.MethodGet, "/q?q=one", nil, "").Body.String())
	assert.Empty(t, Do(r, http.MethodGet, "/q", nil, "").Body.String())
}

func testRoutePattern(t *testing.T, r router.Router) {
	seen := ""
	r.Use(func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			seen = c.Route()
			return next(c)
		}
	})
	r.GET("/item/:id", func(c router.Context) error { return c.String(http.StatusOK, c.Route()) })

	res := Do(r, http.MethodGet, "/item/42", nil, "")
	assert.Equal(t, "/item/:id", res.Body.String())
	assert.Equal(t, "/item/:id", seen)
}

func testBind(t *testing.T, r router.Router) {
	r.POST("/bind", func(c router.Context) error {
		var payload map[string]interface{}
		err := c.Bind(&payload)
		switch {
		case errors.Is(err, router.ErrUnsupportedMediaType):
			return c.String(http.StatusUnsupportedMediaType, "media-type")
		case errors.Is(err, router.ErrEmptyBody):
			return c.String(http.StatusBadRequest, "empty")
		case err != nil:
			return c.String(http.StatusBadRequest, "bind-error")
		}
		if n, ok := payload["n"].(json.Number); ok {
			return c.String(http.StatusOK, n.String())
		}
		return c.String(http.StatusOK, "not-a-number")
	})

	cases := []struct {
		name, body, contentType string
		code                    int
		want                    string
	}{
		{"number literal kept", `{"n": 12345678901234567890.10}`, "application/json", http.StatusOK, "12345678901234567890.10"},
		{"charset parameter", `{"n": 1}`, "application/json; charset=utf-8", http.StatusOK, "1"},
		{"invalid json", "{", "application/json", http.StatusBadRequest, "bind-error"},
		{"trailing data", `{"n": 1} {"n": 2}`, "application/json", http.StatusBadRequest, "bind-error"},
		{"empty body", "", "application/json", http.StatusBadRequest, "empty"},
		{"unsupported content type", "n=1", "text/plain", http.StatusUnsupportedMediaType, "media-type"},
		{"missing content type", `{"n": 1}`, "", http.StatusUnsupportedMediaType, "media-type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			res := Do(r, http.MethodPost, "/bind", body, tc.contentType)
			assert.Equal(t, tc.code, res.Code)
			assert.Equal(t, tc.want, res.Body.String())
		})
	}
}

func testResponses(t *testing.T, r router.Router) {
	r.GET("/json", func(c router.Context) error {
		return c.JSON(http.StatusCreated, map[string]string{"message": "Item created successfully"})
	})
	r.GET("/string", text(http.StatusOK, "Hello, World!"))

	res := Do(r, http.MethodGet, "/json", nil, "")
	assert.Equal(t, http.StatusCreated, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"message":"Item created successfully"}`, res.Body.String())

	res = Do(r, http.MethodGet, "/string", nil, "")
	assert.Contains(t, res.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Hello, World!", res.Body.String())
}

func testValues(t *testing.T, r router.Router) {
	r.Use(func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			c.Set("from_mw", "yes")
			return next(c)
		}
	})
	r.GET("/ctx", func(c router.Context) error {
		assert.Nil(t, c.Get("missing"))
		assert.Equal(t, "yes", c.Get("from_mw"))
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, Do(r, http.MethodGet, "/ctx", nil, "").Code)
}

func testUnhandledErrors(t *testing.T, r router.Router) {
	r.GET("/fail", func(router.Context) error { return errors.New("secret detail") })
	r.GET("/written", func(c router.Context) error {
		if err := c.String(http.StatusBadRequest, "bad"); err != nil {
			return err
		}
		return errors.New("ignored")
	})

	res := Do(r, http.MethodGet, "/fail", nil, "")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), "secret detail")
	assert.JSONEq(t, `{"error":"internal server error"}`, res.Body.String())

	res = Do(r, http.MethodGet, "/written", nil, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "bad", res.Body.String())
}

func testResponseWriter(t *testing.T, r router.Router) {
	r.GET("/rw", func(c router.Context) error {
		rw := c.Response()
		require.False(t, rw.Written())
		assert.Equal(t, http.StatusOK, rw.Status())
		rw.WriteHeader(http.StatusAccepted)
		assert.True(t, rw.Written())
		assert.Equal(t, http.StatusAccepted, rw.Status())
		return nil
	})

	assert.Equal(t, http.StatusAccepted, Do(r, http.MethodGet, "/rw", nil, "").Code)
}

// Do sends one request through h and records the response.
func Do(h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
