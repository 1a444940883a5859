package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/server/router/nethttp"
)

var largeItem = map[string]string{
	"ID":          "42",
	"description": strings.Repeat("a widget with a long description ", 20),
}

func itemRouter(cfg Config) http.Handler {
	r := nethttp.NewRouter()
	r.Use(Middleware(cfg))
	r.GET("/item/:id", func(c router.Context) error {
		switch c.Param("id") {
		case "missing":
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Item not found"})
		case "broken":
			return errors.New("store unreachable")
		}
		return c.JSON(http.StatusOK, largeItem)
	})
	r.GET("/", func(c router.Context) error { return c.String(http.StatusOK, "Hello, World!") })
	return r
}

func fetch(h http.Handler, method, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, encoding string, body []byte) string {
	t.Helper()
	var r io.Reader
	switch encoding {
	case encodingBrotli:
		r = brotli.NewReader(bytes.NewReader(body))
	case encodingGzip:
		gz, err := gzip.NewReader(bytes.NewReader(body))
		require.NoError(t, err)
		r = gz
	default:
		return string(body)
	}
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(plain)
}

func TestMiddleware_Negotiation(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		cfg    func(*Config)
		want   string
	}{
		{name: "prefers brotli", accept: "gzip, br", want: encodingBrotli},
		{name: "gzip only", accept: "gzip", want: encodingGzip},
		{name: "q-values win over preference", accept: "br;q=0.2, gzip;q=0.8", want: encodingGzip},
		{name: "refused brotli", accept: "br;q=0, gzip", want: encodingGzip},
		{name: "wildcard", accept: "*", want: encodingBrotli},
		{name: "identity only", accept: "identity"},
		{name: "no header"},
		{name: "brotli disabled", accept: "br, gzip", cfg: func(c *Config) { c.Brotli = false }, want: encodingGzip},
		{name: "middleware disabled", accept: "br, gzip", cfg: func(c *Config) { c.Enabled = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			rec := fetch(itemRouter(cfg), http.MethodGet, "/item/42", tt.accept)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, decode(t, tt.want, rec.Body.Bytes()), largeItem["description"])
		})
	}
}

func TestMiddleware_LeavesResponsesPlain(t *testing.T) {
	h := itemRouter(DefaultConfig())

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "below min size", method: http.MethodGet, path: "/item/missing", status: http.StatusNotFound, body: `{"message":"Item not found"}`},
		{name: "short text", method: http.MethodGet, path: "/", status: http.StatusOK, body: "Hello, World!"},
		{name: "handler error", method: http.MethodGet, path: "/item/broken", status: http.StatusInternalServerError, body: `{"error":"internal server error"}`},
		{name: "head", method: http.MethodHead, path: "/item/42", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fetch(h, tt.method, tt.path, "br, gzip")

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Header().Get("Content-Encoding"))
			if tt.body != "" {
				assert.Equal(t, tt.body, strings.TrimSpace(rec.Body.String()))
			}
		})
	}
}

func TestMiddleware_VaryAndLength(t *testing.T) {
	rec := fetch(itemRouter(DefaultConfig()), http.MethodGet, "/item/42", "gzip")

	assert.Equal(t, []string{"Accept-Encoding"}, rec.Header().Values("Vary"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Less(t, rec.Body.Len(), len(largeItem["description"]))
}

func TestMiddleware_MinSizeZeroEncodesSmallBodies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSize = 0
	rec := fetch(itemRouter(cfg), http.MethodGet, "/item/missing", "gzip")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, encodingGzip, rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"message":"Item not found"}`, decode(t, encodingGzip, rec.Body.Bytes()))
}

func TestMiddleware_RestoresResponseWriter(t *testing.T) {
	var after router.ResponseWriter
	restore := func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			before := c.Response()
			err := next(c)
			after = c.Response()
			assert.Same(t, before, after)
			return err
		}
	}

	r := nethttp.NewRouter()
	r.Use(restore, Middleware(DefaultConfig()))
	r.GET("/item/:id", func(c router.Context) error { return c.JSON(http.StatusOK, largeItem) })
	fetch(r, http.MethodGet, "/item/1", "gzip")

	require.NotNil(t, after)
	assert.Equal(t, http.StatusOK, after.Status())
}

func TestNegotiate(t *testing.T) {
	offered := []string{encodingBrotli, encodingGzip}
	assert.Equal(t, encodingGzip, negotiate("GZIP ; q=1", offered))
	assert.Equal(t, encodingBrotli, negotiate("br;q=0.5, gzip;q=0.5", offered))
	assert.Equal(t, "", negotiate("*;q=0", offered))
	assert.Equal(t, encodingGzip, negotiate("*;q=0.1, br;q=0", offered))
}
