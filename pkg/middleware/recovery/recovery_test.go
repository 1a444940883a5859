package recovery

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/server/router/nethttp"
	"github.com/nimburion/itemservice/pkg/testutil"
)

const internalError = `{"error":"internal server error"}`

func guarded(log *testutil.MockLogger, method, path string, h router.HandlerFunc) *httptest.ResponseRecorder {
	r := nethttp.NewRouter()
	r.Use(Recovery(log))
	switch method {
	case http.MethodPost:
		r.POST(path, h)
	default:
		r.GET(path, h)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		handler router.HandlerFunc
		status  int
		body    string
		logged  bool
	}{
		{
			name:    "passes normal responses through",
			method:  http.MethodGet,
			handler: func(c router.Context) error { return c.String(http.StatusOK, "Hello, World!") },
			status:  http.StatusOK,
			body:    "Hello, World!",
		},
		{
			name:    "panic becomes a generic 500",
			method:  http.MethodGet,
			handler: func(router.Context) error { panic("table gone") },
			status:  http.StatusInternalServerError,
			body:    internalError,
			logged:  true,
		},
		{
			name:   "panic after the response keeps the written status",
			method: http.MethodPost,
			handler: func(c router.Context) error {
				_ = c.JSON(http.StatusCreated, map[string]string{"message": "Item created successfully"})
				panic(errors.New("late failure"))
			},
			status: http.StatusCreated,
			logged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := testutil.NewMockLogger()
			rec := guarded(log, tt.method, "/item", tt.handler)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, strings.TrimSpace(rec.Body.String()))
			}

			entry, found := log.Find("error", "panic recovered")
			require.Equal(t, tt.logged, found)
			if found {
				assert.Equal(t, "/item", entry.Fields["route"])
				assert.Equal(t, tt.method, entry.Fields["method"])
				assert.Contains(t, entry.Fields["stack"], "runtime/debug.Stack")
			}
		})
	}
}

func TestRecovery_LeavesAbortHandlerToNetHTTP(t *testing.T) {
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		guarded(testutil.NewMockLogger(), http.MethodGet, "/", func(router.Context) error {
			panic(http.ErrAbortHandler)
		})
	})
}

func TestProperty_PanicValueNeverLeaks(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	p := gopter.NewProperties(params)

	p.Property("any panic value yields the same 500 body", prop.ForAll(
		func(value any) bool {
			log := testutil.NewMockLogger()
			rec := guarded(log, http.MethodGet, "/", func(router.Context) error { panic(value) })

			entry, _ := log.Find("error", "panic recovered")
			return rec.Code == http.StatusInternalServerError &&
				strings.TrimSpace(rec.Body.String()) == internalError &&
				assert.ObjectsAreEqual(value, entry.Fields["panic"])
		},
		gen.OneGenOf(gen.Identifier(), gen.Int()),
	))

	p.TestingRun(t)
}
