package item

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/server/router/factory"
	"github.com/nimburion/itemservice/pkg/store"
	"github.com/nimburion/itemservice/pkg/testutil"
)

// memTable is a store.Table keeping JSON copies of records.
type memTable struct {
	mu     sync.Mutex
	items  map[string][]byte
	putErr error
	getErr error
	puts   int
}

func newMemTable() *memTable {
	return &memTable{items: map[string][]byte{}}
}

func (m *memTable) Put(_ context.Context, record store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	key, err := record.Key(store.DefaultKeyAttribute)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memTable) Get(_ context.Context, id string) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	raw, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	var record store.Record
	if err := decoder.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *memTable) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func newTestRouter(t *testing.T, routerType string, table store.Table) router.Router {
	t.Helper()
	r, err := factory.NewRouter(routerType)
	require.NoError(t, err)
	NewHandler(table, testutil.NewMockLogger()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func forEachRouter(t *testing.T, fn func(t *testing.T, routerType string)) {
	for _, routerType := range factory.SupportedTypes() {
		routerType := routerType
		t.Run(routerType, func(t *testing.T) { fn(t, routerType) })
	}
}

func TestRoot(t *testing.T) {
	forEachRouter(t, func(t *testing.T, routerType string) {
		table := newMemTable()
		table.getErr = errors.New("store down")
		r := newTestRouter(t, routerType, table)

		rec := do(r, http.MethodGet, "/", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Hello, World!", rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	})
}

func TestCreateThenGet(t *testing.T) {
	forEachRouter(t, func(t *testing.T, routerType string) {
		table := newMemTable()
		r := newTestRouter(t, routerType, table)

		rec := do(r, http.MethodPost, "/item", "application/json", `{"ID":"42","name":"widget","price":9.99,"tags":["a"],"meta":{"ok":true,"none":null}}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"message":"Item created successfully"}`, rec.Body.String())

		rec = do(r, http.MethodGet, "/item/42", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"ID":"42","name":"widget","price":9.99,"tags":["a"],"meta":{"ok":true,"none":null}}`, rec.Body.String())
	})
}

func TestCreate_OverwritesSameKey(t *testing.T) {
	table := newMemTable()
	r := newTestRouter(t, "gin", table)

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/item", "application/json", `{"ID":"1","v":"old"}`).Code)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/item", "application/json", `{"ID":"1","v":"new"}`).Code)

	rec := do(r, http.MethodGet, "/item/1", "", "")
	assert.JSONEq(t, `{"ID":"1","v":"new"}`, rec.Body.String())
	assert.Equal(t, 1, table.len())
}

func TestCreate_NumbersKeepPrecision(t *testing.T) {
	table := newMemTable()
	r := newTestRouter(t, "nethttp", table)

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/item", "application/json", `{"ID":"n","big":12345678901234567890,"tiny":1e-30}`).Code)
	rec := do(r, http.MethodGet, "/item/n", "", "")
	assert.Contains(t, rec.Body.String(), `"big":12345678901234567890`)
	assert.Contains(t, rec.Body.String(), `"tiny":1e-30`)
}

func TestGet_NotFound(t *testing.T) {
	forEachRouter(t, func(t *testing.T, routerType string) {
		r := newTestRouter(t, routerType, newMemTable())

		rec := do(r, http.MethodGet, "/item/999", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"message":"Item not found"}`, rec.Body.String())
	})
}

func TestCreate_RejectedRequests(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantError   string
	}{
		{name: "empty body", contentType: "application/json", wantStatus: http.StatusBadRequest, wantError: "request body is empty"},
		{name: "malformed json", contentType: "application/json", body: `{"ID":`, wantStatus: http.StatusBadRequest, wantError: "invalid JSON body"},
		{name: "trailing data", contentType: "application/json", body: `{"ID":"1"} {}`, wantStatus: http.StatusBadRequest, wantError: "invalid JSON body"},
		{name: "array", contentType: "application/json", body: `[{"ID":"1"}]`, wantStatus: http.StatusBadRequest, wantError: "request body must be a JSON object"},
		{name: "null", contentType: "application/json", body: `null`, wantStatus: http.StatusBadRequest, wantError: "request body must be a JSON object"},
		{name: "string", contentType: "application/json", body: `"ID"`, wantStatus: http.StatusBadRequest, wantError: "request body must be a JSON object"},
		{name: "missing key", contentType: "application/json", body: `{"name":"widget"}`, wantStatus: http.StatusBadRequest, wantError: "One or more parameter values were invalid: Missing the key ID in the item"},
		{name: "non string key", contentType: "application/json", body: `{"ID":42}`, wantStatus: http.StatusBadRequest, wantError: "Type mismatch for key ID"},
		{name: "text body", contentType: "text/plain", body: `{"ID":"1"}`, wantStatus: http.StatusUnsupportedMediaType, wantError: "unsupported content type"},
		{name: "no content type", body: `{"ID":"1"}`, wantStatus: http.StatusUnsupportedMediaType, wantError: "unsupported content type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachRouter(t, func(t *testing.T, routerType string) {
				table := newMemTable()
				r := newTestRouter(t, routerType, table)

				rec := do(r, http.MethodPost, "/item", tt.contentType, tt.body)
				require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Contains(t, body["error"], tt.wantError)
				assert.Equal(t, 0, table.len())
			})
		})
	}
}

func TestStoreFailures(t *testing.T) {
	clientErr := &store.ClientError{
		Operation: "PutItem",
		Code:      "ValidationException",
		Message:   "One or more parameter values were invalid: An AttributeValue may not contain an empty string",
	}

	tests := []struct {
		name       string
		putErr     error
		getErr     error
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "put rejected by store",
			putErr:     clientErr,
			method:     http.MethodPost,
			path:       "/item",
			body:       `{"ID":"1","name":""}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"An error occurred (ValidationException) when calling the PutItem operation: One or more parameter values were invalid: An AttributeValue may not contain an empty string"}`,
		},
		{
			name:       "get rejected by store",
			getErr:     &store.ClientError{Operation: "GetItem", Code: "AccessDeniedException", Message: "not authorized"},
			method:     http.MethodGet,
			path:       "/item/1",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"An error occurred (AccessDeniedException) when calling the GetItem operation: not authorized"}`,
		},
		{
			name:       "put transport failure",
			putErr:     errors.New("dynamodb PutItem failed: dial tcp: connection refused"),
			method:     http.MethodPost,
			path:       "/item",
			body:       `{"ID":"1"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal server error"}`,
		},
		{
			name:       "get transport failure",
			getErr:     context.DeadlineExceeded,
			method:     http.MethodGet,
			path:       "/item/1",
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newMemTable()
			table.putErr = tt.putErr
			table.getErr = tt.getErr
			log := testutil.NewMockLogger()

			r, err := factory.NewRouter("gin")
			require.NoError(t, err)
			NewHandler(table, log).RegisterRoutes(r)

			contentType := ""
			if tt.body != "" {
				contentType = "application/json"
			}
			rec := do(r, tt.method, tt.path, contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())

			_, logged := log.Find("error", "request failed")
			assert.Equal(t, tt.wantStatus == http.StatusInternalServerError, logged)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	forEachRouter(t, func(t *testing.T, routerType string) {
		r := newTestRouter(t, routerType, newMemTable())

		assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodDelete, "/item/1", "", "").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodGet, "/item", "", "").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodPost, "/", "application/json", `{}`).Code)
	})
}
