package item

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/itemservice/pkg/server/router/factory"
	dynamostore "github.com/nimburion/itemservice/pkg/store/dynamodb"
	"github.com/nimburion/itemservice/pkg/testutil"
	"github.com/nimburion/itemservice/pkg/testutil/dynamotest"
)

const helloWorldTable = "HelloWorldTable"

// newDynamoRouter wires the handler to a DynamoDB table served by the in-memory fake.
func newDynamoRouter(t *testing.T) (http.Handler, *dynamotest.Server) {
	t.Helper()
	srv := dynamotest.New(t, helloWorldTable, "ID")

	adapter, err := dynamostore.NewAdapter(context.Background(), dynamostore.Config{
		Region:           "us-west-2",
		Endpoint:         srv.URL,
		AccessKeyID:      "test",
		SecretAccessKey:  "test",
		Table:            helloWorldTable,
		OperationTimeout: 2 * time.Second,
		MaxAttempts:      1,
	}, testutil.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	r, err := factory.NewRouter("gin")
	require.NoError(t, err)
	NewHandler(dynamostore.NewTable(adapter, dynamostore.TableConfig{}), testutil.NewMockLogger()).RegisterRoutes(r)
	return r, srv
}

func TestDynamoDB_CreateThenGet(t *testing.T) {
	r, srv := newDynamoRouter(t)

	rec := do(r, http.MethodPost, "/item", "application/json", `{"ID":"42","name":"widget"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Item created successfully"}`, rec.Body.String())
	assert.Equal(t, 1, srv.Len(helloWorldTable))

	rec = do(r, http.MethodGet, "/item/42", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ID":"42","name":"widget"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/item/999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Item not found"}`, rec.Body.String())
}

func TestDynamoDB_RejectedWriteIsNotStored(t *testing.T) {
	r, srv := newDynamoRouter(t)
	srv.Fail("PutItem", "ValidationException", "One or more parameter values were invalid: An AttributeValue may not contain an empty string")

	rec := do(r, http.MethodPost, "/item", "application/json", `{"ID":"7","name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"An error occurred (ValidationException) when calling the PutItem operation: One or more parameter values were invalid: An AttributeValue may not contain an empty string"}`, rec.Body.String())
	assert.Equal(t, 0, srv.Len(helloWorldTable))

	srv.Recover("PutItem")
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/item/7", "", "").Code)
}

func TestDynamoDB_MissingKeyNeverReachesStore(t *testing.T) {
	r, srv := newDynamoRouter(t)

	rec := do(r, http.MethodPost, "/item", "application/json", `{"name":"widget"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, srv.Calls("PutItem"))
}

func TestDynamoDB_RootIgnoresStoreHealth(t *testing.T) {
	r, srv := newDynamoRouter(t)
	srv.Fail("GetItem", "InternalServerError", "boom")
	srv.Fail("PutItem", "InternalServerError", "boom")

	rec := do(r, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, World!", rec.Body.String())
}
