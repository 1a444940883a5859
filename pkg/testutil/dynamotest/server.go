// Package dynamotest serves a minimal in-memory DynamoDB JSON API for tests.
// It understands DescribeTable, PutItem and GetItem on tables keyed by one string attribute.
package dynamotest

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const targetPrefix = "DynamoDB_20120810."

// Server is an httptest server speaking the awsJson1_0 protocol.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string]string
	items    map[string]map[string]json.RawMessage
	failures map[string]failure
	calls    map[string]int
}

type failure struct {
	status  int
	code    string
	message string
}

// New starts a server with one table keyed by keyAttribute and stops it on test cleanup.
func New(t testing.TB, table, keyAttribute string) *Server {
	t.Helper()
	s := &Server{
		tables:   map[string]string{table: keyAttribute},
		items:    map[string]map[string]json.RawMessage{table: {}},
		failures: map[string]failure{},
		calls:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Fail makes every later call to operation return a 400 error with code and message.
func (s *Server) Fail(operation, code, message string) {
	s.FailWithStatus(operation, http.StatusBadRequest, code, message)
}

// FailWithStatus is Fail with an explicit HTTP status.
func (s *Server) FailWithStatus(operation string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation] = failure{status: status, code: code, message: message}
}

// Recover clears a failure set with Fail.
func (s *Server) Recover(operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, operation)
}

// Calls returns how many requests for operation reached the server.
func (s *Server) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

// Len returns the number of items stored in table.
func (s *Server) Len(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items[table])
}

// Seed stores a raw wire-format item, bypassing PutItem validation.
func (s *Server) Seed(table, key string, item json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[table][key] = item
}

type request struct {
	TableName      string                     `json:"TableName"`
	Item           map[string]json.RawMessage `json:"Item"`
	Key            map[string]json.RawMessage `json:"Key"`
	ConsistentRead *bool                      `json:"ConsistentRead"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	operation := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), targetPrefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[operation]++

	if f, ok := s.failures[operation]; ok {
		writeError(w, f.status, f.code, f.message)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "SerializationException", err.Error())
		return
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "SerializationException", err.Error())
		return
	}

	keyAttribute, ok := s.tables[req.TableName]
	if !ok {
		writeError(w, http.StatusBadRequest, "ResourceNotFoundException", "Requested resource not found")
		return
	}

	switch operation {
	case "DescribeTable":
		writeJSON(w, map[string]any{
			"Table": map[string]any{
				"TableName":   req.TableName,
				"TableStatus": "ACTIVE",
				"KeySchema": []map[string]string{
					{"AttributeName": keyAttribute, "KeyType": "HASH"},
				},
			},
		})
	case "PutItem":
		key, msg := keyValue(req.Item, keyAttribute, "item")
		if msg != "" {
			writeError(w, http.StatusBadRequest, "ValidationException", msg)
			return
		}
		raw, _ := json.Marshal(req.Item)
		s.items[req.TableName][key] = raw
		writeJSON(w, map[string]any{})
	case "GetItem":
		if len(req.Key) != 1 {
			writeError(w, http.StatusBadRequest, "ValidationException", "The provided key element does not match the schema")
			return
		}
		key, msg := keyValue(req.Key, keyAttribute, "key")
		if msg != "" {
			writeError(w, http.StatusBadRequest, "ValidationException", msg)
			return
		}
		raw, found := s.items[req.TableName][key]
		if !found {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"Item": raw})
	default:
		writeError(w, http.StatusBadRequest, "UnknownOperationException", "")
	}
}

func keyValue(attrs map[string]json.RawMessage, keyAttribute, where string) (string, string) {
	raw, ok := attrs[keyAttribute]
	if !ok {
		return "", fmt.Sprintf("One or more parameter values were invalid: Missing the key %s in the %s", keyAttribute, where)
	}
	var av map[string]json.RawMessage
	if err := json.Unmarshal(raw, &av); err != nil {
		return "", err.Error()
	}
	s, ok := av["S"]
	if !ok {
		return "", "One or more parameter values were invalid: Type mismatch for key " + keyAttribute + " expected: S"
	}
	var key string
	if err := json.Unmarshal(s, &key); err != nil {
		return "", err.Error()
	}
	if key == "" {
		return "", "One or more parameter values are not valid. The AttributeValue for a key attribute cannot contain an empty string value. Key: " + keyAttribute
	}
	return key, ""
}

func writeJSON(w http.ResponseWriter, v any) {
	body, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.Header().Set("X-Amz-Crc32", fmt.Sprint(crc32.ChecksumIEEE(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body, _ := json.Marshal(map[string]string{
		"__type":  "com.amazonaws.dynamodb.v20120810#" + code,
		"message": message,
	})
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.Header().Set("X-Amz-Crc32", fmt.Sprint(crc32.ChecksumIEEE(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
