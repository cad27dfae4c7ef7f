package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTriggerSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhook/order-process", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-N8N-API-KEY"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ORD-1", body["order_id"])

		w.Write([]byte(`{"executionId":"exec-42","data":{"queued":true}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", zap.NewNop())
	result := client.Trigger(context.Background(), "order-process", map[string]any{"order_id": "ORD-1"})

	assert.True(t, result.Success)
	assert.Equal(t, "order-process", result.WorkflowID)
	assert.Equal(t, "exec-42", result.ExecutionID)
	assert.JSONEq(t, `{"queued":true}`, string(result.Data))
}

func TestTriggerRejectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown workflow", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zap.NewNop())
	result := client.Trigger(context.Background(), "missing", nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "404")
}

func TestTriggerTransportErrorDoesNotEscalate(t *testing.T) {
	// Nothing is listening on this address.
	client := NewClient("http://127.0.0.1:1", "", zap.NewNop())
	result := client.Trigger(context.Background(), "order-process", map[string]any{"order_id": "ORD-1"})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestTriggerEmptyResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zap.NewNop())
	result := client.Trigger(context.Background(), "order-process", nil)

	assert.True(t, result.Success, "a 200 with no body still counts as triggered")
	assert.Empty(t, result.ExecutionID)
}

func TestExecutionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/executions/exec-42", r.URL.Path)
		w.Write([]byte(`{"status":"success","finished":true,"data":{"steps":3}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zap.NewNop())
	status, err := client.ExecutionStatus(context.Background(), "exec-42")
	require.NoError(t, err)

	assert.True(t, status.Success)
	assert.Equal(t, "success", status.Status)
	assert.True(t, status.Finished)
	assert.JSONEq(t, `{"steps":3}`, string(status.Data))
}

func TestExecutionStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", zap.NewNop())
	_, err := client.ExecutionStatus(context.Background(), "nope")
	assert.Error(t, err)
}
