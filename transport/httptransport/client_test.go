package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinekit/offsync"
	syncErrors "github.com/offlinekit/offsync/errors"
)

func TestDispatchApplied(t *testing.T) {
	var gotPath string
	var gotBody dispatchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	result, err := tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate,
		offsync.Payload{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, offsync.DispatchApplied, result.Status)
	assert.Equal(t, "/notes", gotPath)
	assert.Equal(t, "update", gotBody.Operation)
	assert.Equal(t, "hello", gotBody.Payload["title"])
}

func TestDispatchConflictCarriesServerPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"title": "server version"})
	}))
	defer server.Close()

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	result, err := tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, offsync.DispatchConflict, result.Status)
	assert.Equal(t, "server version", result.ServerPayload["title"])
}

func TestDispatchConflictWithEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	result, err := tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate, nil)
	require.NoError(t, err)
	assert.Equal(t, offsync.DispatchConflict, result.Status)
	assert.Nil(t, result.ServerPayload)
}

func TestDispatchServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	_, err = tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate, nil)
	require.Error(t, err)
	assert.True(t, syncErrors.IsRetryable(err))
}

func TestDispatchRejectionIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such entity", http.StatusNotFound)
	}))
	defer server.Close()

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	_, err = tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate, nil)
	require.Error(t, err)
	assert.False(t, syncErrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "404")
}

func TestDispatchConnectionFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	tr, err := NewTransport(server.URL)
	require.NoError(t, err)

	_, err = tr.Dispatch(context.Background(), "notes", offsync.OperationUpdate, nil)
	require.Error(t, err)
	assert.True(t, syncErrors.IsRetryable(err))
}

func TestNewTransportValidation(t *testing.T) {
	_, err := NewTransport("")
	assert.Error(t, err)

	tr, err := NewTransport("http://example.com/sync/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/sync", tr.baseURL)
}
