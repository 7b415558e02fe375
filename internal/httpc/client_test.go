package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": in["worker_id"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := DoJSON(context.Background(), nil, http.MethodPost, srv.URL, map[string]string{"worker_id": "W003"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "W003", out["echo"])
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "worker not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), NewClient(DefaultTimeout), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "worker not found", se.Body)
}

func TestDoJSON_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	err := DoJSON(context.Background(), nil, http.MethodDelete, srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Nil(t, out)
}
