package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-badgescan/pkg/identifier"
	"github.com/teslashibe/go-badgescan/pkg/scan"
	"github.com/teslashibe/go-badgescan/pkg/web"
)

func TestClient_StartWait(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scans", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(web.ScanResponse{ID: "s1", Outcome: scan.Outcome{State: scan.StateInitializing}})
	})
	mux.HandleFunc("GET /api/scans/s1", func(w http.ResponseWriter, r *http.Request) {
		o := scan.Outcome{State: scan.StateScanning}
		if polls.Add(1) >= 2 {
			o = scan.Outcome{State: scan.StateSuccess, Identifier: identifier.MustParse("W003")}
		}
		json.NewEncoder(w).Encode(web.ScanResponse{ID: "s1", Outcome: o})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &client{base: srv.URL}
	require.NoError(t, c.start(context.Background(), true))
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestClient_StartWaitError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scans", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(web.ScanResponse{ID: "s2"})
	})
	mux.HandleFunc("GET /api/scans/s2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(web.ScanResponse{ID: "s2", Outcome: scan.Outcome{
			State:  scan.StateError,
			Error:  scan.KindPermissionDenied,
			Reason: "camera: permission denied",
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &client{base: srv.URL}
	err := c.start(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission_denied")
}

func TestClient_StopUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"error":"scan: unknown session"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := &client{base: srv.URL}
	err := c.stop(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestWithID(t *testing.T) {
	assert.Error(t, withID(nil, func(string) error { return nil }))
	var got string
	require.NoError(t, withID([]string{"abc"}, func(id string) error { got = id; return nil }))
	assert.Equal(t, "abc", got)
}

func TestParseStart(t *testing.T) {
	wait, err := parseStart([]string{"-wait"})
	require.NoError(t, err)
	assert.True(t, wait)

	wait, err = parseStart(nil)
	require.NoError(t, err)
	assert.False(t, wait)

	_, err = parseStart([]string{"extra"})
	assert.Error(t, err)
}
