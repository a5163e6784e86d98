package openrouteservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/provider/resilience"
)

const solutionBody = `{
	"code": 0,
	"summary": {"cost": 1520, "routes": 1, "unassigned": 1, "distance": 18250.4, "duration": 1520},
	"unassigned": [{"id": 3, "location": [28.1, -26.1]}],
	"routes": [{
		"vehicle": "drv-1",
		"cost": 1520,
		"distance": 18250.4,
		"duration": 1520,
		"geometry": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@",
		"steps": [
			{"type": "start", "location": [28.0, -26.0]},
			{"type": "job", "id": 1, "job": 1, "location": [28.01, -26.01]},
			{"type": "job", "id": 2, "job": "2", "location": [28.02, -26.02]},
			{"type": "end", "location": [28.05, -26.05]}
		]
	}]
}`

func testRequest() *optimization.SolverRequest {
	return &optimization.SolverRequest{
		Jobs: []optimization.SolverJob{
			{ID: "1", Location: []float64{28.01, -26.01}, Amount: []int{1}},
			{ID: "2", Location: []float64{28.02, -26.02}, Amount: []int{1}},
			{ID: "3", Location: []float64{28.1, -26.1}, Amount: []int{1}},
		},
		Vehicles: []optimization.SolverVehicle{
			{ID: "drv-1", Start: []float64{28.0, -26.0}, End: []float64{28.05, -26.05}, Capacity: []int{2}, Profile: optimization.DefaultProfile},
		},
		Options: optimization.SolverOptions{G: true},
	}
}

func newTestClient(serverURL string, httpClient HTTPDoer) *Client {
	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    serverURL,
		HTTPClient: httpClient,
		Logger:     zerolog.Nop(),
	})
}

func TestClient_Optimize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimization", r.URL.Path)
		assert.Equal(t, "mock123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Len(t, got["jobs"], 3)
		assert.Len(t, got["vehicles"], 1)
		assert.Equal(t, map[string]any{"g": true}, got["options"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(solutionBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	resp, err := client.Optimize(context.Background(), testRequest())
	require.NoError(t, err)
	require.NoError(t, resp.CheckShape())

	require.Len(t, resp.Routes, 1)
	route := resp.Routes[0]
	assert.Equal(t, optimization.ID("drv-1"), route.Vehicle)
	require.NotNil(t, route.Distance)
	assert.Equal(t, 18250.4, *route.Distance)
	require.Len(t, route.Steps, 4)
	assert.Equal(t, optimization.ID("1"), *route.Steps[1].Job)
	assert.Equal(t, optimization.ID("2"), *route.Steps[2].Job)
	assert.NotEmpty(t, route.Geometry)

	require.Len(t, resp.Unassigned, 1)
	assert.Equal(t, optimization.ID("3"), resp.Unassigned[0].ID)
	assert.Equal(t, 18250.4, resp.Summary.Distance)
}

func TestClient_Optimize_TrailingSlashBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/optimization", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"routes":[],"unassigned":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/", server.Client())

	_, err := client.Optimize(context.Background(), testRequest())
	require.NoError(t, err)
}

func TestClient_Optimize_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "gateway error shape",
			status:      http.StatusBadRequest,
			body:        `{"error":{"code":2003,"message":"Parameter 'vehicles' has incorrect value"}}`,
			wantMessage: "Parameter 'vehicles' has incorrect value",
		},
		{
			name:        "solver error shape",
			status:      http.StatusBadRequest,
			body:        `{"code":2,"error":"Invalid vehicles."}`,
			wantMessage: "Invalid vehicles.",
		},
		{
			name:        "forbidden without body",
			status:      http.StatusForbidden,
			body:        ``,
			wantMessage: "API access denied",
		},
		{
			name:        "server error with html body",
			status:      http.StatusInternalServerError,
			body:        `<html>oops</html>`,
			wantMessage: "temporarily unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL, server.Client())

			resp, err := client.Optimize(context.Background(), testRequest())
			assert.Nil(t, resp)

			var solverErr *optimization.SolverError
			require.True(t, errors.As(err, &solverErr))
			assert.ErrorIs(t, err, optimization.ErrSolver)
			assert.Equal(t, ProviderName, solverErr.Provider)
			assert.Equal(t, tt.status, solverErr.StatusCode)
			assert.Equal(t, tt.body, solverErr.Body)
			assert.Contains(t, solverErr.Message, tt.wantMessage)
		})
	}
}

func TestClient_Optimize_NonZeroCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":3,"error":"Unfound route(s) from location [28.0,-26.0]"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	_, err := client.Optimize(context.Background(), testRequest())

	var solverErr *optimization.SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.Contains(t, solverErr.Message, "code 3")
	assert.Contains(t, solverErr.Message, "routing error")
	assert.Contains(t, solverErr.Message, "Unfound route(s)")
}

func TestClient_Optimize_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"routes":[{"vehicle":true}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	_, err := client.Optimize(context.Background(), testRequest())

	var solverErr *optimization.SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.Equal(t, "malformed solver response", solverErr.Message)
	assert.Equal(t, http.StatusOK, solverErr.StatusCode)
}

func TestClient_Optimize_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url, &http.Client{})

	_, err := client.Optimize(context.Background(), testRequest())

	var solverErr *optimization.SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.Zero(t, solverErr.StatusCode)
	assert.NotNil(t, solverErr.Err)
}

func TestClient_Optimize_MissingAPIKeyForHostedAPI(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zerolog.Nop()})

	_, err := client.Optimize(context.Background(), testRequest())

	assert.ErrorIs(t, err, optimization.ErrConfiguration)
}

func TestClient_Optimize_SelfHostedWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":0,"routes":[],"unassigned":[]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})

	_, err := client.Optimize(context.Background(), testRequest())
	require.NoError(t, err)
}

func TestClient_Optimize_RetriesWithResilientClient(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"jobs"`)
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(solutionBody))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		APIKey:   "mock123",
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	resp, err := client.Optimize(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, resp.Routes, 1)
	assert.Equal(t, int32(2), attempts.Load())

	health := registry.GetHealth(ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestClient_Optimize_AttemptBudget(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		maxAttempts    uint64
		retryAmbiguous bool
		wantAttempts   int32
	}{
		{"unavailable uses default budget", http.StatusServiceUnavailable, 0, false, 3},
		{"unavailable uses configured budget", http.StatusServiceUnavailable, 2, false, 2},
		{"gateway timeout surfaced", http.StatusGatewayTimeout, 0, false, 1},
		{"internal error surfaced", http.StatusInternalServerError, 0, false, 1},
		{"gateway timeout retried on opt in", http.StatusGatewayTimeout, 0, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				APIKey:         "mock123",
				BaseURL:        server.URL,
				MaxAttempts:    tt.maxAttempts,
				RetryAmbiguous: tt.retryAmbiguous,
				Logger:         zerolog.Nop(),
			})

			_, err := client.Optimize(context.Background(), testRequest())

			var solverErr *optimization.SolverError
			require.ErrorAs(t, err, &solverErr)
			assert.Equal(t, tt.status, solverErr.StatusCode)
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zerolog.Nop()})
	assert.Equal(t, ProviderName, client.Name())
}
