package carrier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createClientConfig(baseURL string) config.CarrierConfig {
	return config.CarrierConfig{
		BaseURL:           baseURL,
		CompositeEndpoint: "/rest/composite/v1/composite",
		Username:          "su",
		Password:          "gw",
		Timeout:           5000,
		TokenBuffer:       300,
	}
}

func createTestClient(t *testing.T, cfg config.CarrierConfig) *Client {
	return NewClient(cfg, logger.NewTestLogger(t))
}

// ==========================
// Execute Tests
// ==========================

func TestClient_Execute_Success(t *testing.T) {
	var gotAuth string
	var gotBody CompositeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/composite/v1/composite", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CompositeResponse{
			Responses: []StepResponse{
				{Status: 201, Body: map[string]interface{}{"data": map[string]interface{}{}}},
			},
		})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	resp, err := client.Execute(context.Background(), &CompositeRequest{
		Requests: BuildChain(createValidSpec(), ModeBundled),
	})
	require.NoError(t, err)
	require.Len(t, resp.Responses, 1)
	assert.Equal(t, 201, resp.Responses[0].Status)

	// Basic auth applies when no bearer token is configured.
	assert.Contains(t, gotAuth, "Basic ")
	assert.Len(t, gotBody.Requests, 5)
}

func TestClient_Execute_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"detail":"producer code not found"}]}`))
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	_, err := client.Execute(context.Background(), &CompositeRequest{})
	require.Error(t, err)

	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "producer code not found")
}

func TestClient_Execute_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // dead endpoint

	client := createTestClient(t, createClientConfig(server.URL))
	_, err := client.Execute(context.Background(), &CompositeRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestClient_Execute_BearerTokenWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{{Status: 200}}})
	}))
	defer server.Close()

	cfg := createClientConfig(server.URL)
	cfg.BearerToken = "static-token"

	client := createTestClient(t, cfg)
	_, err := client.Execute(context.Background(), &CompositeRequest{})
	require.NoError(t, err)
}

// ==========================
// Token Endpoint Tests
// ==========================

func TestClient_Execute_ClientCredentials(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "workbench", r.Form.Get("client_id"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "issued-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/rest/composite/v1/composite", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{{Status: 200}}})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := createClientConfig(server.URL)
	cfg.Username = ""
	cfg.Password = ""
	cfg.TokenURL = server.URL + "/oauth/token"
	cfg.ClientID = "workbench"
	cfg.ClientSecret = "secret"

	client := createTestClient(t, cfg)

	_, err := client.Execute(context.Background(), &CompositeRequest{})
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), &CompositeRequest{})
	require.NoError(t, err)

	// Second call reuses the cached token.
	assert.Equal(t, 1, tokenCalls)
}

func TestClient_Execute_TokenEndpointRejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := createClientConfig(server.URL)
	cfg.Username = ""
	cfg.Password = ""
	cfg.TokenURL = server.URL + "/oauth/token"
	cfg.ClientID = "workbench"
	cfg.ClientSecret = "wrong"

	client := createTestClient(t, cfg)
	_, err := client.Execute(context.Background(), &CompositeRequest{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCarrierAuthFailed, errors.CodeOf(err))
}

// ==========================
// Ping Tests
// ==========================

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/account/v1/account-organization-types", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_Ping_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}
