package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/horizonpay/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func newTestClient(serverURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Second},
		baseURL:    serverURL,
		clientID:   "client-id",
		secret:     "client-secret",
	}
}

func TestClient_CreateLinkToken(t *testing.T) {
	user := &models.User{ID: "user_1", FirstName: "John", LastName: "Doe"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, linkTokenPath, r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client-id", body["client_id"])
		assert.Equal(t, "John Doe", body["client_name"])
		assert.Equal(t, []any{"auth"}, body["products"])

		json.NewEncoder(w).Encode(map[string]string{"link_token": "link-sandbox-123"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	token, err := client.CreateLinkToken(context.Background(), user)
	assert.NoError(t, err)
	assert.Equal(t, "link-sandbox-123", token)
}

func TestClient_ExchangePublicToken(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, exchangePath, r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "tok_A",
				"item_id":      "item_1",
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.ExchangePublicToken(context.Background(), "public-token")
		assert.NoError(t, err)
		assert.Equal(t, "tok_A", result.AccessToken)
		assert.Equal(t, "item_1", result.ItemID)
	})

	t.Run("consumed token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{
				ErrorType: "INVALID_INPUT",
				ErrorCode: "INVALID_PUBLIC_TOKEN",
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExchangePublicToken(context.Background(), "used-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("aggregator down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExchangePublicToken(context.Background(), "public-token")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("rate limit is not an invalid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(errorResponse{
				ErrorType: "RATE_LIMIT_EXCEEDED",
				ErrorCode: "RATE_LIMIT",
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExchangePublicToken(context.Background(), "public-token")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestClient_PrimaryAccount(t *testing.T) {
	t.Run("first account wins", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, accountsPath, r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"accounts": []Account{
					{AccountID: "acc_1", Name: "Checking", Type: "depository"},
					{AccountID: "acc_2", Name: "Savings", Type: "depository"},
				},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		account, err := client.PrimaryAccount(context.Background(), "tok_A")
		assert.NoError(t, err)
		assert.Equal(t, "acc_1", account.AccountID)
		assert.Equal(t, "Checking", account.Name)
	})

	t.Run("no accounts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"accounts": []Account{}})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.PrimaryAccount(context.Background(), "tok_A")
		assert.ErrorIs(t, err, ErrNoAccounts)
	})
}

func TestClient_CreateProcessorToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, processorTokenPath, r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok_A", body["access_token"])
		assert.Equal(t, "acc_1", body["account_id"])
		assert.Equal(t, "dwolla", body["processor"])

		json.NewEncoder(w).Encode(map[string]string{"processor_token": "processor-sandbox-xyz"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	token, err := client.CreateProcessorToken(context.Background(), "tok_A", "acc_1", "dwolla")
	assert.NoError(t, err)
	assert.Equal(t, "processor-sandbox-xyz", token)
}
