package funding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrFundingSourceRejected means the provider declined the funding
	// source, e.g. duplicate account or invalid routing details.
	ErrFundingSourceRejected = errors.New("funding source rejected")

	// ErrProviderUnavailable covers transport failures, timeouts and 5xx
	// responses from the ACH provider.
	ErrProviderUnavailable = errors.New("funding provider unavailable")
)

// Provider is the surface the workflows need from the ACH funding provider.
type Provider interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	AddFundingSource(ctx context.Context, customerURL, processorToken, bankName string) (string, error)
	CreateTransfer(ctx context.Context, sourceURL, destinationURL string, amount, currency string) (string, error)
}

// Client talks to the ACH provider's HTTP API. Created resources are
// identified by the Location header of the provider's response.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ Provider = (*Client)(nil)

// NewClient builds a client from viper configuration.
func NewClient() *Client {
	viper.SetDefault("funding.base_url", "https://api-sandbox.dwolla.com")
	viper.SetDefault("funding.timeout", defaultTimeout)

	return &Client{
		httpClient: &http.Client{Timeout: viper.GetDuration("funding.timeout")},
		baseURL:    viper.GetString("funding.base_url"),
		apiKey:     viper.GetString("funding.api_key"),
	}
}

// CustomerRequest holds the fields sent on customer creation. Type is
// "personal" for wallet users.
type CustomerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	Address1    string `json:"address1,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	SSN         string `json:"ssn,omitempty"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateCustomer registers a customer with the provider and returns the
// customer resource URL. An Idempotency-Key header guards against transient
// retries at the provider edge; the sign-up workflow still ensures at most
// one call per user.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	if req.Type == "" {
		req.Type = "personal"
	}
	return c.createResource(ctx, c.baseURL+"/customers", req)
}

// AddFundingSource attaches a processor-token-backed bank account to the
// customer and returns the funding source URL. Provider declines map to
// ErrFundingSourceRejected so the link workflow can abort before any
// ledger write.
func (c *Client) AddFundingSource(ctx context.Context, customerURL, processorToken, bankName string) (string, error) {
	body := map[string]string{
		"plaidToken": processorToken,
		"name":       bankName,
	}
	return c.createResource(ctx, customerURL+"/funding-sources", body)
}

// CreateTransfer initiates an ACH transfer between two funding sources and
// returns the transfer resource URL.
func (c *Client) CreateTransfer(ctx context.Context, sourceURL, destinationURL, amount, currency string) (string, error) {
	body := map[string]any{
		"_links": map[string]any{
			"source":      map[string]string{"href": sourceURL},
			"destination": map[string]string{"href": destinationURL},
		},
		"amount": map[string]string{
			"currency": currency,
			"value":    amount,
		},
	}
	return c.createResource(ctx, c.baseURL+"/transfers", body)
}

func (c *Client) createResource(ctx context.Context, url string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.dwolla.v1.hal+json")
	req.Header.Set("Accept", "application/vnd.dwolla.v1.hal+json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		var provErr providerError
		if err := json.Unmarshal(body, &provErr); err == nil && provErr.Code != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrFundingSourceRejected, provErr.Code, provErr.Message)
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrFundingSourceRejected, resp.StatusCode, string(body))
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%w: missing Location header", ErrProviderUnavailable)
	}

	return location, nil
}
