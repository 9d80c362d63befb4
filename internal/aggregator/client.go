package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/horizonpay/backend/internal/models"
	"github.com/spf13/viper"
)

const (
	linkTokenPath      = "/link/token/create"
	exchangePath       = "/item/public_token/exchange"
	accountsPath       = "/accounts/get"
	processorTokenPath = "/processor/token/create"

	defaultTimeout = 15 * time.Second
)

var (
	// ErrUpstreamUnavailable covers transport failures, timeouts and 5xx
	// responses from the aggregator. Callers surface a retry affordance.
	ErrUpstreamUnavailable = errors.New("aggregator unavailable")

	// ErrInvalidToken is returned when a public token is expired or already
	// consumed. Aggregator public tokens are single-use.
	ErrInvalidToken = errors.New("invalid or expired public token")

	// ErrNoAccounts is returned when an item holds no accounts.
	ErrNoAccounts = errors.New("item has no accounts")
)

// Gateway is the surface the link workflow needs from the bank-data aggregator.
type Gateway interface {
	CreateLinkToken(ctx context.Context, user *models.User) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	PrimaryAccount(ctx context.Context, accessToken string) (*Account, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error)
}

// Client talks to the aggregator's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

var _ Gateway = (*Client)(nil)

// NewClient builds a client from viper configuration.
func NewClient() *Client {
	viper.SetDefault("aggregator.base_url", "https://sandbox.plaid.com")
	viper.SetDefault("aggregator.timeout", defaultTimeout)

	return &Client{
		httpClient: &http.Client{Timeout: viper.GetDuration("aggregator.timeout")},
		baseURL:    viper.GetString("aggregator.base_url"),
		clientID:   viper.GetString("aggregator.client_id"),
		secret:     viper.GetString("aggregator.secret"),
	}
}

// ExchangeResult holds the outcome of a public-token exchange. AccessToken is
// a long-lived secret; it moves only into the ledger store.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Account is the aggregator's account metadata.
type Account struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Mask      string `json:"mask"`
}

type errorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// CreateLinkToken requests a single-use link token scoped to the user. The
// product set is fixed to auth with en/US locale, matching the linking flow.
func (c *Client) CreateLinkToken(ctx context.Context, user *models.User) (string, error) {
	req := map[string]any{
		"user": map[string]string{
			"client_user_id": user.ID,
		},
		"client_name":   user.FullName(),
		"products":      []string{"auth"},
		"language":      "en",
		"country_codes": []string{"US"},
	}

	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, linkTokenPath, req, &resp); err != nil {
		return "", err
	}

	return resp.LinkToken, nil
}

// ExchangePublicToken performs the one-shot exchange of a public token for a
// long-lived access token and the item ID it belongs to.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	req := map[string]string{
		"public_token": publicToken,
	}

	var resp ExchangeResult
	if err := c.post(ctx, exchangePath, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// PrimaryAccount fetches all accounts under the item and applies the primary
// account policy: the first account returned is authoritative. Items holding
// multiple accounts are logged upstream for product follow-up.
func (c *Client) PrimaryAccount(ctx context.Context, accessToken string) (*Account, error) {
	req := map[string]string{
		"access_token": accessToken,
	}

	var resp struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.post(ctx, accountsPath, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if len(resp.Accounts) > 1 {
		log.Printf("[AGGREGATOR] item has %d accounts, linking the first", len(resp.Accounts))
	}

	return &resp.Accounts[0], nil
}

// CreateProcessorToken binds an aggregator account to the named funding rail.
func (c *Client) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error) {
	req := map[string]string{
		"access_token": accessToken,
		"account_id":   accountID,
		"processor":    processor,
	}

	var resp struct {
		ProcessorToken string `json:"processor_token"`
	}
	if err := c.post(ctx, processorTokenPath, req, &resp); err != nil {
		return "", err
	}

	return resp.ProcessorToken, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body := map[string]any{
		"client_id": c.clientID,
		"secret":    c.secret,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response", ErrUpstreamUnavailable)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.ErrorType == "INVALID_INPUT" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, errResp.ErrorCode)
		}
		return fmt.Errorf("aggregator request failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
