package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/horizonpay/backend/internal/aggregator"
	"github.com/horizonpay/backend/internal/codec"
	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/identity"
	"github.com/horizonpay/backend/internal/middleware"
	"github.com/horizonpay/backend/internal/models"
	"github.com/horizonpay/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	linkToken string
	exchange  *aggregator.ExchangeResult
	account   *aggregator.Account
	err       error
}

func (s *stubGateway) CreateLinkToken(ctx context.Context, user *models.User) (string, error) {
	return s.linkToken, s.err
}

func (s *stubGateway) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
	return s.exchange, s.err
}

func (s *stubGateway) PrimaryAccount(ctx context.Context, accessToken string) (*aggregator.Account, error) {
	return s.account, s.err
}

func (s *stubGateway) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error) {
	return "proc_1", s.err
}

type stubFunding struct {
	fundingSourceURL string
	err              error
}

func (s *stubFunding) CreateCustomer(ctx context.Context, req funding.CustomerRequest) (string, error) {
	return "", s.err
}

func (s *stubFunding) AddFundingSource(ctx context.Context, customerURL, processorToken, bankName string) (string, error) {
	return s.fundingSourceURL, s.err
}

func (s *stubFunding) CreateTransfer(ctx context.Context, sourceURL, destinationURL, amount, currency string) (string, error) {
	return "", s.err
}

type stubLedger struct {
	link *models.BankAccountLink
	err  error
}

func (s *stubLedger) CreateUser(ctx context.Context, params database.CreateUserParams) (*models.User, error) {
	return nil, s.err
}

func (s *stubLedger) CreateBankAccountLink(ctx context.Context, params database.CreateBankAccountLinkParams) (*models.BankAccountLink, error) {
	return s.link, s.err
}

func (s *stubLedger) FindUserByIdentityID(ctx context.Context, identityUserID string) (*models.User, error) {
	return nil, s.err
}

func (s *stubLedger) FindLinksByUser(ctx context.Context, userID string) ([]models.BankAccountLink, error) {
	return nil, s.err
}

func (s *stubLedger) FindLinkByShareableID(ctx context.Context, shareableID string) (*models.BankAccountLink, error) {
	return s.link, s.err
}

func handlerCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.New(codec.Config{SecretKey: "handler-secret", Salt: []byte("handler-salt")})
	require.NoError(t, err)
	return c
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithAuth(req.Context(),
		&identity.Account{ID: "ident-1"},
		&models.User{ID: "user-1", FundingCustomerURL: "https://dwolla/customers/cust_123"})
	return req.WithContext(ctx)
}

func TestLinkHandler_ExchangePublicToken(t *testing.T) {
	t.Run("completed workflow reports the exchange as complete", func(t *testing.T) {
		svc := services.NewLinkService(
			&stubGateway{
				exchange: &aggregator.ExchangeResult{AccessToken: "access_A", ItemID: "item_1"},
				account:  &aggregator.Account{AccountID: "acc_1", Name: "Checking"},
			},
			&stubFunding{fundingSourceURL: "https://dwolla/funding/1"},
			&stubLedger{link: &models.BankAccountLink{ID: "link-1"}},
			handlerCodec(t), nil)

		h := NewLinkHandler(svc)
		rec := httptest.NewRecorder()
		h.ExchangePublicToken(rec, authedRequest(http.MethodPost, "/api/v1/link/exchange",
			bytes.NewBufferString(`{"publicToken":"tok_A"}`)))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "complete", resp["publicTokenExchange"])
	})

	t.Run("aggregator outage maps to 502", func(t *testing.T) {
		svc := services.NewLinkService(
			&stubGateway{err: aggregator.ErrUpstreamUnavailable},
			&stubFunding{}, &stubLedger{}, handlerCodec(t), nil)

		h := NewLinkHandler(svc)
		rec := httptest.NewRecorder()
		h.ExchangePublicToken(rec, authedRequest(http.MethodPost, "/api/v1/link/exchange",
			bytes.NewBufferString(`{"publicToken":"tok_A"}`)))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("missing public token is rejected", func(t *testing.T) {
		svc := services.NewLinkService(&stubGateway{}, &stubFunding{}, &stubLedger{}, handlerCodec(t), nil)

		h := NewLinkHandler(svc)
		rec := httptest.NewRecorder()
		h.ExchangePublicToken(rec, authedRequest(http.MethodPost, "/api/v1/link/exchange",
			bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		svc := services.NewLinkService(&stubGateway{}, &stubFunding{}, &stubLedger{}, handlerCodec(t), nil)

		h := NewLinkHandler(svc)
		rec := httptest.NewRecorder()
		h.ExchangePublicToken(rec, httptest.NewRequest(http.MethodPost, "/api/v1/link/exchange",
			bytes.NewBufferString(`{"publicToken":"tok_A"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLinkHandler_CreateLinkToken(t *testing.T) {
	svc := services.NewLinkService(&stubGateway{linkToken: "link-sandbox-token"},
		&stubFunding{}, &stubLedger{}, handlerCodec(t), nil)

	h := NewLinkHandler(svc)
	rec := httptest.NewRecorder()
	h.CreateLinkToken(rec, authedRequest(http.MethodPost, "/api/v1/link/token", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "link-sandbox-token", resp["linkToken"])
}
