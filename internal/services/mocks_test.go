package services

import (
	"context"

	"github.com/horizonpay/backend/internal/aggregator"
	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/identity"
	"github.com/horizonpay/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateLinkToken(ctx context.Context, user *models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.ExchangeResult, error) {
	args := m.Called(ctx, publicToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aggregator.ExchangeResult), args.Error(1)
}

func (m *MockGateway) PrimaryAccount(ctx context.Context, accessToken string) (*aggregator.Account, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aggregator.Account), args.Error(1)
}

func (m *MockGateway) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error) {
	args := m.Called(ctx, accessToken, accountID, processor)
	return args.String(0), args.Error(1)
}

type MockFundingProvider struct {
	mock.Mock
}

func (m *MockFundingProvider) CreateCustomer(ctx context.Context, req funding.CustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockFundingProvider) AddFundingSource(ctx context.Context, customerURL, processorToken, bankName string) (string, error) {
	args := m.Called(ctx, customerURL, processorToken, bankName)
	return args.String(0), args.Error(1)
}

func (m *MockFundingProvider) CreateTransfer(ctx context.Context, sourceURL, destinationURL, amount, currency string) (string, error) {
	args := m.Called(ctx, sourceURL, destinationURL, amount, currency)
	return args.String(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateUser(ctx context.Context, params database.CreateUserParams) (*models.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLedger) CreateBankAccountLink(ctx context.Context, params database.CreateBankAccountLinkParams) (*models.BankAccountLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BankAccountLink), args.Error(1)
}

func (m *MockLedger) FindUserByIdentityID(ctx context.Context, identityUserID string) (*models.User, error) {
	args := m.Called(ctx, identityUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLedger) FindLinksByUser(ctx context.Context, userID string) ([]models.BankAccountLink, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BankAccountLink), args.Error(1)
}

func (m *MockLedger) FindLinkByShareableID(ctx context.Context, shareableID string) (*models.BankAccountLink, error) {
	args := m.Called(ctx, shareableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BankAccountLink), args.Error(1)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateAccount(ctx context.Context, email, password, name string) (*identity.Account, error) {
	args := m.Called(ctx, email, password, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockIdentityProvider) CreateSession(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Session), args.Error(1)
}

func (m *MockIdentityProvider) GetCurrentUser(ctx context.Context, sessionSecret string) (*identity.Account, error) {
	args := m.Called(ctx, sessionSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockIdentityProvider) DeleteSession(ctx context.Context, sessionSecret string) error {
	args := m.Called(ctx, sessionSecret)
	return args.Error(0)
}
