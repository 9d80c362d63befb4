package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/horizonpay/backend/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrDuplicateUser means the identity already has a user document.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrLinkExists means the user already linked this external account.
	ErrLinkExists = errors.New("bank account already linked")
)

const uniqueViolation = "23505"

// LedgerStore persists user and bank-account-link documents. Documents live
// in the users and bank_accounts tables, each row keyed by a generated UUID.
// Inserts carry no business validation; that is the orchestrator's job.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// CreateUserParams holds the fields written at sign-up.
type CreateUserParams struct {
	IdentityUserID     string
	FirstName          string
	LastName           string
	Email              string
	FundingCustomerID  string
	FundingCustomerURL string
}

// CreateBankAccountLinkParams holds the fields written by the link workflow.
type CreateBankAccountLinkParams struct {
	UserID           string
	BankID           string
	AccountID        string
	AccessToken      string
	FundingSourceURL string
	ShareableID      string
}

// CreateUser inserts a user document. A second document for the same
// identity or email fails with ErrDuplicateUser.
func (s *LedgerStore) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	user := &models.User{
		ID:                 uuid.NewString(),
		IdentityUserID:     params.IdentityUserID,
		FirstName:          params.FirstName,
		LastName:           params.LastName,
		Email:              params.Email,
		FundingCustomerID:  params.FundingCustomerID,
		FundingCustomerURL: params.FundingCustomerURL,
		CreatedAt:          time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, identity_user_id, first_name, last_name, email, funding_customer_id, funding_customer_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.IdentityUserID, user.FirstName, user.LastName, user.Email,
		user.FundingCustomerID, user.FundingCustomerURL, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// CreateBankAccountLink inserts a link document. The (user_id, account_id)
// unique index serializes concurrent link attempts for the same external
// account; its violation maps to ErrLinkExists.
func (s *LedgerStore) CreateBankAccountLink(ctx context.Context, params CreateBankAccountLinkParams) (*models.BankAccountLink, error) {
	link := &models.BankAccountLink{
		ID:               uuid.NewString(),
		UserID:           params.UserID,
		BankID:           params.BankID,
		AccountID:        params.AccountID,
		AccessToken:      params.AccessToken,
		FundingSourceURL: params.FundingSourceURL,
		ShareableID:      params.ShareableID,
		CreatedAt:        time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, user_id, bank_id, account_id, access_token, funding_source_url, shareable_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		link.ID, link.UserID, link.BankID, link.AccountID, link.AccessToken,
		link.FundingSourceURL, link.ShareableID, link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrLinkExists
		}
		return nil, fmt.Errorf("failed to insert bank account link: %w", err)
	}

	return link, nil
}

// FindUserByID returns the user document, or nil when absent.
func (s *LedgerStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, `
		SELECT id, identity_user_id, first_name, last_name, email, funding_customer_id, funding_customer_url, created_at
		FROM users WHERE id = $1`, id)
}

// FindUserByIdentityID returns the user document for an identity-provider
// account, or nil when absent.
func (s *LedgerStore) FindUserByIdentityID(ctx context.Context, identityUserID string) (*models.User, error) {
	return s.findUser(ctx, `
		SELECT id, identity_user_id, first_name, last_name, email, funding_customer_id, funding_customer_url, created_at
		FROM users WHERE identity_user_id = $1`, identityUserID)
}

func (s *LedgerStore) findUser(ctx context.Context, query, arg string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.IdentityUserID, &user.FirstName, &user.LastName,
		&user.Email, &user.FundingCustomerID, &user.FundingCustomerURL, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// FindLinksByUser returns the user's bank account links, empty when none.
func (s *LedgerStore) FindLinksByUser(ctx context.Context, userID string) ([]models.BankAccountLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, bank_id, account_id, access_token, funding_source_url, shareable_id, created_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank account links: %w", err)
	}
	defer rows.Close()

	links := []models.BankAccountLink{}
	for rows.Next() {
		var link models.BankAccountLink
		if err := rows.Scan(&link.ID, &link.UserID, &link.BankID, &link.AccountID,
			&link.AccessToken, &link.FundingSourceURL, &link.ShareableID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank account link: %w", err)
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

// FindLinkByShareableID resolves a link from its shareable ID, nil when absent.
func (s *LedgerStore) FindLinkByShareableID(ctx context.Context, shareableID string) (*models.BankAccountLink, error) {
	var link models.BankAccountLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, bank_id, account_id, access_token, funding_source_url, shareable_id, created_at
		FROM bank_accounts WHERE shareable_id = $1 LIMIT 1`, shareableID).Scan(
		&link.ID, &link.UserID, &link.BankID, &link.AccountID,
		&link.AccessToken, &link.FundingSourceURL, &link.ShareableID, &link.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank account link: %w", err)
	}
	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
