package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/horizonpay/backend/internal/aggregator"
	"github.com/horizonpay/backend/internal/codec"
	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/models"
)

// LinkState tracks how far a link attempt progressed. The workflow only
// moves forward; a failed attempt records the state it failed from and
// leaves no partial ledger writes behind.
type LinkState string

const (
	StateIdle                 LinkState = "idle"
	StateTokenExchanged       LinkState = "token_exchanged"
	StateCustomerResolved     LinkState = "customer_resolved"
	StateFundingSourceCreated LinkState = "funding_source_created"
	StateLinked               LinkState = "linked"
	StateFailed               LinkState = "failed"
)

// FailureReason classifies which party a link attempt failed against.
type FailureReason string

const (
	FailureAggregator      FailureReason = "aggregator"
	FailureFunding         FailureReason = "funding"
	FailurePersistence     FailureReason = "persistence"
	FailureMissingCustomer FailureReason = "missing_customer"
)

// LinkOutcome is the terminal result of a link attempt.
type LinkOutcome struct {
	State  LinkState               `json:"state"`
	Reason FailureReason           `json:"reason,omitempty"`
	Link   *models.BankAccountLink `json:"-"`

	// Replayed is set when the outcome was served from the idempotency
	// record of an earlier attempt.
	Replayed bool `json:"-"`
}

// Failed reports whether the attempt ended without a link.
func (o *LinkOutcome) Failed() bool {
	return o.State == StateFailed
}

// Ledger is the slice of LedgerStore the services need.
type Ledger interface {
	CreateUser(ctx context.Context, params database.CreateUserParams) (*models.User, error)
	CreateBankAccountLink(ctx context.Context, params database.CreateBankAccountLinkParams) (*models.BankAccountLink, error)
	FindUserByIdentityID(ctx context.Context, identityUserID string) (*models.User, error)
	FindLinksByUser(ctx context.Context, userID string) ([]models.BankAccountLink, error)
	FindLinkByShareableID(ctx context.Context, shareableID string) (*models.BankAccountLink, error)
}

var _ Ledger = (*database.LedgerStore)(nil)

const (
	idempotencyKeyPrefix = "link:idem:"
	idempotencyTTL       = 24 * time.Hour

	// processor named when minting tokens for the funding provider
	fundingProcessor = "dwolla"
)

// LinkService drives the bank-account link workflow: exchange the public
// token with the aggregator, attach a funding source at the ACH provider,
// then write the link document. Each step must succeed before the next
// runs; the ledger write is last so a provider failure leaves no record.
type LinkService struct {
	gateway aggregator.Gateway
	funding funding.Provider
	ledger  Ledger
	codec   *codec.Codec
	redis   *redis.Client
}

// NewLinkService creates the link workflow service. redisClient may be nil;
// idempotency replay is then disabled and every request runs the workflow.
func NewLinkService(gateway aggregator.Gateway, provider funding.Provider, ledger Ledger, idCodec *codec.Codec, redisClient *redis.Client) *LinkService {
	return &LinkService{
		gateway: gateway,
		funding: provider,
		ledger:  ledger,
		codec:   idCodec,
		redis:   redisClient,
	}
}

// CreateLinkToken asks the aggregator for a short-lived token the client
// uses to open the account-picker flow.
func (s *LinkService) CreateLinkToken(ctx context.Context, user *models.User) (string, error) {
	token, err := s.gateway.CreateLinkToken(ctx, user)
	if err != nil {
		log.Printf("[LINK] link token creation failed for user %s: %v", user.ID, err)
		return "", err
	}
	return token, nil
}

// ExchangePublicToken runs the full link workflow for one public token.
// The returned outcome is always terminal: StateLinked with the stored
// link, or StateFailed with the reason. Failures never leave a ledger row;
// a funding source orphaned by a late persistence failure is logged, not
// deleted.
func (s *LinkService) ExchangePublicToken(ctx context.Context, publicToken string, user *models.User, idempotencyKey string) *LinkOutcome {
	if outcome := s.replayOutcome(ctx, user.ID, idempotencyKey); outcome != nil {
		log.Printf("[LINK] replaying recorded outcome for user %s key %s", user.ID, idempotencyKey)
		return outcome
	}

	state := StateIdle

	exchange, err := s.gateway.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailureAggregator, err)
	}
	state = StateTokenExchanged

	account, err := s.gateway.PrimaryAccount(ctx, exchange.AccessToken)
	if err != nil {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailureAggregator, err)
	}

	if user.FundingCustomerURL == "" {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailureMissingCustomer,
			errors.New("user has no funding customer"))
	}
	state = StateCustomerResolved

	// the processor token exists only to mint a funding source, so its
	// failure counts against the funding step
	processorToken, err := s.gateway.CreateProcessorToken(ctx, exchange.AccessToken, account.AccountID, fundingProcessor)
	if err != nil {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailureFunding, err)
	}

	fundingSourceURL, err := s.funding.AddFundingSource(ctx, user.FundingCustomerURL, processorToken, account.Name)
	if err != nil {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailureFunding, err)
	}
	state = StateFundingSourceCreated

	shareableID, err := s.codec.Encode(account.AccountID)
	if err != nil {
		return s.fail(ctx, user.ID, idempotencyKey, state, FailurePersistence, err)
	}

	link, err := s.ledger.CreateBankAccountLink(ctx, database.CreateBankAccountLinkParams{
		UserID:           user.ID,
		BankID:           exchange.ItemID,
		AccountID:        account.AccountID,
		AccessToken:      exchange.AccessToken,
		FundingSourceURL: fundingSourceURL,
		ShareableID:      shareableID,
	})
	if err != nil {
		log.Printf("[LINK] funding source %s orphaned for user %s: ledger write failed", fundingSourceURL, user.ID)
		return s.fail(ctx, user.ID, idempotencyKey, state, FailurePersistence, err)
	}

	outcome := &LinkOutcome{State: StateLinked, Link: link}
	s.recordOutcome(ctx, user.ID, idempotencyKey, outcome)
	log.Printf("[LINK] linked account for user %s bank %s", user.ID, link.BankID)
	return outcome
}

func (s *LinkService) fail(ctx context.Context, userID, idempotencyKey string, from LinkState, reason FailureReason, err error) *LinkOutcome {
	log.Printf("[LINK] attempt for user %s failed at %s (%s): %v", userID, from, reason, err)
	outcome := &LinkOutcome{State: StateFailed, Reason: reason}
	s.recordOutcome(ctx, userID, idempotencyKey, outcome)
	return outcome
}

func idempotencyKeyFor(userID, key string) string {
	return idempotencyKeyPrefix + userID + ":" + key
}

func (s *LinkService) replayOutcome(ctx context.Context, userID, key string) *LinkOutcome {
	if s.redis == nil || key == "" {
		return nil
	}

	data, err := s.redis.Get(ctx, idempotencyKeyFor(userID, key)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("[LINK] idempotency lookup failed, running workflow: %v", err)
		return nil
	}

	var outcome LinkOutcome
	if err := json.Unmarshal([]byte(data), &outcome); err != nil {
		log.Printf("[LINK] discarding unreadable idempotency record: %v", err)
		return nil
	}
	outcome.Replayed = true
	return &outcome
}

func (s *LinkService) recordOutcome(ctx context.Context, userID, key string, outcome *LinkOutcome) {
	if s.redis == nil || key == "" {
		return
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, idempotencyKeyFor(userID, key), data, idempotencyTTL).Err(); err != nil {
		log.Printf("[LINK] failed to record idempotency outcome: %v", err)
	}
}

// HTTPStatus maps a failure reason to the response status.
func (r FailureReason) HTTPStatus() (int, string) {
	switch r {
	case FailureAggregator:
		return 502, "bank data provider is unavailable"
	case FailureFunding:
		return 502, "funding provider rejected the account"
	case FailureMissingCustomer:
		return 409, "account setup is incomplete"
	default:
		return 500, "failed to link bank account"
	}
}
