package identity

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

var (
	// ErrNoSession means the session secret is missing, expired or revoked.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredentials covers unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateAccount means the email already has an account.
	ErrDuplicateAccount = errors.New("account already exists")
)

// Account is an identity-provider account.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is an authenticated session. Secret is opaque to callers; the
// transport layer stores it in an HTTP-only cookie.
type Session struct {
	Secret    string
	ExpiresAt time.Time
}

// Provider is the identity contract the wallet consumes: account and session
// lifecycle only. The orchestration core never sees provider internals.
type Provider interface {
	CreateAccount(ctx context.Context, email, password, name string) (*Account, error)
	CreateSession(ctx context.Context, email, password string) (*Session, error)
	GetCurrentUser(ctx context.Context, sessionSecret string) (*Account, error)
	DeleteSession(ctx context.Context, sessionSecret string) error
}

// Service is the default Provider implementation, backed by Postgres for
// accounts and Redis for session revocation.
type Service struct {
	db    *sql.DB
	redis *redis.Client
}

var _ Provider = (*Service)(nil)

func NewService(db *sql.DB, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

// CreateAccount registers a new identity account.
func (s *Service) CreateAccount(ctx context.Context, email, password, name string) (*Account, error) {
	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &Account{
		ID:    uuid.NewString(),
		Email: strings.ToLower(email),
		Name:  name,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identity_accounts (id, email, password, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Email, hashedPassword, account.Name, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	log.Printf("[IDENTITY] Account created - ID: %s, Email: %s", account.ID, account.Email)
	return account, nil
}

// CreateSession authenticates the email/password pair and issues a session
// secret. The secret is a signed HS256 token carrying the account ID.
func (s *Service) CreateSession(ctx context.Context, email, password string) (*Session, error) {
	var accountID, hashedPassword string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password FROM identity_accounts WHERE email = $1`,
		strings.ToLower(email)).Scan(&accountID, &hashedPassword)
	if err != nil {
		log.Printf("[IDENTITY] Session refused - unknown email: %s", email)
		return nil, ErrInvalidCredentials
	}

	if !verifyPassword(password, hashedPassword) {
		log.Printf("[IDENTITY] Session refused - bad password for account %s", accountID)
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(time.Duration(viper.GetInt("session.expiry_hours")) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"exp":        expiresAt.Unix(),
	})

	secret, err := token.SignedString([]byte(viper.GetString("session.secret_key")))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &Session{Secret: secret, ExpiresAt: expiresAt}, nil
}

// GetCurrentUser resolves the session secret to its account. Revoked,
// expired or malformed secrets yield ErrNoSession.
func (s *Service) GetCurrentUser(ctx context.Context, sessionSecret string) (*Account, error) {
	accountID, err := s.parseSession(sessionSecret)
	if err != nil {
		return nil, ErrNoSession
	}

	if s.redis != nil {
		revoked, err := s.redis.Exists(ctx, revocationKey(sessionSecret)).Result()
		if err == nil && revoked > 0 {
			return nil, ErrNoSession
		}
	}

	var account Account
	err = s.db.QueryRowContext(ctx,
		`SELECT id, email, name FROM identity_accounts WHERE id = $1`,
		accountID).Scan(&account.ID, &account.Email, &account.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	return &account, nil
}

// DeleteSession revokes a session secret until its natural expiry.
func (s *Service) DeleteSession(ctx context.Context, sessionSecret string) error {
	if s.redis == nil {
		return nil
	}

	expiry := time.Duration(viper.GetInt("session.expiry_hours")) * time.Hour
	if err := s.redis.Set(ctx, revocationKey(sessionSecret), "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *Service) parseSession(sessionSecret string) (string, error) {
	token, err := jwt.Parse(sessionSecret, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("session.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrNoSession
	}

	accountID, ok := claims["account_id"].(string)
	if !ok || accountID == "" {
		return "", ErrNoSession
	}

	return accountID, nil
}

// revocationKey hashes the secret so the raw token never lands in Redis.
func revocationKey(sessionSecret string) string {
	sum := sha256.Sum256([]byte(sessionSecret))
	return "session:revoked:" + hex.EncodeToString(sum[:])
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
