package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/identity"
	"github.com/horizonpay/backend/internal/models"
)

// SessionCookieName carries the identity-provider session secret. The cookie
// is HTTP-only, Secure and SameSite=Strict; its value never reaches scripts.
const SessionCookieName = "wallet-session"

type contextKey string

const (
	accountKey contextKey = "identityAccount"
	userKey    contextKey = "walletUser"
)

// AuthContext is the caller's resolved identity, passed explicitly to every
// operation that needs it instead of being looked up ambiently.
type AuthContext struct {
	Account *identity.Account
	User    *models.User
}

// Auth builds middleware that resolves the session secret (cookie or Bearer
// header) to the identity account and its wallet user document. Requests
// without a live session are rejected before reaching handlers.
func Auth(provider identity.Provider, store *database.LedgerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := sessionSecret(r)
			if secret == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			account, err := provider.GetCurrentUser(r.Context(), secret)
			if err != nil {
				http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}

			user, err := store.FindUserByIdentityID(r.Context(), account.ID)
			if err != nil {
				http.Error(w, "Failed to resolve user", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "User not found", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountKey, account)
			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFromContext returns the caller's identity, or nil outside Auth.
func AuthFromContext(ctx context.Context) *AuthContext {
	account, _ := ctx.Value(accountKey).(*identity.Account)
	user, _ := ctx.Value(userKey).(*models.User)
	if account == nil || user == nil {
		return nil
	}
	return &AuthContext{Account: account, User: user}
}

// WithAuth injects a resolved identity into the context. Test helper and
// escape hatch for internal calls that already resolved the caller.
func WithAuth(ctx context.Context, account *identity.Account, user *models.User) context.Context {
	ctx = context.WithValue(ctx, accountKey, account)
	return context.WithValue(ctx, userKey, user)
}

func sessionSecret(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}
