package services

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/horizonpay/backend/internal/codec"
	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/identity"
	"github.com/horizonpay/backend/internal/middleware"
)

// UserService owns sign-up, sign-in and session teardown. Sign-up is the
// bootstrap step of the wallet: identity account, funding customer and user
// document are created in that order, and a failure after the identity
// account exists is logged rather than rolled back.
type UserService struct {
	identity   identity.Provider
	funding    funding.Provider
	ledger     Ledger
	codec      *codec.Codec
	validation *ValidationHelper
}

func NewUserService(provider identity.Provider, fundingProvider funding.Provider, ledger Ledger, idCodec *codec.Codec) *UserService {
	return &UserService{
		identity:   provider,
		funding:    fundingProvider,
		ledger:     ledger,
		codec:      idCodec,
		validation: NewValidationHelper(),
	}
}

// SignUpRequest carries the registration form. The address and identity
// fields go to the funding provider's customer record.
type SignUpRequest struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Address1    string `json:"address1" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required,len=2"`
	PostalCode  string `json:"postalCode" validate:"required,len=5"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	SSN         string `json:"ssn" validate:"required,len=4"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUp godoc
// @Summary Register a wallet user
// @Description Creates the identity account, funding customer and user record, then opens a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Registration details"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/auth/sign-up [post]
func (s *UserService) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validation.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	fullName := req.FirstName + " " + req.LastName

	account, err := s.identity.CreateAccount(r.Context(), req.Email, req.Password, fullName)
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateAccount) {
			SendErrorResponse(w, "An account with this email already exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[USER] identity account creation failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	customerURL, err := s.funding.CreateCustomer(r.Context(), funding.CustomerRequest{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Type:        "personal",
		Address1:    req.Address1,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		DateOfBirth: req.DateOfBirth,
		SSN:         req.SSN,
	})
	if err != nil {
		// identity account survives; sign-up can be retried once the
		// provider recovers and the duplicate is surfaced then
		log.Printf("[USER] funding customer creation failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "Funding provider is unavailable", http.StatusBadGateway, nil)
		return
	}

	// the customer id is stored and served in its encoded form only; the
	// raw provider id never leaves the resource URL column
	customerID, err := s.codec.Encode(codec.CustomerIDFromURL(customerURL))
	if err != nil {
		log.Printf("[USER] customer id encoding failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	user, err := s.ledger.CreateUser(r.Context(), database.CreateUserParams{
		IdentityUserID:     account.ID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		FundingCustomerID:  customerID,
		FundingCustomerURL: customerURL,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			SendErrorResponse(w, "An account with this email already exists", http.StatusConflict, nil)
			return
		}
		log.Printf("[USER] user record creation failed, funding customer %s orphaned: %v", customerURL, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	session, err := s.identity.CreateSession(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("[USER] session creation after sign-up failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "Account created but sign-in failed", http.StatusInternalServerError, nil)
		return
	}

	setSessionCookie(w, session)
	log.Printf("[USER] registered user %s", user.ID)
	WriteJSON(w, http.StatusCreated, user)
}

// SignIn godoc
// @Summary Open a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/sign-in [post]
func (s *UserService) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validation.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	session, err := s.identity.CreateSession(r.Context(), req.Email, req.Password)
	if err != nil {
		SendErrorResponse(w, "Invalid email or password", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.identity.GetCurrentUser(r.Context(), session.Secret)
	if err != nil {
		SendErrorResponse(w, "Failed to resolve session", http.StatusInternalServerError, nil)
		return
	}

	user, err := s.ledger.FindUserByIdentityID(r.Context(), account.ID)
	if err != nil || user == nil {
		SendErrorResponse(w, "User record not found", http.StatusUnauthorized, nil)
		return
	}

	setSessionCookie(w, session)
	WriteJSON(w, http.StatusOK, user)
}

// Logout godoc
// @Summary Close the current session
// @Tags auth
// @Success 204 "No Content"
// @Router /api/v1/auth/logout [post]
func (s *UserService) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.identity.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Printf("[USER] session revocation failed: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me godoc
// @Summary Return the signed-in user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/me [get]
// @Security SessionCookie
func (s *UserService) Me(w http.ResponseWriter, r *http.Request) {
	auth := middleware.AuthFromContext(r.Context())
	if auth == nil {
		SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}
	WriteJSON(w, http.StatusOK, auth.User)
}

func setSessionCookie(w http.ResponseWriter, session *identity.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Secret,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
