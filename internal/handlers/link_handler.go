package handlers

import (
	"errors"
	"net/http"

	"github.com/horizonpay/backend/internal/aggregator"
	"github.com/horizonpay/backend/internal/middleware"
	"github.com/horizonpay/backend/internal/services"
)

// IdempotencyKeyHeader lets clients make exchange retries safe. A repeated
// key replays the recorded outcome instead of rerunning the workflow.
const IdempotencyKeyHeader = "Idempotency-Key"

type LinkHandler struct {
	service   *services.LinkService
	validator *services.ValidationHelper
}

func NewLinkHandler(service *services.LinkService) *LinkHandler {
	return &LinkHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateLinkToken issues a token for the client account-picker flow
// @Summary Create link token
// @Description Request a short-lived token from the bank data aggregator
// @Tags link
// @Produce json
// @Security SessionCookie
// @Success 200 {object} object{linkToken=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /api/v1/link/token [post]
func (h *LinkHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	auth := middleware.AuthFromContext(r.Context())
	if auth == nil {
		services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	token, err := h.service.CreateLinkToken(r.Context(), auth.User)
	if err != nil {
		if errors.Is(err, aggregator.ErrUpstreamUnavailable) {
			services.SendErrorResponse(w, "Bank data provider is unavailable", http.StatusBadGateway, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to create link token", http.StatusInternalServerError, nil)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]string{"linkToken": token})
}

// ExchangePublicToken links a bank account end to end
// @Summary Exchange public token
// @Description Exchanges the aggregator public token, attaches an ACH funding source and stores the link
// @Tags link
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param Idempotency-Key header string false "Key making retries replay-safe"
// @Param request body object{publicToken=string} true "Public token from the account picker"
// @Success 200 {object} object{publicTokenExchange=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /api/v1/link/exchange [post]
func (h *LinkHandler) ExchangePublicToken(w http.ResponseWriter, r *http.Request) {
	auth := middleware.AuthFromContext(r.Context())
	if auth == nil {
		services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		PublicToken string `json:"publicToken" validate:"required"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	outcome := h.service.ExchangePublicToken(r.Context(), req.PublicToken, auth.User,
		r.Header.Get(IdempotencyKeyHeader))
	if outcome.Failed() {
		status, message := outcome.Reason.HTTPStatus()
		services.SendErrorResponse(w, message, status, nil)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]string{"publicTokenExchange": "complete"})
}
