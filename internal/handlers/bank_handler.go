package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/horizonpay/backend/internal/middleware"
	"github.com/horizonpay/backend/internal/services"
)

type BankHandler struct {
	service *services.BankService
}

func NewBankHandler(service *services.BankService) *BankHandler {
	return &BankHandler{service: service}
}

// ListBanks lists the caller's linked accounts
// @Summary List linked banks
// @Tags banks
// @Produce json
// @Security SessionCookie
// @Success 200 {object} object{banks=[]models.BankAccountView}
// @Failure 401 {object} services.ErrorResponse
// @Router /api/v1/banks [get]
func (h *BankHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	auth := middleware.AuthFromContext(r.Context())
	if auth == nil {
		services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	banks, err := h.service.ListBanks(r.Context(), auth.User.ID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to list bank accounts", http.StatusInternalServerError, nil)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

// GetSharedBank resolves a shareable ID
// @Summary Resolve a shared bank account
// @Tags banks
// @Produce json
// @Security SessionCookie
// @Param shareableId path string true "Shareable account ID"
// @Success 200 {object} models.BankAccountView
// @Failure 404 {object} services.ErrorResponse
// @Router /api/v1/banks/{shareableId} [get]
func (h *BankHandler) GetSharedBank(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResolveShared(r.Context(), chi.URLParam(r, "shareableId"))
	if err != nil {
		if errors.Is(err, services.ErrBankNotFound) {
			services.SendErrorResponse(w, "Bank account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to resolve bank account", http.StatusInternalServerError, nil)
		return
	}

	services.WriteJSON(w, http.StatusOK, view)
}

// ShareQR renders a shareable ID as a QR code
// @Summary QR code for a shared bank account
// @Tags banks
// @Produce json
// @Security SessionCookie
// @Param shareableId path string true "Shareable account ID"
// @Success 200 {object} object{qrImage=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /api/v1/banks/{shareableId}/qr [get]
func (h *BankHandler) ShareQR(w http.ResponseWriter, r *http.Request) {
	image, err := h.service.ShareQRCode(r.Context(), chi.URLParam(r, "shareableId"))
	if err != nil {
		if errors.Is(err, services.ErrBankNotFound) {
			services.SendErrorResponse(w, "Bank account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to render QR code", http.StatusInternalServerError, nil)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]string{"qrImage": image})
}
