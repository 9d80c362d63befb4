package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/horizonpay/backend/internal/models"
	"github.com/horizonpay/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bankRouter(h *BankHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/banks", h.ListBanks)
	r.Get("/api/v1/banks/{shareableId}", h.GetSharedBank)
	r.Get("/api/v1/banks/{shareableId}/qr", h.ShareQR)
	return r
}

func TestBankHandler(t *testing.T) {
	idCodec := handlerCodec(t)
	shareableID, err := idCodec.Encode("acc_1")
	require.NoError(t, err)

	link := &models.BankAccountLink{
		ID:          "link-1",
		UserID:      "user-1",
		BankID:      "item_1",
		AccountID:   "acc_1",
		ShareableID: shareableID,
	}

	t.Run("lists the caller's banks", func(t *testing.T) {
		svc := services.NewBankService(&stubLedger{link: link}, idCodec)
		router := bankRouter(NewBankHandler(svc))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/banks", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("resolves a shared bank by shareable ID", func(t *testing.T) {
		svc := services.NewBankService(&stubLedger{link: link}, idCodec)
		router := bankRouter(NewBankHandler(svc))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/banks/"+shareableID, nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var view models.BankAccountView
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
		assert.Equal(t, "item_1", view.BankID)
	})

	t.Run("forged shareable ID yields 404", func(t *testing.T) {
		svc := services.NewBankService(&stubLedger{link: link}, idCodec)
		router := bankRouter(NewBankHandler(svc))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/banks/garbage-token", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("renders a QR code for a valid shareable ID", func(t *testing.T) {
		svc := services.NewBankService(&stubLedger{link: link}, idCodec)
		router := bankRouter(NewBankHandler(svc))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/banks/"+shareableID+"/qr", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotEmpty(t, resp["qrImage"])
	})
}
