package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/middleware"
	"github.com/horizonpay/backend/internal/models"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

const walletBIC = "HRZNUS00"

// TransferService moves money between linked funding sources through the
// ACH provider and emits a pacs.008 record of the instruction for
// downstream settlement tooling.
type TransferService struct {
	funding    funding.Provider
	ledger     Ledger
	validation *ValidationHelper
}

func NewTransferService(provider funding.Provider, ledger Ledger) *TransferService {
	return &TransferService{
		funding:    provider,
		ledger:     ledger,
		validation: NewValidationHelper(),
	}
}

// TransferRequest names the sender by the caller's bank link ID and the
// receiver by the shareable ID they were handed.
type TransferRequest struct {
	SenderBankID        string `json:"senderBankId" validate:"required"`
	ReceiverShareableID string `json:"receiverShareableId" validate:"required"`
	Amount              string `json:"amount" validate:"required"`
	Currency            string `json:"currency" validate:"omitempty,len=3"`
}

// CreateTransfer godoc
// @Summary Transfer between linked accounts
// @Description Initiates an ACH transfer from the caller's linked account to a shared one
// @Tags transfers
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer details"
// @Success 201 {object} object{status=string,transferUrl=string,messageType=string,xml=string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/transfers [post]
// @Security SessionCookie
func (s *TransferService) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	auth := middleware.AuthFromContext(r.Context())
	if auth == nil {
		SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	var req TransferRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validation.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil || amount <= 0 {
		SendErrorResponse(w, "Amount must be a positive decimal", http.StatusBadRequest, nil)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	sender, err := s.senderLink(r.Context(), auth.User.ID, req.SenderBankID)
	if err != nil {
		SendErrorResponse(w, "Sender bank account not found", http.StatusNotFound, nil)
		return
	}

	receiver, err := s.ledger.FindLinkByShareableID(r.Context(), req.ReceiverShareableID)
	if err != nil {
		SendErrorResponse(w, "Failed to resolve receiver", http.StatusInternalServerError, nil)
		return
	}
	if receiver == nil {
		SendErrorResponse(w, "Receiver bank account not found", http.StatusNotFound, nil)
		return
	}
	if receiver.FundingSourceURL == sender.FundingSourceURL {
		SendErrorResponse(w, "Sender and receiver are the same account", http.StatusBadRequest, nil)
		return
	}

	transferURL, err := s.funding.CreateTransfer(r.Context(),
		sender.FundingSourceURL, receiver.FundingSourceURL, req.Amount, currency)
	if err != nil {
		log.Printf("[TRANSFER] provider rejected transfer from %s: %v", sender.ID, err)
		if errors.Is(err, funding.ErrProviderUnavailable) {
			SendErrorResponse(w, "Funding provider is unavailable", http.StatusBadGateway, nil)
			return
		}
		SendErrorResponse(w, "Transfer was declined", http.StatusUnprocessableEntity, nil)
		return
	}

	xmlData, err := s.pacs008XML(sender, receiver, amount, currency)
	if err != nil {
		// the ACH transfer already went through, report it anyway
		log.Printf("[TRANSFER] pacs.008 export failed for %s: %v", transferURL, err)
		xmlData = ""
	}

	log.Printf("[TRANSFER] created %s (%s %s)", transferURL, req.Amount, currency)
	WriteJSON(w, http.StatusCreated, map[string]any{
		"status":      "created",
		"transferUrl": transferURL,
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

func (s *TransferService) senderLink(ctx context.Context, userID, linkID string) (*models.BankAccountLink, error) {
	links, err := s.ledger.FindLinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range links {
		if links[i].ID == linkID {
			return &links[i], nil
		}
	}
	return nil, errors.New("link not owned by caller")
}

// pacs008XML renders the transfer as a pacs.008 FIToFICustomerCreditTransfer.
// Parties are named by shareable IDs, never by raw account identifiers.
func (s *TransferService) pacs008XML(sender, receiver *models.BankAccountLink, amount float64, currency string) (string, error) {
	msgID := uuid.New().String()
	now := time.Now()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(msgID)}[0],
					EndToEndId: common.Max35Text(msgID),
					TxId:       &[]common.Max35Text{common.Max35Text(msgID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(walletBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(sender.ShareableID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(receiver.BankID),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(receiver.ShareableID)}[0],
				},
			},
		},
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
