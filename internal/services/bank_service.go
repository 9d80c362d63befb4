package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"log"

	"github.com/horizonpay/backend/internal/codec"
	"github.com/horizonpay/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

// ErrBankNotFound means no linked account matches the shareable ID.
var ErrBankNotFound = errors.New("bank account not found")

// BankService reads linked bank accounts. Lookups by shareable ID go
// through the codec first, so a forged or truncated ID is rejected before
// the ledger is queried.
type BankService struct {
	ledger Ledger
	codec  *codec.Codec
}

func NewBankService(ledger Ledger, idCodec *codec.Codec) *BankService {
	return &BankService{ledger: ledger, codec: idCodec}
}

// ListBanks returns the caller's linked accounts as public views. Access
// tokens and funding source URLs never leave the service.
func (s *BankService) ListBanks(ctx context.Context, userID string) ([]models.BankAccountView, error) {
	links, err := s.ledger.FindLinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.BankAccountView, 0, len(links))
	for _, link := range links {
		views = append(views, link.View())
	}
	return views, nil
}

// ResolveShared looks up a linked account from its shareable ID.
func (s *BankService) ResolveShared(ctx context.Context, shareableID string) (*models.BankAccountView, error) {
	accountID, err := s.codec.Decode(shareableID)
	if err != nil {
		return nil, ErrBankNotFound
	}

	link, err := s.ledger.FindLinkByShareableID(ctx, shareableID)
	if err != nil {
		return nil, err
	}
	if link == nil || link.AccountID != accountID {
		return nil, ErrBankNotFound
	}

	view := link.View()
	return &view, nil
}

// ShareQRCode renders a shareable ID as a base64 PNG so the recipient can
// scan it instead of typing the token.
func (s *BankService) ShareQRCode(ctx context.Context, shareableID string) (string, error) {
	if _, err := s.ResolveShared(ctx, shareableID); err != nil {
		return "", err
	}

	qr, err := qrcode.New(shareableID, qrcode.Medium)
	if err != nil {
		log.Printf("[BANK] QR render failed: %v", err)
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
