package models

import "time"

// BankAccountLink records one linked external bank account. Rows are
// insert-only: re-linking the same institution creates a new document.
type BankAccountLink struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	BankID           string    `json:"bankId"`    // Aggregator item ID
	AccountID        string    `json:"accountId"` // Raw external account ID
	AccessToken      string    `json:"-"`         // Aggregator secret, never serialized
	FundingSourceURL string    `json:"-"`         // Funding-provider resource URL
	ShareableID      string    `json:"shareableId"`
	CreatedAt        time.Time `json:"createdAt"`
}

// BankAccountView is the client-facing shape of a link. It carries no
// secrets and no raw external account identifier.
type BankAccountView struct {
	ID          string `json:"id"`
	BankID      string `json:"bankId"`
	ShareableID string `json:"shareableId"`
}

// View strips the secret fields from a link.
func (b *BankAccountLink) View() BankAccountView {
	return BankAccountView{
		ID:          b.ID,
		BankID:      b.BankID,
		ShareableID: b.ShareableID,
	}
}
