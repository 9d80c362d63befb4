package models

import "time"

// User is a wallet user document. The funding-provider customer linkage is
// written once at sign-up and never mutated afterwards.
type User struct {
	ID                 string    `json:"id" example:"7a1f2c9e-0b44-4f1d-9c1a-8f2e6d3b5a70"` // Document ID
	IdentityUserID     string    `json:"identityUserId"`                                    // Identity-provider account ID
	FirstName          string    `json:"firstName" example:"John"`
	LastName           string    `json:"lastName" example:"Doe"`
	Email              string    `json:"email" example:"user@example.com"`
	FundingCustomerID  string    `json:"fundingCustomerId"` // Encoded funding-provider customer ID
	FundingCustomerURL string    `json:"-"`                 // Provider resource URL, never sent to clients
	CreatedAt          time.Time `json:"createdAt"`
}

// FullName is the display name passed to the aggregator on link-token creation.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
