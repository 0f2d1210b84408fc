package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/email"
)

const maxCheckoutRefLen = 128

// ListDomainRequest is the body for POST /domains.
type ListDomainRequest struct {
	Name string `json:"name"`
}

func (r *ListDomainRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

// CreateAuctionRequest is the body for POST /auctions.
type CreateAuctionRequest struct {
	DomainID       string          `json:"domain_id"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	MinPrice       decimal.Decimal `json:"min_price"`
	MinIncrement   decimal.Decimal `json:"min_increment"`
	ReservePrice   decimal.Decimal `json:"reserve_price"`
	LeasePrice     decimal.Decimal `json:"lease_price"`
	ExpiryDuration int             `json:"expiry_duration"`

	parsedDomainID id.DomainID
}

func (r *CreateAuctionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	domainID, err := id.ParseDomainID(r.DomainID)
	if err != nil {
		return err
	}
	r.parsedDomainID = domainID
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "start_time and end_time are required")
	}
	return nil
}

// AmountRequest is the body for bids and offers.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	return nil
}

// CheckoutRequest is the body for POST /payments/{paymentID}/checkout.
type CheckoutRequest struct {
	CheckoutRef string `json:"checkout_ref"`
}

func (r *CheckoutRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CheckoutRef = strings.TrimSpace(r.CheckoutRef)
	if r.CheckoutRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "checkout_ref is required")
	}
	if len(r.CheckoutRef) > maxCheckoutRefLen {
		return dErrors.New(dErrors.CodeInvalidInput, "checkout_ref is too long")
	}
	return nil
}

// CompleteRequest is the checkout provider's callback body.
type CompleteRequest struct {
	CheckoutRef string `json:"checkout_ref"`
	Paid        *bool  `json:"paid"`
}

func (r *CompleteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CheckoutRef = strings.TrimSpace(r.CheckoutRef)
	if r.CheckoutRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "checkout_ref is required")
	}
	if r.Paid == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "paid is required")
	}
	return nil
}

// SettingRequest is the body for PUT /settings/{key}.
type SettingRequest struct {
	Value *float64 `json:"value"`
}

func (r *SettingRequest) Validate() error {
	if r == nil || r.Value == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "value is required")
	}
	if *r.Value <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "value must be positive")
	}
	return nil
}

// tunableSettings are the keys operators may change at runtime.
var tunableSettings = map[string]func(float64) bool{
	models.SettingPendingThresholdSeconds:       func(v float64) bool { return v >= 1 },
	models.SettingLeasePriceThresholdPercentage: func(v float64) bool { return v <= 100 },
}

// ContactRequest is the body for PUT /users/me/contact.
type ContactRequest struct {
	Email string `json:"email"`

	normalized string
}

func (r *ContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	addr, ok := email.Normalize(r.Email)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "email is invalid")
	}
	r.normalized = addr
	return nil
}
