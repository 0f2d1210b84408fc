package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/service/bidding"
	"auctioneer/internal/auction/service/payment"
)

type DomainResponse struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Status            string           `json:"status"`
	CurrentHighestBid *decimal.Decimal `json:"current_highest_bid,omitempty"`
	CurrentOwner      string           `json:"current_owner,omitempty"`
	RenewalPrice      *decimal.Decimal `json:"renewal_price,omitempty"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
}

func toDomainResponse(d *models.Domain) *DomainResponse {
	resp := &DomainResponse{
		ID:                d.ID.String(),
		Name:              d.Name,
		Status:            string(d.Status),
		CurrentHighestBid: d.CurrentHighestBid,
		RenewalPrice:      d.RenewalPrice,
		ExpiryDate:        d.ExpiryDate,
	}
	if d.CurrentOwner != nil {
		resp.CurrentOwner = d.CurrentOwner.String()
	}
	return resp
}

// AuctionResponse never carries the leader's ceiling (HighestBid) or
// identity; bidders learn whether they lead from the eligibility endpoint.
type AuctionResponse struct {
	ID             string          `json:"id"`
	DomainID       string          `json:"domain_id"`
	Status         string          `json:"status"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	MinPrice       decimal.Decimal `json:"min_price"`
	MinIncrement   decimal.Decimal `json:"min_increment"`
	LeasePrice     decimal.Decimal `json:"lease_price"`
	ExpiryDuration int             `json:"expiry_duration"`
	CurrentBid     decimal.Decimal `json:"current_bid"`
	ReserveMet     bool            `json:"reserve_met"`
}

func toAuctionResponse(a *models.Auction) *AuctionResponse {
	return &AuctionResponse{
		ID:             a.ID.String(),
		DomainID:       a.DomainID.String(),
		Status:         string(a.Status),
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		MinPrice:       a.MinPrice,
		MinIncrement:   a.MinIncrement,
		LeasePrice:     a.LeasePrice,
		ExpiryDuration: a.ExpiryDuration,
		CurrentBid:     a.CurrentBid,
		ReserveMet:     a.CurrentBid.GreaterThanOrEqual(a.ReservePrice),
	}
}

type BidResponse struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	Amount     decimal.Decimal `json:"amount"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	Winning    bool            `json:"winning"`
	ReserveMet bool            `json:"reserve_met"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toBidResponse(r *bidding.BidResult) *BidResponse {
	return &BidResponse{
		ID:         r.Bid.ID.String(),
		AuctionID:  r.Bid.AuctionID.String(),
		Amount:     r.Bid.Amount,
		CurrentBid: r.CurrentBid,
		Winning:    r.Winning,
		ReserveMet: r.ReserveMet,
		CreatedAt:  r.Bid.CreatedAt,
	}
}

type EligibilityResponse struct {
	CanBid         bool            `json:"can_bid"`
	CanIncreaseBid bool            `json:"can_increase_bid"`
	CanLease       bool            `json:"can_lease"`
	CanMakeOffer   bool            `json:"can_make_offer"`
	MinimumBid     decimal.Decimal `json:"minimum_bid"`
	CurrentBid     decimal.Decimal `json:"current_bid"`
	Winning        bool            `json:"winning"`
}

func toEligibilityResponse(e *bidding.Eligibility) *EligibilityResponse {
	return &EligibilityResponse{
		CanBid:         e.CanBid,
		CanIncreaseBid: e.CanIncreaseBid,
		CanLease:       e.CanLease,
		CanMakeOffer:   e.CanMakeOffer,
		MinimumBid:     e.MinimumBid,
		CurrentBid:     e.CurrentBid,
		Winning:        e.Winning,
	}
}

type OfferResponse struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toOfferResponse(o *models.Offer) *OfferResponse {
	return &OfferResponse{
		ID:        o.ID.String(),
		AuctionID: o.AuctionID.String(),
		Amount:    o.Amount,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

type PaymentResponse struct {
	ID          string          `json:"id"`
	AuctionID   string          `json:"auction_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	CheckoutRef string          `json:"checkout_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toPaymentResponse(p *models.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:          p.ID.String(),
		AuctionID:   p.AuctionID.String(),
		Amount:      p.Amount,
		Kind:        string(p.Kind),
		Status:      string(p.Status),
		CheckoutRef: p.CheckoutRef,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type CompleteResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Outcome string           `json:"outcome,omitempty"`
}

func toCompleteResponse(r payment.CompleteResult) *CompleteResponse {
	return &CompleteResponse{
		Payment: toPaymentResponse(r.Payment),
		Outcome: string(r.Outcome),
	}
}
