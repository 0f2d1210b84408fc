// Package pricing implements proxy bidding: each bidder submits a private
// ceiling and the auction's public price rises only as far as needed to keep
// the leader ahead of the best challenger.
//
// The package is pure. Callers load a Snapshot inside their transaction, call
// Apply, and persist the Outcome.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

// Rejection reasons. Bid admission maps all of them to a bid-too-low or
// invalid-input domain error.
var (
	ErrInvalidAmount     = errors.New("bid amount must be positive with at most two decimal places")
	ErrBelowMinPrice     = errors.New("bid amount is below the minimum price")
	ErrIncrementTooSmall = errors.New("bid amount must exceed the current bid plus the minimum increment")
	ErrBelowOwnCeiling   = errors.New("bid amount must exceed your current maximum bid")
)

// Snapshot is the slice of auction state pricing needs.
type Snapshot struct {
	CurrentBid   decimal.Decimal
	HighestBid   decimal.Decimal
	MinPrice     decimal.Decimal
	MinIncrement decimal.Decimal
	ReservePrice decimal.Decimal
	Winner       *id.UserID
	BidCount     int
}

func (s Snapshot) isWinner(bidder id.UserID) bool {
	return s.Winner != nil && *s.Winner == bidder
}

// Outcome is the auction state after a bid has been applied.
type Outcome struct {
	CurrentBid decimal.Decimal
	HighestBid decimal.Decimal
	Winner     id.UserID
	// PreviousWinner is set only when the lead changed hands and someone held it.
	PreviousWinner *id.UserID
	WinnerChanged  bool
}

// ReserveMet reports whether the settlement price has reached reserve.
func (o Outcome) ReserveMet(reserve decimal.Decimal) bool {
	return o.CurrentBid.GreaterThanOrEqual(reserve)
}

// MinimumNextBid is the smallest amount Validate accepts from bidder.
// For the current leader it is the first cent above their own ceiling.
func MinimumNextBid(s Snapshot, bidder id.UserID) decimal.Decimal {
	cent := decimal.New(1, -2)
	switch {
	case s.BidCount == 0:
		return s.MinPrice
	case s.isWinner(bidder):
		return s.HighestBid.Add(cent)
	default:
		return s.CurrentBid.Add(s.MinIncrement).Add(cent)
	}
}

// Validate applies the admission rules without computing a new price.
func Validate(s Snapshot, bidder id.UserID, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	if s.BidCount == 0 {
		if amount.LessThan(s.MinPrice) {
			return ErrBelowMinPrice
		}
		return nil
	}
	if s.isWinner(bidder) {
		if !amount.GreaterThan(s.HighestBid) {
			return ErrBelowOwnCeiling
		}
		return nil
	}
	if !amount.GreaterThan(s.CurrentBid.Add(s.MinIncrement)) {
		return ErrIncrementTooSmall
	}
	return nil
}

// Apply validates the bid and computes the resulting auction state.
func Apply(s Snapshot, bidder id.UserID, amount decimal.Decimal) (Outcome, error) {
	if err := Validate(s, bidder, amount); err != nil {
		return Outcome{}, err
	}

	if s.BidCount == 0 {
		current := s.MinPrice
		if amount.GreaterThan(s.ReservePrice) {
			current = decimal.Max(s.ReservePrice, s.MinPrice)
		}
		return Outcome{
			CurrentBid:    current,
			HighestBid:    amount,
			Winner:        bidder,
			WinnerChanged: true,
		}, nil
	}

	if s.isWinner(bidder) {
		// Raising your own ceiling never bids against yourself; the price only
		// moves if the new ceiling is what first clears the reserve.
		current := s.CurrentBid
		if crossesReserve(s, amount) {
			current = s.ReservePrice
		}
		return Outcome{
			CurrentBid: current,
			HighestBid: amount,
			Winner:     bidder,
		}, nil
	}

	if amount.GreaterThan(s.HighestBid) {
		maxAllowed := s.HighestBid.Add(s.MinIncrement)
		current := decimal.Min(maxAllowed, amount)
		if crossesReserve(s, amount) {
			current = decimal.Max(s.ReservePrice, current)
		}
		out := Outcome{
			CurrentBid:    decimal.Max(current, s.CurrentBid),
			HighestBid:    amount,
			Winner:        bidder,
			WinnerChanged: true,
		}
		if s.Winner != nil && !s.Winner.IsNil() {
			prev := *s.Winner
			out.PreviousWinner = &prev
		}
		return out, nil
	}

	// Challenger at or below the leader's ceiling: the leader keeps the lead
	// (ties go to the earlier bid) but the price rises toward the challenge.
	maxChallenger := amount.Add(s.MinIncrement)
	current := decimal.Min(maxChallenger, s.HighestBid)
	if crossesReserve(s, amount) {
		current = decimal.Min(decimal.Max(s.ReservePrice, current), s.HighestBid)
	}
	out := Outcome{
		CurrentBid: decimal.Max(current, s.CurrentBid),
		HighestBid: s.HighestBid,
	}
	if s.Winner != nil {
		out.Winner = *s.Winner
	}
	return out, nil
}

func crossesReserve(s Snapshot, amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(s.ReservePrice) && s.CurrentBid.LessThan(s.ReservePrice)
}
