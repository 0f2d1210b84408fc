package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "auctioneer/pkg/domain"
)

func TestDomain_Relist(t *testing.T) {
	bid := decimal.NewFromInt(120)
	d := &Domain{Status: DomainAuctionEnded, CurrentHighestBid: &bid}

	d.Relist(time.Now())

	assert.Equal(t, DomainListed, d.Status)
	assert.Nil(t, d.CurrentHighestBid)
}

func TestDomain_Transfer(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	owner := id.NewUserID()
	d := &Domain{Status: DomainAuctionEnded}

	d.Transfer(owner, decimal.NewFromInt(75), 365, now)

	assert.Equal(t, DomainPaymentCompleted, d.Status)
	require.NotNil(t, d.CurrentOwner)
	assert.Equal(t, owner, *d.CurrentOwner)
	assert.Equal(t, now, *d.RegistrationDate)
	assert.True(t, decimal.NewFromInt(75).Equal(*d.RenewalPrice))
	assert.Equal(t, time.Date(2027, 1, 10, 12, 0, 0, 0, time.UTC), *d.ExpiryDate)
}

func TestOutboxEntry_OutbidPayload(t *testing.T) {
	notice := OutbidNotice{
		AuctionID:     id.NewAuctionID(),
		DomainID:      id.NewDomainID(),
		DomainName:    "example.com",
		PreviousOwner: id.NewUserID(),
		NewCurrentBid: decimal.RequireFromString("61.50"),
		OccurredAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	entry, err := NewOutbidEntry(notice)
	require.NoError(t, err)
	assert.Equal(t, EventOutbid, entry.EventType)
	assert.Equal(t, notice.AuctionID, entry.AggregateID)

	decoded, err := entry.DecodeOutbid()
	require.NoError(t, err)
	assert.Equal(t, notice.PreviousOwner, decoded.PreviousOwner)
	assert.True(t, notice.NewCurrentBid.Equal(decoded.NewCurrentBid))
}
