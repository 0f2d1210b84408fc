package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "auctioneer/pkg/domain-errors"
)

func TestParseErrorsNameTheIDKind(t *testing.T) {
	parsers := map[string]func(string) error{
		"auction": func(s string) error { _, err := ParseAuctionID(s); return err },
		"bid":     func(s string) error { _, err := ParseBidID(s); return err },
		"payment": func(s string) error { _, err := ParsePaymentID(s); return err },
		"domain":  func(s string) error { _, err := ParseDomainID(s); return err },
		"user":    func(s string) error { _, err := ParseUserID(s); return err },
		"offer":   func(s string) error { _, err := ParseOfferID(s); return err },
	}
	for kind, parse := range parsers {
		t.Run(kind, func(t *testing.T) {
			err := parse("")
			require.Error(t, err)
			assert.Equal(t, kind+" id cannot be empty", dErrors.MessageOf(err))

			err = parse("not-a-uuid")
			assert.Equal(t, "invalid "+kind+" id", dErrors.MessageOf(err))

			err = parse(uuid.Nil.String())
			assert.Equal(t, kind+" id cannot be nil", dErrors.MessageOf(err))
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

			assert.NoError(t, parse(uuid.NewString()))
		})
	}
}

func TestParsedIDKeepsValue(t *testing.T) {
	raw := uuid.New()
	auction, err := ParseAuctionID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, AuctionID(raw), auction)
	assert.Equal(t, raw.String(), auction.String())
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE auctions;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePaymentID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewIDs_AreNotNil(t *testing.T) {
	assert.False(t, NewAuctionID().IsNil())
	assert.False(t, NewBidID().IsNil())
	assert.False(t, NewPaymentID().IsNil())
	assert.False(t, NewDomainID().IsNil())
	assert.False(t, NewUserID().IsNil())
	assert.False(t, NewOfferID().IsNil())
	assert.True(t, UserID{}.IsNil())
}

func TestIDs_JSONUsesCanonicalString(t *testing.T) {
	raw := uuid.New()
	payload := struct {
		Bidder UserID `json:"bidder"`
	}{Bidder: UserID(raw)}

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bidder":"`+raw.String()+`"}`, string(b))

	var decoded struct {
		Bidder UserID `json:"bidder"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, UserID(raw), decoded.Bidder)
}
