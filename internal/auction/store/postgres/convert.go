package postgres

import (
	"time"

	"github.com/google/uuid"

	id "auctioneer/pkg/domain"
)

func nullableUser(v *id.UserID) uuid.NullUUID {
	if v == nil || v.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func nullableBid(v *id.BidID) uuid.NullUUID {
	if v == nil || v.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func updatedAt(updated, created time.Time) time.Time {
	if updated.IsZero() {
		return created
	}
	return updated
}

func userUUIDs(users []id.UserID) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.String()
	}
	return out
}
