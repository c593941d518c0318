package domain

import "time"

type PointsType string

const (
	PointsEarned  PointsType = "EARNED"
	PointsUsed    PointsType = "USED"
	PointsExpired PointsType = "EXPIRED"
)

// PointsEntry is one append-only row of a user's points history. Points is a
// signed delta. Only EARNED rows carry an ExpiresAt.
type PointsEntry struct {
	ID            uint       `json:"id"`
	UserID        uint       `json:"user_id"`
	Points        int64      `json:"points"`
	Type          PointsType `json:"type"`
	Reason        string     `json:"reason"`
	TransactionID *uint      `json:"transaction_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ProjectBalance sums the deltas that still count toward a balance.
func ProjectBalance(entries []PointsEntry) int64 {
	var total int64
	for _, e := range entries {
		if e.Type == PointsExpired {
			continue
		}
		total += e.Points
	}
	return total
}

type PointsSummary struct {
	Balance          int64         `json:"balance"`
	ProjectedBalance int64         `json:"projected_balance"`
	History          []PointsEntry `json:"history"`
}

// History reasons written when a grant expires. The carry-over row offsets
// spends that the expired grant funded and grants nothing new.
const (
	ReasonPointsExpired     = "points expired"
	ReasonSpentBeforeExpiry = "carry-over of points spent before expiry"
)

// SplitExpiry decides how much of an expiring grant leaves the balance. Points
// of the grant that were already spent cannot be taken back, so only what the
// balance still holds is removed; the rest is carried over so the history
// still sums to the balance.
func SplitExpiry(grant, balance int64) (removed, carried int64) {
	removed = grant
	if balance < removed {
		removed = balance
	}
	if removed < 0 {
		removed = 0
	}
	return removed, grant - removed
}
