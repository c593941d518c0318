package domain

import "time"

const (
	RoleCustomer  = "customer"
	RoleOrganizer = "organizer"
)

type User struct {
	ID            uint      `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	ReferralCode  string    `json:"referral_code"`
	ReferredBy    *uint     `json:"referred_by,omitempty"`
	PointsBalance int64     `json:"points_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Principal is the authenticated actor as issued by the identity service.
type Principal struct {
	UserID uint
	Role   string
}

func (p Principal) IsOrganizer() bool {
	return p.Role == RoleOrganizer
}
