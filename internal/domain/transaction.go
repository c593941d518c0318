package domain

import (
	"time"
)

type TransactionStatus string

const (
	StatusWaitingPayment      TransactionStatus = "WAITING_PAYMENT"
	StatusWaitingConfirmation TransactionStatus = "WAITING_CONFIRMATION"
	StatusConfirmed           TransactionStatus = "CONFIRMED"
	StatusRejected            TransactionStatus = "REJECTED"
	StatusExpired             TransactionStatus = "EXPIRED"
	StatusCanceled            TransactionStatus = "CANCELED"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusWaitingPayment:      {StatusWaitingConfirmation, StatusExpired, StatusCanceled},
	StatusWaitingConfirmation: {StatusConfirmed, StatusRejected, StatusCanceled},
}

func (s TransactionStatus) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction is a booking. ID, UserID, EventID, TicketCount and CreatedAt never
// change after creation.
type Transaction struct {
	ID              uint              `json:"id"`
	UserID          uint              `json:"user_id"`
	EventID         uint              `json:"event_id"`
	TicketCount     int               `json:"ticket_count"`
	Status          TransactionStatus `json:"status"`
	Subtotal        int64             `json:"subtotal"`
	DiscountAmount  int64             `json:"discount_amount"`
	TotalAmount     int64             `json:"total_amount"`
	PointsUsed      int64             `json:"points_used"`
	PaymentProofRef string            `json:"payment_proof_ref,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	VoucherIDs      []uint            `json:"voucher_ids,omitempty"`
	CouponIDs       []uint            `json:"coupon_ids,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PaymentWindowOpen reports whether proof can still be uploaded at now.
func (t Transaction) PaymentWindowOpen(now time.Time) bool {
	if t.Status != StatusWaitingPayment {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// CreateTransactionInput is a booking request as received from the request layer.
type CreateTransactionInput struct {
	UserID       uint
	EventID      uint
	TicketCount  int
	VoucherCodes []string
	CouponCodes  []string
	PointsUsed   int64
	ReferralCode string
}

type Decision string

const (
	DecisionConfirm Decision = "CONFIRM"
	DecisionReject  Decision = "REJECT"
)

// StatusChange is emitted after a committed transition for the notification
// collaborator.
type StatusChange struct {
	ID            string            `json:"id"`
	TransactionID uint              `json:"transaction_id"`
	OldStatus     TransactionStatus `json:"old_status,omitempty"`
	NewStatus     TransactionStatus `json:"new_status"`
	UserEmail     string            `json:"user_email"`
	EventName     string            `json:"event_name"`
	TicketCount   int               `json:"ticket_count"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
