package v1

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

func TestHandleCreateTransaction(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		r, m := newRouter()
		want := domain.CreateTransactionInput{
			UserID:       7,
			EventID:      3,
			TicketCount:  2,
			VoucherCodes: []string{"EARLY10"},
			PointsUsed:   500,
		}
		m.transactions.On("Create", mock.Anything, want).
			Return(domain.Transaction{ID: 41, UserID: 7, EventID: 3, TicketCount: 2, Status: domain.StatusWaitingPayment, TotalAmount: 179500}, nil)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions", bearer(t, 7, domain.RoleCustomer), map[string]any{
			"event_id":      3,
			"ticket_count":  2,
			"voucher_codes": []string{"EARLY10"},
			"points_used":   500,
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		got := decode[domain.Transaction](t, rec)
		assert.Equal(t, uint(41), got.ID)
		assert.Equal(t, domain.StatusWaitingPayment, got.Status)
		assert.Equal(t, int64(179500), got.TotalAmount)
		m.assert(t)
	})

	t.Run("the buyer is always the caller", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("Create", mock.Anything, mock.MatchedBy(func(in domain.CreateTransactionInput) bool {
			return in.UserID == 9
		})).Return(domain.Transaction{ID: 1, UserID: 9}, nil)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions", bearer(t, 9, domain.RoleCustomer),
			`{"event_id": 3, "ticket_count": 1, "user_id": 1}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		m.assert(t)
	})

	tests := []struct {
		name       string
		auth       bool
		body       any
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "no token", body: `{"event_id": 3, "ticket_count": 1}`, wantStatus: http.StatusUnauthorized},
		{name: "malformed json", auth: true, body: `{"event_id":`, wantStatus: http.StatusBadRequest},
		{name: "too many tickets", auth: true, body: `{"event_id": 3, "ticket_count": 51}`, wantStatus: http.StatusBadRequest},
		{name: "negative points", auth: true, body: `{"event_id": 3, "ticket_count": 1, "points_used": -5}`, wantStatus: http.StatusBadRequest},
		{name: "bad voucher code", auth: true, body: `{"event_id": 3, "ticket_count": 1, "voucher_codes": ["no spaces"]}`, wantStatus: http.StatusBadRequest},
		{
			name:       "sold out",
			auth:       true,
			body:       `{"event_id": 3, "ticket_count": 1}`,
			err:        fmt.Errorf("lt.Inventory().Reserve -> %w", domain.ErrInsufficientInventory),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  domain.ErrInsufficientInventory.Error(),
		},
		{
			name:       "unknown event",
			auth:       true,
			body:       `{"event_id": 3, "ticket_count": 1}`,
			err:        fmt.Errorf("lt.Catalog().FindEvent -> %w", domain.ErrEventNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "event not found",
		},
		{
			name:       "points short",
			auth:       true,
			body:       `{"event_id": 3, "ticket_count": 1, "points_used": 100}`,
			err:        fmt.Errorf("lt.Points().Debit -> %w", domain.ErrInsufficientPoints),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "retries exhausted",
			auth:       true,
			body:       `{"event_id": 3, "ticket_count": 1}`,
			err:        fmt.Errorf("%w: serialization failure", domain.ErrConcurrencyConflict),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected",
			auth:       true,
			body:       `{"event_id": 3, "ticket_count": 1}`,
			err:        fmt.Errorf("db is on fire"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRouter()
			if tt.err != nil {
				m.transactions.On("Create", mock.Anything, mock.Anything).Return(domain.Transaction{}, tt.err)
			}

			auth := ""
			if tt.auth {
				auth = bearer(t, 7, domain.RoleCustomer)
			}
			rec := do(t, r, http.MethodPost, "/api/v1/transactions", auth, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode[map[string]string](t, rec)["error"])
			}
			m.assert(t)
		})
	}
}

func TestHandleListTransactions(t *testing.T) {
	t.Run("lists the caller's transactions", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("ListUserTransactions", mock.Anything, uint(7)).
			Return([]domain.Transaction{{ID: 2, UserID: 7}, {ID: 1, UserID: 7}}, nil)

		rec := do(t, r, http.MethodGet, "/api/v1/transactions", bearer(t, 7, domain.RoleCustomer), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		got := decode[[]domain.Transaction](t, rec)
		assert.Len(t, got, 2)
		m.assert(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("ListUserTransactions", mock.Anything, uint(7)).Return(nil, nil)

		rec := do(t, r, http.MethodGet, "/api/v1/transactions", bearer(t, 7, domain.RoleCustomer), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
		m.assert(t)
	})
}

func TestHandleGetTransaction(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "found", path: "/api/v1/transactions/5", wantStatus: http.StatusOK},
		{name: "not a number", path: "/api/v1/transactions/abc", wantStatus: http.StatusBadRequest},
		{name: "zero id", path: "/api/v1/transactions/0", wantStatus: http.StatusBadRequest},
		{name: "missing", path: "/api/v1/transactions/5", err: domain.ErrTransactionNotFound, wantStatus: http.StatusNotFound},
		{name: "someone else's", path: "/api/v1/transactions/5", err: fmt.Errorf("%w: transaction 5", domain.ErrUnauthorized), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRouter()
			if tt.wantStatus != http.StatusBadRequest {
				m.transactions.On("GetTransaction", mock.Anything, uint(5), domain.Principal{UserID: 7, Role: domain.RoleCustomer}).
					Return(domain.Transaction{ID: 5, UserID: 7}, tt.err)
			}

			rec := do(t, r, http.MethodGet, tt.path, bearer(t, 7, domain.RoleCustomer), nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			m.assert(t)
		})
	}
}

func TestHandleUploadPaymentProof(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("UploadPaymentProof", mock.Anything, uint(5), uint(7), "s3://proofs/5.png").
			Return(domain.Transaction{ID: 5, Status: domain.StatusWaitingConfirmation, PaymentProofRef: "s3://proofs/5.png"}, nil)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/payment-proof", bearer(t, 7, domain.RoleCustomer),
			map[string]string{"proof_ref": "s3://proofs/5.png"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.StatusWaitingConfirmation, decode[domain.Transaction](t, rec).Status)
		m.assert(t)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		r, m := newRouter()

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/payment-proof", bearer(t, 7, domain.RoleCustomer),
			map[string]string{"proof_ref": "../../etc/passwd"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		m.assert(t)
	})

	t.Run("window closed", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("UploadPaymentProof", mock.Anything, uint(5), uint(7), "proof-5").
			Return(domain.Transaction{}, fmt.Errorf("payment window closed: %w", domain.ErrInvalidStateTransition))

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/payment-proof", bearer(t, 7, domain.RoleCustomer),
			map[string]string{"proof_ref": "proof-5"})

		assert.Equal(t, http.StatusConflict, rec.Code)
		m.assert(t)
	})
}

func TestHandleCancelTransaction(t *testing.T) {
	t.Run("canceled", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("Cancel", mock.Anything, uint(5), uint(7)).
			Return(domain.Transaction{ID: 5, Status: domain.StatusCanceled}, nil)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/cancel", bearer(t, 7, domain.RoleCustomer), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"transaction_id": 5, "status": "CANCELED"}`, rec.Body.String())
		m.assert(t)
	})

	t.Run("already terminal", func(t *testing.T) {
		r, m := newRouter()
		m.transactions.On("Cancel", mock.Anything, uint(5), uint(7)).
			Return(domain.Transaction{}, domain.ErrInvalidStateTransition)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/cancel", bearer(t, 7, domain.RoleCustomer), nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		m.assert(t)
	})
}

func TestHandleDecision(t *testing.T) {
	t.Run("organizer confirms", func(t *testing.T) {
		r, m := newRouter()
		m.decisions.On("Decide", mock.Anything, uint(5), uint(2), domain.DecisionConfirm).
			Return(domain.Transaction{ID: 5, Status: domain.StatusConfirmed}, nil)

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/decision", bearer(t, 2, domain.RoleOrganizer),
			map[string]string{"decision": "CONFIRM"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.StatusConfirmed, decode[domain.Transaction](t, rec).Status)
		m.assert(t)
	})

	t.Run("customers cannot decide", func(t *testing.T) {
		r, m := newRouter()

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/decision", bearer(t, 7, domain.RoleCustomer),
			map[string]string{"decision": "CONFIRM"})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		m.assert(t)
	})

	t.Run("unknown decision", func(t *testing.T) {
		r, m := newRouter()

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/decision", bearer(t, 2, domain.RoleOrganizer),
			map[string]string{"decision": "MAYBE"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		m.assert(t)
	})

	t.Run("organizer of another event", func(t *testing.T) {
		r, m := newRouter()
		m.decisions.On("Decide", mock.Anything, uint(5), uint(2), domain.DecisionReject).
			Return(domain.Transaction{}, fmt.Errorf("%w: event 3 belongs to organizer 4", domain.ErrUnauthorized))

		rec := do(t, r, http.MethodPost, "/api/v1/transactions/5/decision", bearer(t, 2, domain.RoleOrganizer),
			map[string]string{"decision": "REJECT"})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		m.assert(t)
	})
}
