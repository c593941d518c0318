package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/middleware"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/pkg/jwthelper"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/service"
)

const signingKey = "handler-test-key"

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Create(ctx context.Context, in domain.CreateTransactionInput) (domain.Transaction, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

func (m *MockTransactionService) UploadPaymentProof(ctx context.Context, transactionID, userID uint, proofRef string) (domain.Transaction, error) {
	args := m.Called(ctx, transactionID, userID, proofRef)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

func (m *MockTransactionService) Cancel(ctx context.Context, transactionID, userID uint) (domain.Transaction, error) {
	args := m.Called(ctx, transactionID, userID)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, transactionID uint, principal domain.Principal) (domain.Transaction, error) {
	args := m.Called(ctx, transactionID, principal)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListUserTransactions(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}

type MockDecisionService struct {
	mock.Mock
}

func (m *MockDecisionService) Decide(ctx context.Context, transactionID, organizerID uint, decision domain.Decision) (domain.Transaction, error) {
	args := m.Called(ctx, transactionID, organizerID, decision)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

type MockPointsService struct {
	mock.Mock
}

func (m *MockPointsService) GetPointsSummary(ctx context.Context, userID uint) (domain.PointsSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.PointsSummary), args.Error(1)
}

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) ResolveReferral(ctx context.Context, userID uint, referralCode string) (service.ReferralResult, error) {
	args := m.Called(ctx, userID, referralCode)
	return args.Get(0).(service.ReferralResult), args.Error(1)
}

type mocks struct {
	transactions *MockTransactionService
	decisions    *MockDecisionService
	points       *MockPointsService
	referrals    *MockReferralService
}

func (m mocks) assert(t *testing.T) {
	m.transactions.AssertExpectations(t)
	m.decisions.AssertExpectations(t)
	m.points.AssertExpectations(t)
	m.referrals.AssertExpectations(t)
}

// newRouter mounts the handlers the same way the server does.
func newRouter() (*gin.Engine, mocks) {
	gin.SetMode(gin.TestMode)
	m := mocks{
		transactions: &MockTransactionService{},
		decisions:    &MockDecisionService{},
		points:       &MockPointsService{},
		referrals:    &MockReferralService{},
	}

	th := NewTransactionHandler(m.transactions, m.decisions)
	uh := NewUserHandler(m.points, m.referrals)

	r := gin.New()
	auth := middleware.NewAuthenticator(signingKey).VerifyJWT()
	txs := r.Group("/api/v1/transactions", auth)
	txs.POST("", th.HandleCreateTransaction)
	txs.GET("", th.HandleListTransactions)
	txs.GET("/:transactionID", th.HandleGetTransaction)
	txs.POST("/:transactionID/payment-proof", th.HandleUploadPaymentProof)
	txs.POST("/:transactionID/cancel", th.HandleCancelTransaction)
	txs.POST("/:transactionID/decision", middleware.RequireRole(domain.RoleOrganizer), th.HandleDecision)

	users := r.Group("/api/v1/users/me", auth)
	users.GET("/points", uh.HandleGetPoints)
	users.POST("/referral", uh.HandleResolveReferral)

	r.GET("/", HandleHealthcheck)

	return r, m
}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok, err := jwthelper.GenerateToken([]byte(signingKey), userID, role, "", time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, r *gin.Engine, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
