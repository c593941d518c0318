package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/request"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/response"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

type TransactionService interface {
	Create(ctx context.Context, in domain.CreateTransactionInput) (domain.Transaction, error)
	UploadPaymentProof(ctx context.Context, transactionID, userID uint, proofRef string) (domain.Transaction, error)
	Cancel(ctx context.Context, transactionID, userID uint) (domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID uint, principal domain.Principal) (domain.Transaction, error)
	ListUserTransactions(ctx context.Context, userID uint) ([]domain.Transaction, error)
}

type DecisionService interface {
	Decide(ctx context.Context, transactionID, organizerID uint, decision domain.Decision) (domain.Transaction, error)
}

type TransactionHandler struct {
	svc       TransactionService
	decisions DecisionService
}

func NewTransactionHandler(svc TransactionService, decisions DecisionService) *TransactionHandler {
	return &TransactionHandler{
		svc:       svc,
		decisions: decisions,
	}
}

// HandleCreateTransaction godoc
// @Summary      Book tickets
// @Description  Reserves seats, redeems applicable vouchers and coupons, debits points and links a referral in one unit. Unknown or inapplicable codes are skipped.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      request.CreateTransactionRequest  true  "booking request"
// @Success      201      {object}  domain.Transaction
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      503      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /transactions [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleCreateTransaction(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateTransactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	tx, err := h.svc.Create(ctx.Request.Context(), req.ToInput(principal.UserID))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusCreated, tx)
}

// HandleListTransactions godoc
// @Summary      List my transactions
// @Tags         transactions
// @Produce      json
// @Success      200  {array}   domain.Transaction
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleListTransactions(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	txs, err := h.svc.ListUserTransactions(ctx.Request.Context(), principal.UserID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	ctx.JSON(http.StatusOK, txs)
}

// HandleGetTransaction godoc
// @Summary      Get a transaction
// @Description  Visible to the buyer and to the organizer of the event.
// @Tags         transactions
// @Produce      json
// @Param        transactionID  path      int  true  "transaction ID"
// @Success      200            {object}  domain.Transaction
// @Failure      400            {object}  response.Err
// @Failure      403            {object}  response.Err
// @Failure      404            {object}  response.Err
// @Failure      500            {object}  response.Err
// @Router       /transactions/{transactionID} [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleGetTransaction(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, respErr := parseIDParam(ctx, "transactionID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tx, err := h.svc.GetTransaction(ctx.Request.Context(), transactionID, principal)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, tx)
}

// HandleUploadPaymentProof godoc
// @Summary      Attach payment proof
// @Description  Only while the transaction is WAITING_PAYMENT and its payment window is open.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        transactionID  path      int                                true  "transaction ID"
// @Param        request        body      request.UploadPaymentProofRequest  true  "proof reference"
// @Success      200            {object}  domain.Transaction
// @Failure      400            {object}  response.Err
// @Failure      403            {object}  response.Err
// @Failure      404            {object}  response.Err
// @Failure      409            {object}  response.Err
// @Failure      500            {object}  response.Err
// @Router       /transactions/{transactionID}/payment-proof [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleUploadPaymentProof(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, respErr := parseIDParam(ctx, "transactionID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.UploadPaymentProofRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	tx, err := h.svc.UploadPaymentProof(ctx.Request.Context(), transactionID, principal.UserID, req.ProofRef)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, tx)
}

// HandleCancelTransaction godoc
// @Summary      Cancel a transaction
// @Description  Gives back seats, discounts and points of a non-terminal transaction.
// @Tags         transactions
// @Produce      json
// @Param        transactionID  path      int  true  "transaction ID"
// @Success      200            {object}  response.Ack
// @Failure      400            {object}  response.Err
// @Failure      403            {object}  response.Err
// @Failure      404            {object}  response.Err
// @Failure      409            {object}  response.Err
// @Failure      500            {object}  response.Err
// @Router       /transactions/{transactionID}/cancel [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleCancelTransaction(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, respErr := parseIDParam(ctx, "transactionID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tx, err := h.svc.Cancel(ctx.Request.Context(), transactionID, principal.UserID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, response.Ack{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
	})
}

// HandleDecision godoc
// @Summary      Confirm or reject a transaction
// @Description  Organizer of the event only. Reject gives every reserved resource back.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        transactionID  path      int                      true  "transaction ID"
// @Param        request        body      request.DecisionRequest  true  "CONFIRM or REJECT"
// @Success      200            {object}  domain.Transaction
// @Failure      400            {object}  response.Err
// @Failure      403            {object}  response.Err
// @Failure      404            {object}  response.Err
// @Failure      409            {object}  response.Err
// @Failure      500            {object}  response.Err
// @Router       /transactions/{transactionID}/decision [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleDecision(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, respErr := parseIDParam(ctx, "transactionID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.DecisionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	tx, err := h.decisions.Decide(ctx.Request.Context(), transactionID, principal.UserID, domain.Decision(req.Decision))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, tx)
}
