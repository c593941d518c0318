package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/request"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/response"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/service"
)

type PointsService interface {
	GetPointsSummary(ctx context.Context, userID uint) (domain.PointsSummary, error)
}

type ReferralService interface {
	ResolveReferral(ctx context.Context, userID uint, referralCode string) (service.ReferralResult, error)
}

type UserHandler struct {
	points    PointsService
	referrals ReferralService
}

func NewUserHandler(points PointsService, referrals ReferralService) *UserHandler {
	return &UserHandler{
		points:    points,
		referrals: referrals,
	}
}

// HandleGetPoints godoc
// @Summary      My points
// @Description  Running balance, the balance projected from history, and the history itself.
// @Tags         users
// @Produce      json
// @Success      200  {object}  domain.PointsSummary
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /users/me/points [get]
// @Security BearerAuth
func (h *UserHandler) HandleGetPoints(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	summary, err := h.points.GetPointsSummary(ctx.Request.Context(), principal.UserID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, summary)
}

// HandleResolveReferral godoc
// @Summary      Claim a referral
// @Description  Links the caller to the owner of the code once; the referrer earns points the first time only.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request  body      request.ResolveReferralRequest  true  "referral code"
// @Success      200      {object}  service.ReferralResult
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /users/me/referral [post]
// @Security BearerAuth
func (h *UserHandler) HandleResolveReferral(ctx *gin.Context) {
	principal, respErr := getPrincipal(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ResolveReferralRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.referrals.ResolveReferral(ctx.Request.Context(), principal.UserID, req.ReferralCode)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(err))
		return
	}

	ctx.JSON(http.StatusOK, result)
}
