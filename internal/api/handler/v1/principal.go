package v1

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/response"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/middleware"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

var errNoPrincipal = errors.New("no authenticated principal on request")

func getPrincipal(ctx *gin.Context) (domain.Principal, *response.Err) {
	value, ok := ctx.Get(middleware.PrincipalKey)
	if !ok {
		return domain.Principal{}, response.ErrUnauthenticated(errNoPrincipal)
	}

	principal, ok := value.(domain.Principal)
	if !ok || principal.UserID == 0 {
		return domain.Principal{}, response.ErrUnauthenticated(errNoPrincipal)
	}

	return principal, nil
}

func parseIDParam(ctx *gin.Context, name string) (uint, *response.Err) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, response.ErrBadRequest(errors.New(name + " must be a positive integer"))
	}
	return uint(id), nil
}
