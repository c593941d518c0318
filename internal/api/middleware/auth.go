package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1/response"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/pkg/jwthelper"
)

// PrincipalKey is the gin context key holding the authenticated domain.Principal.
const PrincipalKey = "principal"

var errMissingBearer = errors.New("missing bearer token")

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

// VerifyJWT accepts tokens issued by the identity service and stores the
// principal they carry on the context.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			response.RenderErr(ctx, response.ErrUnauthenticated(errMissingBearer))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, tokenString)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthenticated(err))
			return
		}
		if claims.UserAgent != "" && claims.UserAgent != ctx.Request.UserAgent() {
			response.RenderErr(ctx, response.ErrUnauthenticated(fmt.Errorf("user agent mismatch for user %d", claims.UserID)))
			return
		}

		ctx.Set(PrincipalKey, domain.Principal{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		ctx.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, _ := ctx.Get(PrincipalKey)
		principal, ok := value.(domain.Principal)
		if !ok || principal.Role != role {
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("%s role required", role)))
			return
		}
		ctx.Next()
	}
}
