package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

type Err struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"error,omitempty"`
}

func (e *Err) Error() string {
	return e.ErrorText
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Int("status", e.HTTPStatusCode),
			zap.Error(e.Err),
		)
	}

	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func newErr(err error, status int, text string) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		ErrorText:      text,
	}
}

func ErrBadRequest(err error) *Err {
	return newErr(err, http.StatusBadRequest, err.Error())
}

func ErrUnauthenticated(err error) *Err {
	return newErr(err, http.StatusUnauthorized, "missing or invalid credentials")
}

func ErrPermissionDenied(err error) *Err {
	return newErr(err, http.StatusForbidden, err.Error())
}

// ErrRetryLater hides the cause; it only tells the caller to try again.
func ErrRetryLater(err error) *Err {
	return newErr(err, http.StatusServiceUnavailable, "the request conflicted with another update, please retry")
}

func ErrInternalServerError(err error) *Err {
	return newErr(err, http.StatusInternalServerError, "something went wrong")
}

// FromDomain maps the engine's error taxonomy to an HTTP error. Unknown
// errors become a generic 500.
func FromDomain(err error) *Err {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return newErr(err, http.StatusBadRequest, message(err))
	case errors.Is(err, domain.ErrNotFound):
		return newErr(err, http.StatusNotFound, message(err))
	case errors.Is(err, domain.ErrUnauthorized):
		return newErr(err, http.StatusForbidden, message(err))
	case errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrInsufficientPoints):
		return newErr(err, http.StatusUnprocessableEntity, message(err))
	case errors.Is(err, domain.ErrVoucherExhausted),
		errors.Is(err, domain.ErrCouponAlreadyUsed),
		errors.Is(err, domain.ErrInvalidStateTransition):
		return newErr(err, http.StatusConflict, message(err))
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return ErrRetryLater(err)
	default:
		return ErrInternalServerError(err)
	}
}

// message drops the "caller -> callee ->" context added on the way up and
// keeps the innermost text.
func message(err error) string {
	text := err.Error()
	if i := strings.LastIndex(text, " -> "); i >= 0 {
		return text[i+len(" -> "):]
	}
	return text
}
