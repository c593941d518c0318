package request

import (
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

const (
	// Codes mix letters, digits, '-' and '_' but are never all digits, so an
	// id pasted into a code field is rejected.
	codeRegexPattern = `^(?![0-9]+$)[A-Za-z0-9_-]{3,32}$`
	// Proof refs are storage keys or URLs; parent-directory segments are refused.
	proofRefRegexPattern = `^(?!.*\.\.)[A-Za-z0-9_./:%?=&+-]{1,512}$`

	maxCodesPerKind = 10
)

var (
	codeExp     = regexp2.MustCompile(codeRegexPattern, regexp2.None)
	proofRefExp = regexp2.MustCompile(proofRefRegexPattern, regexp2.None)

	errInvalidCode     = errors.New("must be 3-32 letters, digits, '-' or '_' and not only digits")
	errInvalidProofRef = errors.New("must be a storage key or URL without '..'")
)

func matches(exp *regexp2.Regexp, err error) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		ok, matchErr := exp.MatchString(s)
		if matchErr != nil || !ok {
			return err
		}
		return nil
	}
}

func validateCodes(codes []string) error {
	if len(codes) > maxCodesPerKind {
		return fmt.Errorf("at most %d codes are accepted", maxCodesPerKind)
	}
	for _, code := range codes {
		if err := validation.Validate(code, validation.Required, validation.By(matches(codeExp, errInvalidCode))); err != nil {
			return fmt.Errorf("%q %w", code, err)
		}
	}
	return nil
}

type CreateTransactionRequest struct {
	EventID      uint     `json:"event_id" binding:"required"`
	TicketCount  int      `json:"ticket_count" binding:"required"`
	VoucherCodes []string `json:"voucher_codes,omitempty"`
	CouponCodes  []string `json:"coupon_codes,omitempty"`
	PointsUsed   int64    `json:"points_used,omitempty"`
	ReferralCode string   `json:"referral_code,omitempty"`
}

func (req *CreateTransactionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.EventID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.TicketCount, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&req.VoucherCodes, validation.By(func(interface{}) error { return validateCodes(req.VoucherCodes) })),
		validation.Field(&req.CouponCodes, validation.By(func(interface{}) error { return validateCodes(req.CouponCodes) })),
		validation.Field(&req.PointsUsed, validation.Min(int64(0))),
		validation.Field(&req.ReferralCode, validation.By(matches(codeExp, errInvalidCode))),
	)
}

func (req *CreateTransactionRequest) ToInput(userID uint) domain.CreateTransactionInput {
	return domain.CreateTransactionInput{
		UserID:       userID,
		EventID:      req.EventID,
		TicketCount:  req.TicketCount,
		VoucherCodes: req.VoucherCodes,
		CouponCodes:  req.CouponCodes,
		PointsUsed:   req.PointsUsed,
		ReferralCode: req.ReferralCode,
	}
}

type UploadPaymentProofRequest struct {
	ProofRef string `json:"proof_ref" binding:"required"`
}

func (req *UploadPaymentProofRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ProofRef, validation.Required, validation.By(matches(proofRefExp, errInvalidProofRef))),
	)
}

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (req *DecisionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Decision, validation.Required, validation.In(string(domain.DecisionConfirm), string(domain.DecisionReject))),
	)
}

type ResolveReferralRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

func (req *ResolveReferralRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ReferralCode, validation.Required, validation.By(matches(codeExp, errInvalidCode))),
	)
}
