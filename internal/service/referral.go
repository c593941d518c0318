package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
)

var ErrReferrerNotFound = domain.ErrReferrerNotFound

type ReferralResult struct {
	ReferrerID    uint  `json:"referrer_id"`
	Linked        bool  `json:"linked"`
	RewardGranted int64 `json:"reward_granted"`
}

type ReferralService struct {
	uow    ledger.UnitOfWork
	policy Policy
	now    func() time.Time
}

func NewReferralService(uow ledger.UnitOfWork, policy Policy) *ReferralService {
	return &ReferralService{
		uow:    uow,
		policy: policy,
		now:    time.Now,
	}
}

func (s *ReferralService) WithClock(now func() time.Time) *ReferralService {
	s.now = now
	return s
}

// ResolveReferral links userID to the owner of referralCode. Linking an
// already referred user is not an error; it just grants nothing.
func (s *ReferralService) ResolveReferral(ctx context.Context, userID uint, referralCode string) (ReferralResult, error) {
	referralCode = strings.TrimSpace(referralCode)
	if referralCode == "" {
		return ReferralResult{}, domain.Invalid("referral code is required")
	}

	now := s.now()

	var result ReferralResult
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		if _, err := lt.Catalog().FindUser(ctx, userID); err != nil {
			return fmt.Errorf("lt.Catalog().FindUser -> %w", err)
		}

		referrer, err := lt.Referrals().FindReferrer(ctx, referralCode)
		if err != nil {
			return fmt.Errorf("lt.Referrals().FindReferrer -> %w", err)
		}
		if referrer.ID == userID {
			return domain.Invalid("users cannot refer themselves")
		}

		linked, err := grantReferral(ctx, lt, userID, referrer.ID, s.policy, now)
		if err != nil {
			return err
		}

		result = ReferralResult{ReferrerID: referrer.ID, Linked: linked}
		if linked {
			result.RewardGranted = s.policy.ReferralReward
		}
		return nil
	})
	if err != nil {
		return ReferralResult{}, err
	}

	return result, nil
}

// grantReferral sets the link and pays the referrer in the caller's unit. The
// reward is only paid when this call is the one that set the link.
func grantReferral(ctx context.Context, lt ledger.Tx, userID, referrerID uint, policy Policy, now time.Time) (bool, error) {
	linked, err := lt.Referrals().Link(ctx, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("lt.Referrals().Link -> %w", err)
	}
	if !linked {
		return false, nil
	}

	expiresAt := now.Add(policy.ReferralRewardTTL)
	reason := fmt.Sprintf("referral reward for user %d", userID)
	if err := lt.Points().Credit(ctx, referrerID, policy.ReferralReward, reason, nil, &expiresAt); err != nil {
		return false, fmt.Errorf("lt.Points().Credit -> %w", err)
	}

	zap.L().Info("referral linked", zap.Uint("userID", userID), zap.Uint("referrerID", referrerID))
	return true, nil
}
