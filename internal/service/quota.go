package service

import (
	"context"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

// userStore is the slice of user persistence the ledger needs.
type userStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateQuotaUsage(ctx context.Context, id string, count int, usedAt time.Time) error
}

// QuotaLedger rations paid AI calls per user per calendar day. Denial is a
// valid outcome, not an error: callers route denied items to Traditional Mode.
//
// The check-then-increment is not locked across processes, so concurrent
// calls for one user can land slightly past the ceiling. That slack is
// accepted; the ceiling is a cost control, not a billing contract.
type QuotaLedger struct {
	users   userStore
	ceiling int
	now     func() time.Time
	log     *logger.Logger
}

// NewQuotaLedger creates a ledger. A non-positive ceiling falls back to 10.
func NewQuotaLedger(users userStore, ceiling int, log *logger.Logger) *QuotaLedger {
	if ceiling <= 0 {
		ceiling = 10
	}
	return &QuotaLedger{
		users:   users,
		ceiling: ceiling,
		now:     time.Now,
		log:     log,
	}
}

// CheckAndConsume reports whether the user may make one AI call right now,
// consuming a unit of quota if so. Premium users always pass, uncounted.
// Non-premium: a last-usage date before today resets the count to 1; at or
// above the ceiling the call is denied without incrementing.
func (l *QuotaLedger) CheckAndConsume(ctx context.Context, userID string) bool {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		l.log.WithField(logger.FieldUserID, userID).WithError(err).Warn("Quota check failed to load user, denying")
		return false
	}

	if user.IsPremiumUnlimited {
		return true
	}

	now := l.now()
	if user.LastAiUsageDate == nil || !sameCalendarDay(*user.LastAiUsageDate, now) {
		if err := l.users.UpdateQuotaUsage(ctx, userID, 1, now); err != nil {
			l.log.WithField(logger.FieldUserID, userID).WithError(err).Warn("Quota reset write failed")
		}
		return true
	}

	if user.DailyAiUsageCount >= l.ceiling {
		l.log.WithFields(logger.Fields{
			logger.FieldUserID: userID,
			"count":            user.DailyAiUsageCount,
			"ceiling":          l.ceiling,
		}).Info("Daily AI quota exhausted")
		return false
	}

	if err := l.users.UpdateQuotaUsage(ctx, userID, user.DailyAiUsageCount+1, now); err != nil {
		l.log.WithField(logger.FieldUserID, userID).WithError(err).Warn("Quota increment write failed")
	}
	return true
}

// sameCalendarDay compares calendar days, not a rolling 24h window.
func sameCalendarDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
