package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

type fakeUserStore struct {
	users map[string]*domain.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) UpdateQuotaUsage(ctx context.Context, id string, count int, usedAt time.Time) error {
	user, ok := f.users[id]
	if !ok {
		return errors.New("record not found")
	}
	user.DailyAiUsageCount = count
	at := usedAt
	user.LastAiUsageDate = &at
	return nil
}

func quotaTestLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "text", Environment: "local", ServiceName: "test"})
}

func TestQuotaCeilingAllowsExactlyTenPerDay(t *testing.T) {
	store := &fakeUserStore{users: map[string]*domain.User{
		"u1": {ID: "u1"},
	}}
	ledger := NewQuotaLedger(store, 10, quotaTestLogger())
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	for i := 1; i <= 10; i++ {
		if !ledger.CheckAndConsume(context.Background(), "u1") {
			t.Fatalf("call %d should be allowed", i)
		}
	}

	if ledger.CheckAndConsume(context.Background(), "u1") {
		t.Error("11th call should be denied")
	}
	if got := store.users["u1"].DailyAiUsageCount; got != 10 {
		t.Errorf("count after denial = %d, want 10 (denial must not increment)", got)
	}
}

func TestQuotaResetsOnCalendarDayRollover(t *testing.T) {
	lastUsed := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	store := &fakeUserStore{users: map[string]*domain.User{
		"u1": {ID: "u1", DailyAiUsageCount: 10, LastAiUsageDate: &lastUsed},
	}}
	ledger := NewQuotaLedger(store, 10, quotaTestLogger())

	// Ten minutes later, but a new calendar day.
	ledger.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }

	if !ledger.CheckAndConsume(context.Background(), "u1") {
		t.Fatal("first call of the new day should be allowed")
	}
	if got := store.users["u1"].DailyAiUsageCount; got != 1 {
		t.Errorf("count after rollover = %d, want 1", got)
	}
}

func TestQuotaPremiumBypassesUncounted(t *testing.T) {
	store := &fakeUserStore{users: map[string]*domain.User{
		"vip": {ID: "vip", IsPremiumUnlimited: true, DailyAiUsageCount: 999},
	}}
	ledger := NewQuotaLedger(store, 10, quotaTestLogger())

	for i := 0; i < 20; i++ {
		if !ledger.CheckAndConsume(context.Background(), "vip") {
			t.Fatal("premium user should always pass")
		}
	}
	if got := store.users["vip"].DailyAiUsageCount; got != 999 {
		t.Errorf("premium count changed to %d, want untouched 999", got)
	}
}

func TestQuotaUnknownUserIsDenied(t *testing.T) {
	ledger := NewQuotaLedger(&fakeUserStore{users: map[string]*domain.User{}}, 10, quotaTestLogger())
	if ledger.CheckAndConsume(context.Background(), "ghost") {
		t.Error("unknown user should be denied")
	}
}
