package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moral-quiz-service/internal/domain"
)

func TestResultStoreMarkPurchasedStrategies(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = store.CreateResult(ctx, &domain.Result{ID: "r1", UserID: "u1", Level: "4", CreatedAt: now})
	_ = store.CreateResult(ctx, &domain.Result{ID: "r2", GuestEmail: "guest@example.com", Level: "5", CreatedAt: now})

	update := domain.PurchaseUpdate{SessionID: "cs_1", AccessMethod: domain.AccessPurchase, CompletedAt: now}
	ok, err := store.MarkPurchased(ctx, domain.ResultMatch{Strategy: domain.MatchByUser, ResultID: "r1", UserID: "someone-else"}, update)
	if err != nil || ok {
		t.Fatalf("expected no match for another user, ok=%v err=%v", ok, err)
	}
	ok, _ = store.MarkPurchased(ctx, domain.ResultMatch{Strategy: domain.MatchByUser, ResultID: "r1", UserID: "u1"}, update)
	if !ok {
		t.Fatalf("expected user match")
	}

	guestUpdate := domain.PurchaseUpdate{SessionID: "cs_2", AccessMethod: domain.AccessGuest, CompletedAt: now}
	ok, _ = store.MarkPurchased(ctx, domain.ResultMatch{Strategy: domain.MatchByGuestEmail, ResultID: "r2", GuestEmail: "guest@example.com"}, guestUpdate)
	if !ok {
		t.Fatalf("expected guest email match")
	}

	later := guestUpdate
	later.CompletedAt = now.Add(time.Hour)
	_, _ = store.MarkPurchased(ctx, domain.ResultMatch{Strategy: domain.MatchByID, ResultID: "r2"}, later)
	got, _ := store.GetResult(ctx, "r2")
	if !got.IsPurchased || got.PurchaseStatus != domain.PurchaseCompleted || got.AccessMethod != domain.AccessGuest {
		t.Fatalf("unexpected result state %+v", got)
	}
	if !got.PurchaseCompletedAt.Equal(now) {
		t.Fatalf("expected first completion time kept, got %v", got.PurchaseCompletedAt)
	}

	if err := store.SetPurchaseStatus(ctx, "r2", domain.PurchaseFailed); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ = store.GetResult(ctx, "r2")
	if got.PurchaseStatus != domain.PurchaseCompleted {
		t.Fatalf("purchased result must not be downgraded, got %s", got.PurchaseStatus)
	}
}

func TestResultStoreListResultsPaging(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_ = store.CreateResult(ctx, &domain.Result{ID: id, UserID: "u1", Level: "4", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	_ = store.CreateResult(ctx, &domain.Result{ID: "other", UserID: "u2", Level: "4", CreatedAt: base})

	page, total, err := store.ListResults(ctx, domain.ResultFilter{UserID: "u1", Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].ID != "c" {
		t.Fatalf("unexpected page total=%d page=%+v", total, page)
	}
	page, _, _ = store.ListResults(ctx, domain.ResultFilter{UserID: "u1", Page: 2, PageSize: 2})
	if len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestPurchaseStoreCompleteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewPurchaseStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = store.CreateTracking(ctx, &domain.PurchaseTracking{ID: "t1", Status: domain.PurchasePending, CreatedAt: now})
	_ = store.AttachSession(ctx, "t1", "cs_1")

	got, err := store.GetTrackingBySession(ctx, "cs_1")
	if err != nil || got.ID != "t1" {
		t.Fatalf("lookup by session: %+v err=%v", got, err)
	}
	first, _ := store.CompleteTracking(ctx, "t1", now)
	again, _ := store.CompleteTracking(ctx, "t1", now)
	if !first || again {
		t.Fatalf("expected single completion, first=%v again=%v", first, again)
	}
	_ = store.FailTracking(ctx, "t1")
	got, _ = store.GetTracking(ctx, "t1")
	if got.Status != domain.PurchaseCompleted {
		t.Fatalf("completed tracking must not fail, got %s", got.Status)
	}
	if _, err := store.GetTracking(ctx, "missing"); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPurchaseStoreListPending(t *testing.T) {
	ctx := context.Background()
	store := NewPurchaseStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = store.CreateTracking(ctx, &domain.PurchaseTracking{ID: "old", Status: domain.PurchasePending, CreatedAt: base})
	_ = store.CreateTracking(ctx, &domain.PurchaseTracking{ID: "new", Status: domain.PurchasePending, CreatedAt: base.Add(time.Hour)})
	_ = store.CreateTracking(ctx, &domain.PurchaseTracking{ID: "done", Status: domain.PurchaseCompleted, CreatedAt: base})

	pending, _ := store.ListPending(ctx, base.Add(time.Minute), 10)
	if len(pending) != 1 || pending[0].ID != "old" {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

func TestCouponStoreRedeemRespectsCap(t *testing.T) {
	ctx := context.Background()
	store := NewCouponStore()
	maxUses := 3
	_ = store.CreateCoupon(ctx, &domain.Coupon{ID: "c1", Code: "SAVE50", DiscountType: domain.DiscountPercent, DiscountAmount: 50, MaxUses: &maxUses, Active: true})

	var wg sync.WaitGroup
	var mu sync.Mutex
	redeemed, exhausted := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RedeemCoupon(ctx, domain.CouponUsage{CouponID: "c1"}, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				redeemed++
			case errors.Is(err, domain.ErrCouponExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if redeemed != 3 || exhausted != 7 {
		t.Fatalf("expected 3 redemptions and 7 rejections, got %d/%d", redeemed, exhausted)
	}
	coupon, _ := store.GetCoupon(ctx, "c1")
	if coupon.CurrentUses != 3 || len(store.Usage("c1")) != 3 {
		t.Fatalf("unexpected usage count %d/%d", coupon.CurrentUses, len(store.Usage("c1")))
	}
}

func TestCouponStoreDuplicateCode(t *testing.T) {
	ctx := context.Background()
	store := NewCouponStore()
	_ = store.CreateCoupon(ctx, &domain.Coupon{ID: "c1", Code: "SAVE"})
	if err := store.CreateCoupon(ctx, &domain.Coupon{ID: "c2", Code: "SAVE"}); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code error, got %v", err)
	}
	if err := store.CreateAffiliate(ctx, &domain.Affiliate{ID: "a1", Code: "PARTNER"}); err != nil {
		t.Fatalf("create affiliate: %v", err)
	}
	if err := store.CreateAffiliate(ctx, &domain.Affiliate{ID: "a2", Code: "PARTNER"}); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate affiliate code, got %v", err)
	}
}

func TestProgressStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	answers := map[string]int{"q1": 3}
	_ = store.SaveProgress(ctx, domain.Progress{UserID: "u1", CurrentIndex: 1, Answers: answers})
	answers["q1"] = 5

	got, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.Answers["q1"] != 3 {
		t.Fatalf("expected stored copy to be isolated, got %d", got.Answers["q1"])
	}
	_ = store.DeleteProgress(ctx, "u1")
	if _, err := store.GetProgress(ctx, "u1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
