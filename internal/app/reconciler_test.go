package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
)

func startGuestPurchase(t *testing.T, h *harness) (domain.Result, domain.PurchaseSession) {
	t.Helper()
	ctx := context.Background()
	completed := h.completeQuiz(guest, "")
	result := completed.Result
	session, err := h.purchases.Initiate(ctx, guest, domain.PurchaseRequest{
		ResultID:    result.ID,
		Product:     domain.ProductReport,
		Email:       "guest@example.com",
		AccessToken: completed.AccessToken.Token,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	return result, session
}

func TestHandleEventCompletesGuestPurchase(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	result, session := startGuestPurchase(t, h)
	sess := h.checkout.pay(session.StripeSessionID)

	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_1", sess)); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	got, _ := h.results.GetResult(ctx, result.ID)
	if !got.IsPurchased || got.PurchaseStatus != domain.PurchaseCompleted || got.AccessMethod != domain.AccessGuest {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.PurchaseCompletedAt == nil {
		t.Fatalf("expected completion time")
	}
	tracking, _ := h.tracking.GetTracking(ctx, session.TrackingID)
	if tracking.Status != domain.PurchaseCompleted || tracking.CompletedAt == nil {
		t.Fatalf("unexpected tracking %+v", tracking)
	}
	guests := h.tracking.GuestPurchases("guest@example.com")
	if len(guests) != 1 || guests[0].ResultID != result.ID || guests[0].AccessToken == "" {
		t.Fatalf("unexpected guest purchases %+v", guests)
	}
	if _, err := h.quiz.Report(ctx, guest, result.ID, guests[0].AccessToken); err != nil {
		t.Fatalf("guest report should unlock: %v", err)
	}
}

func TestHandleEventIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.createCoupon("HALF", domain.DiscountPercent, 50, nil)
	completed := h.completeQuiz(guest, "")
	result := completed.Result
	session, err := h.purchases.Initiate(ctx, guest, domain.PurchaseRequest{
		ResultID:    result.ID,
		Product:     domain.ProductReport,
		Email:       "guest@example.com",
		CouponCode:  "HALF",
		AccessToken: completed.AccessToken.Token,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	sess := h.checkout.pay(session.StripeSessionID)

	first, _ := h.results.GetResult(ctx, result.ID)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half replay the same event ID, half are distinct deliveries
			if err := h.reconciler.HandleEvent(ctx, completedEvent(fmt.Sprintf("evt_%d", i%2), sess)); err != nil {
				t.Errorf("handle event failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if _, err := h.reconciler.Verify(ctx, sess.ID); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	got, _ := h.results.GetResult(ctx, result.ID)
	if !got.IsPurchased || first.IsPurchased {
		t.Fatalf("expected one transition to purchased")
	}
	if n := len(h.tracking.GuestPurchases("guest@example.com")); n != 1 {
		t.Fatalf("expected a single guest purchase, got %d", n)
	}
	coupon, _ := h.couponRepo.GetCouponByCode(ctx, "HALF")
	if coupon.CurrentUses != 1 {
		t.Fatalf("expected a single redemption, got %d", coupon.CurrentUses)
	}
}

func TestHandleEventAcknowledgesUnknownAndUnpaid(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, session := startGuestPurchase(t, h)

	unknown := domain.CheckoutSession{ID: "cs_other", PaymentStatus: "paid"}
	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_unknown", unknown)); err != nil {
		t.Fatalf("unknown sessions should be acknowledged, got %v", err)
	}

	unpaid, _ := h.checkout.GetSession(ctx, session.StripeSessionID)
	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_unpaid", unpaid)); err != nil {
		t.Fatalf("unpaid sessions should be acknowledged, got %v", err)
	}
	view, _ := h.reconciler.Status(ctx, session.StripeSessionID)
	if view.Status != domain.PurchasePending {
		t.Fatalf("expected pending, got %s", view.Status)
	}

	ignored := domain.CheckoutEvent{ID: "evt_ignored", Type: "customer.created", Kind: domain.EventIgnored}
	if err := h.reconciler.HandleEvent(ctx, ignored); err != nil {
		t.Fatalf("ignored events should succeed, got %v", err)
	}
}

func TestHandleEventFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	result, session := startGuestPurchase(t, h)
	sess := h.checkout.expire(session.StripeSessionID)

	failed := domain.CheckoutEvent{ID: "evt_expired", Type: "checkout.session.expired", Kind: domain.EventFailed, Session: sess}
	if err := h.reconciler.HandleEvent(ctx, failed); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	view, _ := h.reconciler.Status(ctx, session.StripeSessionID)
	if view.Status != domain.PurchaseFailed || view.Verified {
		t.Fatalf("unexpected view %+v", view)
	}
	got, _ := h.results.GetResult(ctx, result.ID)
	if got.PurchaseStatus != domain.PurchaseFailed || got.IsPurchased {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestFailureNeverDowngradesCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	result, session := startGuestPurchase(t, h)
	sess := h.checkout.pay(session.StripeSessionID)
	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_paid", sess)); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}

	late := domain.CheckoutEvent{ID: "evt_late", Kind: domain.EventFailed, Session: sess}
	if err := h.reconciler.HandleEvent(ctx, late); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	view, _ := h.reconciler.Status(ctx, session.StripeSessionID)
	got, _ := h.results.GetResult(ctx, result.ID)
	if view.Status != domain.PurchaseCompleted || !got.IsPurchased {
		t.Fatalf("completed purchase was downgraded: %+v %+v", view, got)
	}
}

func TestHandleEventFindsTrackingThroughMetadata(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	result := h.completeQuiz(alice, "").Result
	tracking := &domain.PurchaseTracking{
		ID:        "trk-1",
		ResultID:  result.ID,
		UserID:    alice.UserID,
		Product:   domain.ProductReport,
		Status:    domain.PurchasePending,
		CreatedAt: time.Now(),
	}
	if err := h.tracking.CreateTracking(ctx, tracking); err != nil {
		t.Fatalf("create tracking failed: %v", err)
	}

	sess := domain.CheckoutSession{
		ID:            "cs_unattached",
		Status:        "complete",
		PaymentStatus: "paid",
		Metadata:      map[string]string{domain.MetaTrackingID: "trk-1"},
	}
	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_meta", sess)); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	got, err := h.tracking.GetTrackingBySession(ctx, "cs_unattached")
	if err != nil {
		t.Fatalf("session was not attached: %v", err)
	}
	if got.Status != domain.PurchaseCompleted {
		t.Fatalf("unexpected tracking %+v", got)
	}
	res, _ := h.results.GetResult(ctx, result.ID)
	if !res.IsPurchased || res.AccessMethod != domain.AccessPurchase {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestVerifyDefersAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, session := startGuestPurchase(t, h)

	view, err := h.reconciler.Verify(ctx, session.StripeSessionID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if view.Status != domain.PurchasePending || !view.Deferred || view.RedirectTo != app.DashboardPath {
		t.Fatalf("expected deferred pending view, got %+v", view)
	}
	if h.sleeps != 2 || h.checkout.fetchCount() != 3 {
		t.Fatalf("expected 3 attempts with 2 backoffs, got fetches=%d sleeps=%d", h.checkout.fetchCount(), h.sleeps)
	}
	tracking, _ := h.tracking.GetTracking(ctx, session.TrackingID)
	if !tracking.VerificationDeferred {
		t.Fatalf("expected tracking flagged for the sweeper")
	}

	h.checkout.pay(session.StripeSessionID)
	view, err = h.reconciler.Verify(ctx, session.StripeSessionID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if view.Status != domain.PurchaseCompleted || !view.Verified {
		t.Fatalf("expected completed view, got %+v", view)
	}
}

func TestVerifyUnknownSession(t *testing.T) {
	h := newHarness()
	if _, err := h.reconciler.Verify(context.Background(), "cs_missing"); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("expected purchase not found, got %v", err)
	}
	if _, err := h.reconciler.Verify(context.Background(), ""); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("expected purchase not found for empty id, got %v", err)
	}
}

func TestVerifyStopsOnCancel(t *testing.T) {
	h := newHarness()
	_, session := startGuestPurchase(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.reconciler.Verify(ctx, session.StripeSessionID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestSweepReconcilesPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, paid := startGuestPurchase(t, h)
	_, expired := startGuestPurchase(t, h)
	_, open := startGuestPurchase(t, h)
	h.checkout.pay(paid.StripeSessionID)
	h.checkout.expire(expired.StripeSessionID)

	h.reconciler.WithClock(func() time.Time { return time.Now().Add(time.Hour) }, nil).WithConcurrency(2)
	report, err := h.reconciler.Sweep(ctx, time.Minute, 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	want := app.SweepReport{Checked: 3, Completed: 1, Failed: 1, Pending: 1}
	if report != want {
		t.Fatalf("expected %+v, got %+v", want, report)
	}

	for sessionID, status := range map[string]domain.PurchaseStatus{
		paid.StripeSessionID:    domain.PurchaseCompleted,
		expired.StripeSessionID: domain.PurchaseFailed,
		open.StripeSessionID:    domain.PurchasePending,
	} {
		view, _ := h.reconciler.Status(ctx, sessionID)
		if view.Status != status {
			t.Fatalf("session %s: expected %s, got %s", sessionID, status, view.Status)
		}
	}
}

func TestSweepWaitsOutLostSessionID(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	created := time.Now()
	// the checkout session was created but attaching its id to the row failed
	row := &domain.PurchaseTracking{
		ID:          "trk-lost",
		Product:     domain.ProductReport,
		AmountCents: 1999,
		GuestEmail:  "lost@example.com",
		Status:      domain.PurchasePending,
		CreatedAt:   created,
	}
	if err := h.tracking.CreateTracking(ctx, row); err != nil {
		t.Fatalf("create tracking: %v", err)
	}

	h.reconciler.WithClock(func() time.Time { return created.Add(time.Hour) }, nil)
	report, err := h.reconciler.Sweep(ctx, time.Minute, 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report != (app.SweepReport{Checked: 1, Pending: 1}) {
		t.Fatalf("row must wait for the checkout to expire, got %+v", report)
	}

	h.reconciler.WithClock(func() time.Time { return created.Add(25 * time.Hour) }, nil)
	report, err = h.reconciler.Sweep(ctx, time.Minute, 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report != (app.SweepReport{Checked: 1, Failed: 1}) {
		t.Fatalf("expected the stale row failed, got %+v", report)
	}
	got, err := h.tracking.GetTracking(ctx, "trk-lost")
	if err != nil {
		t.Fatalf("get tracking: %v", err)
	}
	if got.Status != domain.PurchaseFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestSweepSkipsFreshPurchases(t *testing.T) {
	h := newHarness()
	startGuestPurchase(t, h)
	report, err := h.reconciler.Sweep(context.Background(), time.Hour, 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.Checked != 0 {
		t.Fatalf("expected nothing checked, got %+v", report)
	}
}

func TestSubscribeReceivesCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, session := startGuestPurchase(t, h)

	current, updates, cancel, err := h.reconciler.Subscribe(ctx, session.StripeSessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	if current.Status != domain.PurchasePending {
		t.Fatalf("expected pending snapshot, got %s", current.Status)
	}

	sess := h.checkout.pay(session.StripeSessionID)
	if err := h.reconciler.HandleEvent(ctx, completedEvent("evt_sub", sess)); err != nil {
		t.Fatalf("handle event failed: %v", err)
	}
	select {
	case view := <-updates:
		if view.Status != domain.PurchaseCompleted || view.TrackingID != session.TrackingID {
			t.Fatalf("unexpected update %+v", view)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for update")
	}

	if _, _, _, err := h.reconciler.Subscribe(ctx, "cs_missing"); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("expected purchase not found, got %v", err)
	}
	if h.hub.Subscribers("cs_missing") != 0 {
		t.Fatalf("failed subscribe must not leak a listener")
	}
}
