package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"moral-quiz-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// RetryPolicy bounds server-side verification polling.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DashboardPath is where clients land when verification is deferred.
const DashboardPath = "/dashboard"

// checkoutSessionLifetime is how long the provider keeps an unpaid checkout
// session open.
const checkoutSessionLifetime = 24 * time.Hour

// Reconciler aligns local purchase state with the payment provider. Payment
// confirmation always comes from the provider: a webhook event, a session
// fetched during Verify, or a Sweep.
type Reconciler struct {
	results     ResultRepository
	purchases   PurchaseRepository
	coupons     *CouponService
	tokens      *AccessTokens
	checkout    CheckoutProvider
	dedup       EventDeduper
	hub         *StatusHub
	retry       RetryPolicy
	concurrency int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewReconciler(results ResultRepository, purchases PurchaseRepository, coupons *CouponService, tokens *AccessTokens, checkout CheckoutProvider, dedup EventDeduper, hub *StatusHub, retry RetryPolicy) *Reconciler {
	if retry.Attempts <= 0 {
		retry.Attempts = 5
	}
	if retry.Backoff <= 0 {
		retry.Backoff = 2 * time.Second
	}
	return &Reconciler{
		results:     results,
		purchases:   purchases,
		coupons:     coupons,
		tokens:      tokens,
		checkout:    checkout,
		dedup:       dedup,
		hub:         hub,
		retry:       retry,
		concurrency: 4,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// WithClock swaps the time source and the backoff sleeper; used by tests.
func (r *Reconciler) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Reconciler {
	if now != nil {
		r.now = now
	}
	if sleep != nil {
		r.sleep = sleep
	}
	return r
}

// WithConcurrency bounds how many purchases a sweep checks at once.
func (r *Reconciler) WithConcurrency(n int) *Reconciler {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// HandleEvent applies a verified webhook event. Replays of an event ID are ignored.
func (r *Reconciler) HandleEvent(ctx context.Context, evt domain.CheckoutEvent) error {
	if evt.Kind == domain.EventIgnored {
		return nil
	}
	if evt.ID != "" {
		first, err := r.dedup.FirstSeen(ctx, evt.ID)
		if err != nil {
			// processing is idempotent, so a dedupe outage only costs a repeat
			log.Printf("event dedupe failed event=%s err=%v", evt.ID, err)
			first = true
		}
		if !first {
			log.Printf("duplicate event skipped event=%s type=%s", evt.ID, evt.Type)
			return nil
		}
	}

	var err error
	switch evt.Kind {
	case domain.EventCompleted:
		_, err = r.complete(ctx, evt.Session)
	case domain.EventFailed:
		_, err = r.fail(ctx, evt.Session)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrPurchaseNotFound), errors.Is(err, domain.ErrPaymentNotConfirmed):
		// not ours, or an async payment still settling; a later event carries the outcome
		log.Printf("event acknowledged without change event=%s session=%s reason=%v", evt.ID, evt.Session.ID, err)
		return nil
	default:
		if evt.ID != "" {
			if ferr := r.dedup.Forget(ctx, evt.ID); ferr != nil {
				log.Printf("event dedupe reset failed event=%s err=%v", evt.ID, ferr)
			}
		}
		return err
	}
}

// Status is the read-only purchase state for a checkout session.
func (r *Reconciler) Status(ctx context.Context, sessionID string) (domain.PurchaseStatusView, error) {
	if sessionID == "" {
		return domain.PurchaseStatusView{}, domain.ErrPurchaseNotFound
	}
	tracking, err := r.purchases.GetTrackingBySession(ctx, sessionID)
	if err != nil {
		return domain.PurchaseStatusView{}, err
	}
	return r.viewOf(tracking, sessionID), nil
}

// ForCaller hides the result ID from callers that may not see the result.
func (r *Reconciler) ForCaller(ctx context.Context, caller domain.Caller, token string, view domain.PurchaseStatusView) domain.PurchaseStatusView {
	if view.ResultID == "" || r.canSeeResult(ctx, caller, token, view.ResultID) {
		return view
	}
	view.ResultID = ""
	return view
}

func (r *Reconciler) canSeeResult(ctx context.Context, caller domain.Caller, token, resultID string) bool {
	if caller.Admin {
		return true
	}
	result, err := r.results.GetResult(ctx, resultID)
	if err != nil {
		return false
	}
	if caller.Authenticated() && result.UserID == caller.UserID {
		return true
	}
	if token == "" {
		return false
	}
	_, err = r.tokens.Validate(ctx, token, resultID)
	return err == nil
}

// Subscribe returns the current status plus a channel of later changes.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Reconciler) Subscribe(ctx context.Context, sessionID string) (domain.PurchaseStatusView, <-chan domain.PurchaseStatusView, func(), error) {
	// subscribe before reading so a change between the two is not lost
	updates, cancel := r.hub.Subscribe(sessionID)
	view, err := r.Status(ctx, sessionID)
	if err != nil {
		cancel()
		return domain.PurchaseStatusView{}, nil, nil, err
	}
	return view, updates, cancel, nil
}

// Verify polls for a confirmed purchase within the retry budget. Each attempt
// reads local state and, while still pending, asks the provider directly.
// When the budget runs out the purchase is flagged for the sweeper and a
// pending view pointing at the dashboard is returned.
func (r *Reconciler) Verify(ctx context.Context, sessionID string) (domain.PurchaseStatusView, error) {
	if sessionID == "" {
		return domain.PurchaseStatusView{}, domain.ErrPurchaseNotFound
	}

	for attempt := 1; ; attempt++ {
		view, err := r.Status(ctx, sessionID)
		switch {
		case err == nil && view.Terminal():
			return view, nil
		case err != nil && !errors.Is(err, domain.ErrPurchaseNotFound):
			log.Printf("verify status read failed session=%s attempt=%d err=%v", sessionID, attempt, err)
		}

		sess, err := r.checkout.GetSession(ctx, sessionID)
		if err != nil {
			log.Printf("verify session fetch failed session=%s attempt=%d err=%v", sessionID, attempt, err)
		} else {
			switch {
			case sess.Paid():
				view, err := r.complete(ctx, sess)
				if err == nil {
					return view, nil
				}
				if errors.Is(err, domain.ErrPurchaseNotFound) {
					return domain.PurchaseStatusView{}, err
				}
				log.Printf("verify completion failed session=%s attempt=%d err=%v", sessionID, attempt, err)
			case sess.Expired():
				return r.fail(ctx, sess)
			}
		}

		if attempt >= r.retry.Attempts {
			break
		}
		if err := r.sleep(ctx, r.retry.Backoff); err != nil {
			return domain.PurchaseStatusView{}, err
		}
	}

	tracking, err := r.purchases.GetTrackingBySession(ctx, sessionID)
	if err != nil {
		return domain.PurchaseStatusView{}, err
	}
	if err := r.purchases.DeferTracking(ctx, tracking.ID); err != nil {
		log.Printf("defer verification failed tracking=%s err=%v", tracking.ID, err)
	}
	tracking.VerificationDeferred = true
	view := r.viewOf(tracking, sessionID)
	view.RedirectTo = DashboardPath
	log.Printf("verification deferred session=%s tracking=%s", sessionID, tracking.ID)
	return view, nil
}

// SweepReport summarizes one reconciliation sweep.
type SweepReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

// Sweep checks pending purchases older than minAge against the provider.
func (r *Reconciler) Sweep(ctx context.Context, minAge time.Duration, limit int) (SweepReport, error) {
	if limit <= 0 {
		limit = 100
	}
	pending, err := r.purchases.ListPending(ctx, r.now().Add(-minAge), limit)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list pending purchases: %w", err)
	}

	var (
		mu     sync.Mutex
		report SweepReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, tracking := range pending {
		tracking := tracking
		g.Go(func() error {
			status, err := r.sweepOne(gctx, tracking)
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if err != nil {
				report.Errors++
				log.Printf("sweep failed tracking=%s err=%v", tracking.ID, err)
				return nil
			}
			switch status {
			case domain.PurchaseCompleted:
				report.Completed++
			case domain.PurchaseFailed:
				report.Failed++
			default:
				report.Pending++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Reconciler) sweepOne(ctx context.Context, tracking domain.PurchaseTracking) (domain.PurchaseStatus, error) {
	if tracking.StripeSessionID == "" {
		// the session may exist with its id lost; its webhook still finds the row
		// by metadata until checkout expires
		if r.now().Sub(tracking.CreatedAt) < checkoutSessionLifetime {
			return domain.PurchasePending, nil
		}
		if err := r.purchases.FailTracking(ctx, tracking.ID); err != nil {
			return "", err
		}
		return domain.PurchaseFailed, nil
	}
	sess, err := r.checkout.GetSession(ctx, tracking.StripeSessionID)
	if err != nil {
		return "", err
	}
	switch {
	case sess.Paid():
		view, err := r.finalize(ctx, tracking, sess.ID, accessMethodFor(tracking), false)
		if err != nil {
			return "", err
		}
		return view.Status, nil
	case sess.Expired():
		view, err := r.failTracking(ctx, tracking, sess.ID)
		if err != nil {
			return "", err
		}
		return view.Status, nil
	}
	return domain.PurchasePending, nil
}

func (r *Reconciler) complete(ctx context.Context, sess domain.CheckoutSession) (domain.PurchaseStatusView, error) {
	if !sess.Paid() {
		return domain.PurchaseStatusView{}, domain.ErrPaymentNotConfirmed
	}
	tracking, err := r.findTracking(ctx, sess)
	if err != nil {
		return domain.PurchaseStatusView{}, err
	}
	if tracking.Status == domain.PurchaseCompleted {
		return r.viewOf(tracking, sess.ID), nil
	}
	return r.finalize(ctx, tracking, sess.ID, accessMethodFor(tracking), false)
}

func (r *Reconciler) fail(ctx context.Context, sess domain.CheckoutSession) (domain.PurchaseStatusView, error) {
	tracking, err := r.findTracking(ctx, sess)
	if err != nil {
		return domain.PurchaseStatusView{}, err
	}
	return r.failTracking(ctx, tracking, sess.ID)
}

func (r *Reconciler) failTracking(ctx context.Context, tracking domain.PurchaseTracking, sessionID string) (domain.PurchaseStatusView, error) {
	if tracking.Status == domain.PurchaseCompleted {
		return r.viewOf(tracking, sessionID), nil
	}
	if err := r.purchases.FailTracking(ctx, tracking.ID); err != nil {
		return domain.PurchaseStatusView{}, err
	}
	if tracking.ResultID != "" {
		if err := r.results.SetPurchaseStatus(ctx, tracking.ResultID, domain.PurchaseFailed); err != nil {
			log.Printf("result status update failed result=%s err=%v", tracking.ResultID, err)
		}
	}
	tracking.Status = domain.PurchaseFailed
	view := r.viewOf(tracking, sessionID)
	r.hub.Publish(view)
	log.Printf("purchase failed tracking=%s session=%s", tracking.ID, sessionID)
	return view, nil
}

// finalize marks the result purchased and the tracking row completed. Result
// rows are matched by user, then session, then guest email, then ID alone;
// the first strategy that selects a row wins. Side effects that must happen
// once (coupon redemption, guest purchase record) run only for the caller
// that flips the tracking row. couponRedeemed is set when the caller already
// consumed the coupon.
func (r *Reconciler) finalize(ctx context.Context, tracking domain.PurchaseTracking, sessionID string, method domain.AccessMethod, couponRedeemed bool) (domain.PurchaseStatusView, error) {
	now := r.now()
	if tracking.ResultID != "" {
		update := domain.PurchaseUpdate{
			SessionID:    sessionID,
			AccessMethod: method,
			CompletedAt:  now,
		}
		var lastErr error
		matched := false
		for _, match := range matchesFor(tracking, sessionID) {
			ok, err := r.results.MarkPurchased(ctx, match, update)
			if err != nil {
				lastErr = err
				log.Printf("mark purchased failed strategy=%s result=%s err=%v", match.Strategy, tracking.ResultID, err)
				continue
			}
			if ok {
				matched = true
				log.Printf("result marked purchased strategy=%s result=%s session=%s", match.Strategy, tracking.ResultID, sessionID)
				break
			}
		}
		if !matched {
			if lastErr != nil {
				return domain.PurchaseStatusView{}, fmt.Errorf("mark result purchased: %w", lastErr)
			}
			return domain.PurchaseStatusView{}, fmt.Errorf("mark result purchased: %w", domain.ErrResultNotFound)
		}
	}

	first, err := r.purchases.CompleteTracking(ctx, tracking.ID, now)
	if err != nil {
		return domain.PurchaseStatusView{}, fmt.Errorf("complete tracking: %w", err)
	}
	if first {
		r.afterCompletion(ctx, tracking, sessionID, now, couponRedeemed)
	}

	tracking.Status = domain.PurchaseCompleted
	tracking.CompletedAt = &now
	view := r.viewOf(tracking, sessionID)
	r.hub.Publish(view)
	return view, nil
}

func (r *Reconciler) afterCompletion(ctx context.Context, tracking domain.PurchaseTracking, sessionID string, now time.Time, couponRedeemed bool) {
	if tracking.CouponCode != "" && !couponRedeemed && r.coupons != nil {
		err := r.coupons.Redeem(ctx, tracking.CouponCode, domain.CouponUsage{
			ResultID:   tracking.ResultID,
			UserID:     tracking.UserID,
			GuestEmail: tracking.GuestEmail,
		})
		if err != nil {
			log.Printf("coupon redemption failed code=%s tracking=%s err=%v", tracking.CouponCode, tracking.ID, err)
		}
	}

	if !tracking.IsGuest() || tracking.GuestEmail == "" || tracking.ResultID == "" {
		return
	}
	token, err := r.tokens.Issue(ctx, tracking.ResultID, tracking.GuestEmail)
	if err != nil {
		log.Printf("guest token issue failed tracking=%s err=%v", tracking.ID, err)
		return
	}
	err = r.purchases.RecordGuestPurchase(ctx, &domain.GuestPurchase{
		ID:              tracking.ID,
		Email:           tracking.GuestEmail,
		ResultID:        tracking.ResultID,
		StripeSessionID: sessionID,
		AccessToken:     token.Token,
		CreatedAt:       now,
	})
	if err != nil {
		log.Printf("guest purchase record failed tracking=%s err=%v", tracking.ID, err)
	}
}

// findTracking locates the tracking row for a session, falling back to the
// tracking ID stamped in the session metadata when the session ID was never
// attached locally.
func (r *Reconciler) findTracking(ctx context.Context, sess domain.CheckoutSession) (domain.PurchaseTracking, error) {
	tracking, err := r.purchases.GetTrackingBySession(ctx, sess.ID)
	if err == nil {
		return tracking, nil
	}
	if !errors.Is(err, domain.ErrPurchaseNotFound) {
		return domain.PurchaseTracking{}, err
	}
	trackingID := sess.Metadata[domain.MetaTrackingID]
	if trackingID == "" {
		return domain.PurchaseTracking{}, domain.ErrPurchaseNotFound
	}
	tracking, err = r.purchases.GetTracking(ctx, trackingID)
	if err != nil {
		return domain.PurchaseTracking{}, err
	}
	if tracking.StripeSessionID == "" && sess.ID != "" {
		if err := r.purchases.AttachSession(ctx, tracking.ID, sess.ID); err != nil {
			log.Printf("attach session failed tracking=%s session=%s err=%v", tracking.ID, sess.ID, err)
		} else {
			tracking.StripeSessionID = sess.ID
		}
	}
	return tracking, nil
}

func (r *Reconciler) viewOf(tracking domain.PurchaseTracking, sessionID string) domain.PurchaseStatusView {
	if sessionID == "" {
		sessionID = tracking.StripeSessionID
	}
	return domain.PurchaseStatusView{
		SessionID:  sessionID,
		TrackingID: tracking.ID,
		ResultID:   tracking.ResultID,
		Status:     tracking.Status,
		Verified:   tracking.Status == domain.PurchaseCompleted,
		Deferred:   tracking.VerificationDeferred,
		UpdatedAt:  r.now(),
	}
}

func matchesFor(tracking domain.PurchaseTracking, sessionID string) []domain.ResultMatch {
	var matches []domain.ResultMatch
	if tracking.UserID != "" {
		matches = append(matches, domain.ResultMatch{
			Strategy: domain.MatchByUser,
			ResultID: tracking.ResultID,
			UserID:   tracking.UserID,
		})
	}
	if sessionID != "" {
		matches = append(matches, domain.ResultMatch{
			Strategy:  domain.MatchBySession,
			ResultID:  tracking.ResultID,
			SessionID: sessionID,
		})
	}
	if tracking.GuestEmail != "" {
		matches = append(matches, domain.ResultMatch{
			Strategy:   domain.MatchByGuestEmail,
			ResultID:   tracking.ResultID,
			GuestEmail: tracking.GuestEmail,
		})
	}
	return append(matches, domain.ResultMatch{
		Strategy: domain.MatchByID,
		ResultID: tracking.ResultID,
	})
}

func accessMethodFor(tracking domain.PurchaseTracking) domain.AccessMethod {
	switch {
	case tracking.Product == domain.ProductSubscription:
		return domain.AccessSubscription
	case tracking.IsGuest():
		return domain.AccessGuest
	default:
		return domain.AccessPurchase
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
