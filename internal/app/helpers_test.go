package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"moral-quiz-service/internal/infra/memory"
)

// fakeCheckout is an in-process checkout provider.
type fakeCheckout struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]domain.CheckoutSession
	requests []domain.CheckoutRequest
	failNext error
	fetches  int
}

func newFakeCheckout() *fakeCheckout {
	return &fakeCheckout{sessions: make(map[string]domain.CheckoutSession)}
}

func (f *fakeCheckout) CreateSession(_ context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return domain.CheckoutSession{}, err
	}
	f.seq++
	sess := domain.CheckoutSession{
		ID:            fmt.Sprintf("cs_test_%d", f.seq),
		URL:           fmt.Sprintf("https://checkout.test/cs_test_%d", f.seq),
		Status:        "open",
		PaymentStatus: "unpaid",
		CustomerEmail: req.Email,
		AmountTotal:   req.AmountCents,
		Metadata: map[string]string{
			domain.MetaTrackingID: req.TrackingID,
			domain.MetaResultID:   req.ResultID,
		},
	}
	f.sessions[sess.ID] = sess
	f.requests = append(f.requests, req)
	return sess, nil
}

func (f *fakeCheckout) GetSession(_ context.Context, sessionID string) (domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	sess, ok := f.sessions[sessionID]
	if !ok {
		return domain.CheckoutSession{}, domain.ErrPurchaseNotFound
	}
	return sess, nil
}

func (f *fakeCheckout) pay(sessionID string) domain.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	sess.Status = "complete"
	sess.PaymentStatus = "paid"
	f.sessions[sessionID] = sess
	return sess
}

func (f *fakeCheckout) expire(sessionID string) domain.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	sess.Status = "expired"
	f.sessions[sessionID] = sess
	return sess
}

func (f *fakeCheckout) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type harness struct {
	quiz       *app.QuizService
	purchases  *app.PurchaseService
	coupons    *app.CouponService
	reconciler *app.Reconciler
	hub        *app.StatusHub
	checkout   *fakeCheckout
	results    *memory.ResultStore
	tracking   *memory.PurchaseStore
	couponRepo *memory.CouponStore
	tokens     *app.AccessTokens
	sleeps     int
}

func newHarness() *harness {
	h := &harness{
		checkout:   newFakeCheckout(),
		results:    memory.NewResultStore(),
		tracking:   memory.NewPurchaseStore(),
		couponRepo: memory.NewCouponStore(),
		hub:        app.NewStatusHub(),
	}
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	h.tokens = app.NewAccessTokens(memory.NewTokenStore(), time.Hour)
	h.coupons = app.NewCouponService(h.couponRepo, h.couponRepo)
	h.quiz = app.NewQuizService(questions, memory.NewProgressStore(), h.results, h.tokens)
	h.reconciler = app.NewReconciler(
		h.results, h.tracking, h.coupons, h.tokens, h.checkout,
		memory.NewEventDeduper(time.Hour), h.hub,
		app.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	).WithClock(nil, func(ctx context.Context, _ time.Duration) error {
		h.sleeps++
		return ctx.Err()
	})
	h.purchases = app.NewPurchaseService(
		h.results, h.tracking, h.coupons, h.tokens, h.checkout, h.reconciler,
		testProducts(), "https://quiz.test/",
	)
	return h
}

func testProducts() map[domain.Product]domain.ProductConfig {
	return map[domain.Product]domain.ProductConfig{
		domain.ProductReport:       {Name: "Detailed report", PriceCents: 1000, Mode: domain.ModePayment, RequireResult: true},
		domain.ProductSubscription: {Name: "Monthly", PriceCents: 500, Mode: domain.ModeSubscription},
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q3", Position: 3, Text: "I keep promises.", Category: "integrity"},
		{ID: "q1", Position: 1, Text: "I tell the truth.", Category: "honesty"},
		{ID: "q2", Position: 2, Text: "I admit mistakes.", Category: "honesty"},
	}
}

func fullAnswers(value int) map[string]int {
	return map[string]int{"q1": value, "q2": value, "q3": value}
}

var (
	alice = domain.Caller{UserID: "user-alice", Email: "alice@example.com"}
	bob   = domain.Caller{UserID: "user-bob", Email: "bob@example.com"}
	admin = domain.Caller{UserID: "user-admin", Email: "admin@example.com", Admin: true}
	guest = domain.Caller{}
)

func (h *harness) completeQuiz(caller domain.Caller, guestEmail string) app.CompletedQuiz {
	completed, err := h.quiz.CompleteQuiz(context.Background(), caller, fullAnswers(4), guestEmail)
	if err != nil {
		panic(err)
	}
	return completed
}

func (h *harness) createCoupon(code string, kind domain.DiscountType, amount int64, maxUses *int) domain.Coupon {
	coupon, err := h.coupons.CreateCoupon(context.Background(), domain.Coupon{
		Code:           code,
		DiscountType:   kind,
		DiscountAmount: amount,
		MaxUses:        maxUses,
		Active:         true,
	})
	if err != nil {
		panic(err)
	}
	return coupon
}

func completedEvent(id string, sess domain.CheckoutSession) domain.CheckoutEvent {
	return domain.CheckoutEvent{ID: id, Type: "checkout.session.completed", Kind: domain.EventCompleted, Session: sess}
}

func intPtr(v int) *int { return &v }

var errProviderDown = errors.New("provider down")
