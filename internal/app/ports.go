package app

import (
	"context"
	"time"

	"moral-quiz-service/internal/domain"
)

// QuestionRepository loads the question catalog (from cache/backing store).
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// ProgressRepository persists partially answered quizzes.
type ProgressRepository interface {
	GetProgress(ctx context.Context, userID string) (domain.Progress, error)
	SaveProgress(ctx context.Context, progress domain.Progress) error
	DeleteProgress(ctx context.Context, userID string) error
}

// ResultRepository stores quiz results and their purchase state.
type ResultRepository interface {
	CreateResult(ctx context.Context, result *domain.Result) error
	GetResult(ctx context.Context, id string) (domain.Result, error)
	ListResults(ctx context.Context, filter domain.ResultFilter) ([]domain.Result, int, error)
	// MarkPurchaseInitiated moves the result to pending unless it is already purchased.
	MarkPurchaseInitiated(ctx context.Context, id, guestEmail string, at time.Time) error
	AttachSession(ctx context.Context, id, sessionID string) error
	// MarkPurchased applies update to the row selected by match and reports whether a row matched.
	// Applying the same update twice leaves the row unchanged.
	MarkPurchased(ctx context.Context, match domain.ResultMatch, update domain.PurchaseUpdate) (bool, error)
	SetPurchaseStatus(ctx context.Context, id string, status domain.PurchaseStatus) error
}

// PurchaseRepository stores purchase tracking rows and guest purchases.
type PurchaseRepository interface {
	CreateTracking(ctx context.Context, tracking *domain.PurchaseTracking) error
	GetTracking(ctx context.Context, id string) (domain.PurchaseTracking, error)
	GetTrackingBySession(ctx context.Context, sessionID string) (domain.PurchaseTracking, error)
	AttachSession(ctx context.Context, id, sessionID string) error
	// CompleteTracking reports false when the row was already completed.
	CompleteTracking(ctx context.Context, id string, at time.Time) (bool, error)
	FailTracking(ctx context.Context, id string) error
	DeferTracking(ctx context.Context, id string) error
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PurchaseTracking, error)
	RecordGuestPurchase(ctx context.Context, purchase *domain.GuestPurchase) error
}

// CouponRepository stores coupons and their usage.
type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (domain.Coupon, error)
	GetCoupon(ctx context.Context, id string) (domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	CreateCoupon(ctx context.Context, coupon *domain.Coupon) error
	UpdateCoupon(ctx context.Context, coupon *domain.Coupon) error
	DeleteCoupon(ctx context.Context, id string) error
	// RedeemCoupon atomically increments the usage counter when under the cap and
	// records usage. It returns domain.ErrCouponExhausted when the cap is reached.
	RedeemCoupon(ctx context.Context, usage domain.CouponUsage, at time.Time) error
}

// AffiliateRepository stores referral partners.
type AffiliateRepository interface {
	GetAffiliateByCode(ctx context.Context, code string) (domain.Affiliate, error)
	ListAffiliates(ctx context.Context) ([]domain.Affiliate, error)
	CreateAffiliate(ctx context.Context, affiliate *domain.Affiliate) error
	UpdateAffiliate(ctx context.Context, affiliate *domain.Affiliate) error
	DeleteAffiliate(ctx context.Context, id string) error
}

// TokenRepository stores guest access tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, token domain.AccessToken) error
	GetToken(ctx context.Context, token string) (domain.AccessToken, error)
}

// CheckoutProvider talks to the hosted payment page provider.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (domain.CheckoutSession, error)
}

// EventDeduper remembers processed webhook event IDs.
type EventDeduper interface {
	// FirstSeen marks id as seen and reports whether this is the first time.
	FirstSeen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a failed event can be retried.
	Forget(ctx context.Context, id string) error
}
