package app

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// PurchaseService starts purchases: it prices the product, records a pending
// tracking row and hands the caller a checkout session.
type PurchaseService struct {
	results     ResultRepository
	purchases   PurchaseRepository
	coupons     *CouponService
	tokens      *AccessTokens
	checkout    CheckoutProvider
	reconciler  *Reconciler
	products    map[domain.Product]domain.ProductConfig
	frontendURL string
	now         func() time.Time
}

func NewPurchaseService(
	results ResultRepository,
	purchases PurchaseRepository,
	coupons *CouponService,
	tokens *AccessTokens,
	checkout CheckoutProvider,
	reconciler *Reconciler,
	products map[domain.Product]domain.ProductConfig,
	frontendURL string,
) *PurchaseService {
	return &PurchaseService{
		results:     results,
		purchases:   purchases,
		coupons:     coupons,
		tokens:      tokens,
		checkout:    checkout,
		reconciler:  reconciler,
		products:    products,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// WithClock swaps the time source; used by tests.
func (s *PurchaseService) WithClock(now func() time.Time) *PurchaseService {
	s.now = now
	return s
}

// Quote prices product with an optional coupon.
func (s *PurchaseService) Quote(ctx context.Context, product domain.Product, couponCode string) (domain.Quote, error) {
	cfg, ok := s.products[product]
	if !ok {
		return domain.Quote{}, domain.ErrUnknownProduct
	}
	if strings.TrimSpace(couponCode) == "" {
		return domain.Quote{OriginalCents: cfg.PriceCents, FinalCents: cfg.PriceCents}, nil
	}
	_, quote, err := s.coupons.Validate(ctx, couponCode, cfg.PriceCents)
	return quote, err
}

// Initiate starts a purchase for caller. A tracking row is written before the
// provider is called; if the provider fails the row is marked failed.
func (s *PurchaseService) Initiate(ctx context.Context, caller domain.Caller, req domain.PurchaseRequest) (domain.PurchaseSession, error) {
	cfg, ok := s.products[req.Product]
	if !ok {
		return domain.PurchaseSession{}, domain.ErrUnknownProduct
	}

	var (
		result    *domain.Result
		presented *domain.AccessToken
	)
	if req.ResultID != "" || cfg.RequireResult {
		if req.ResultID == "" {
			return domain.PurchaseSession{}, domain.ErrResultNotFound
		}
		res, err := s.results.GetResult(ctx, req.ResultID)
		if err != nil {
			return domain.PurchaseSession{}, err
		}
		tok, err := s.authorizeResult(ctx, caller, res, req.AccessToken)
		if err != nil {
			return domain.PurchaseSession{}, err
		}
		presented = tok
		if res.IsPurchased && req.Product == domain.ProductReport {
			return domain.PurchaseSession{}, domain.ErrAlreadyPurchased
		}
		result = &res
	}

	guest := !caller.Authenticated()
	email := caller.Email
	if guest || email == "" {
		if guest && strings.TrimSpace(req.Email) == "" {
			return domain.PurchaseSession{}, domain.ErrEmailRequired
		}
		if strings.TrimSpace(req.Email) != "" {
			normalized, err := normalizeEmail(req.Email)
			if err != nil {
				return domain.PurchaseSession{}, err
			}
			email = normalized
		}
	}

	amount := cfg.PriceCents
	var discount int64
	couponCode := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		coupon, quote, err := s.coupons.Validate(ctx, req.CouponCode, amount)
		if err != nil {
			return domain.PurchaseSession{}, err
		}
		amount = quote.FinalCents
		discount = quote.DiscountCents
		couponCode = coupon.Code
	}
	affiliateCode := ""
	if strings.TrimSpace(req.AffiliateCode) != "" {
		affiliate, err := s.coupons.ResolveAffiliate(ctx, req.AffiliateCode)
		if err != nil {
			return domain.PurchaseSession{}, err
		}
		affiliateCode = affiliate.Code
	}

	now := s.now()
	out := domain.PurchaseSession{
		AmountCents:   amount,
		DiscountCents: discount,
		Status:        domain.PurchasePending,
	}
	tracking := &domain.PurchaseTracking{
		ID:            uuid.NewString(),
		UserID:        caller.UserID,
		Product:       req.Product,
		AmountCents:   amount,
		CouponCode:    couponCode,
		AffiliateCode: affiliateCode,
		Status:        domain.PurchasePending,
		CreatedAt:     now,
	}
	if guest {
		tracking.GuestEmail = email
		out.GuestEmail = email
	}
	if result != nil {
		tracking.ResultID = result.ID
		out.ResultID = result.ID
		if guest && presented != nil {
			out.AccessToken = presented.Token
			out.AccessExpiresAt = &presented.ExpiresAt
		}
	}
	out.TrackingID = tracking.ID

	if err := s.purchases.CreateTracking(ctx, tracking); err != nil {
		return domain.PurchaseSession{}, fmt.Errorf("create tracking: %w", err)
	}
	if result != nil {
		if err := s.results.MarkPurchaseInitiated(ctx, result.ID, tracking.GuestEmail, now); err != nil {
			return domain.PurchaseSession{}, fmt.Errorf("mark purchase initiated: %w", err)
		}
	}

	if amount == 0 {
		// nothing is paid, so the capped redemption is the only gate
		err := s.coupons.Redeem(ctx, couponCode, domain.CouponUsage{
			ResultID:   tracking.ResultID,
			UserID:     tracking.UserID,
			GuestEmail: tracking.GuestEmail,
		})
		if err != nil {
			log.Printf("coupon redemption refused tracking=%s coupon=%s err=%v", tracking.ID, couponCode, err)
			s.abandon(ctx, tracking.ID, result)
			return domain.PurchaseSession{}, err
		}
		view, err := s.reconciler.finalize(ctx, *tracking, "", domain.AccessCoupon, true)
		if err != nil {
			return domain.PurchaseSession{}, err
		}
		out.Status = view.Status
		out.CompletedInstant = true
		out.CheckoutURL = s.returnURL(tracking.ResultID)
		log.Printf("purchase completed without checkout tracking=%s coupon=%s", tracking.ID, couponCode)
		return out, nil
	}

	sess, err := s.checkout.CreateSession(ctx, domain.CheckoutRequest{
		TrackingID:    tracking.ID,
		ResultID:      tracking.ResultID,
		UserID:        caller.UserID,
		Email:         email,
		Product:       req.Product,
		ProductName:   cfg.Name,
		Mode:          cfg.Mode,
		AmountCents:   amount,
		SuccessURL:    s.successURL(tracking.ResultID),
		CancelURL:     s.cancelURL(tracking.ResultID),
		AffiliateCode: affiliateCode,
	})
	if err != nil {
		log.Printf("checkout session failed tracking=%s err=%v", tracking.ID, err)
		s.abandon(ctx, tracking.ID, result)
		return domain.PurchaseSession{}, fmt.Errorf("%w: %v", domain.ErrCheckoutUnavailable, err)
	}

	// the webhook can still find the row through session metadata if these writes fail
	if err := s.purchases.AttachSession(ctx, tracking.ID, sess.ID); err != nil {
		log.Printf("attach session to tracking failed tracking=%s session=%s err=%v", tracking.ID, sess.ID, err)
	}
	if result != nil {
		if err := s.results.AttachSession(ctx, result.ID, sess.ID); err != nil {
			log.Printf("attach session to result failed result=%s session=%s err=%v", result.ID, sess.ID, err)
		}
	}

	out.StripeSessionID = sess.ID
	out.CheckoutURL = sess.URL
	log.Printf("checkout started tracking=%s session=%s product=%s amount=%d", tracking.ID, sess.ID, req.Product, amount)
	return out, nil
}

// abandon marks a purchase that never reached payment as failed.
func (s *PurchaseService) abandon(ctx context.Context, trackingID string, result *domain.Result) {
	if err := s.purchases.FailTracking(ctx, trackingID); err != nil {
		log.Printf("fail tracking failed tracking=%s err=%v", trackingID, err)
	}
	if result != nil {
		if err := s.results.SetPurchaseStatus(ctx, result.ID, domain.PurchaseFailed); err != nil {
			log.Printf("result status update failed result=%s err=%v", result.ID, err)
		}
	}
}

// authorizeResult checks that caller may buy for result. Guest-owned results
// need the access token bound to them; it is returned for the session.
func (s *PurchaseService) authorizeResult(ctx context.Context, caller domain.Caller, result domain.Result, token string) (*domain.AccessToken, error) {
	switch {
	case caller.Admin:
		return nil, nil
	case result.IsGuest():
		if token == "" {
			return nil, domain.ErrForbidden
		}
		tok, err := s.tokens.Validate(ctx, token, result.ID)
		if err != nil {
			return nil, err
		}
		return &tok, nil
	case result.UserID != caller.UserID:
		return nil, domain.ErrForbidden
	}
	return nil, nil
}

func (s *PurchaseService) successURL(resultID string) string {
	q := "success=true&session_id={CHECKOUT_SESSION_ID}"
	if resultID != "" {
		q += "&result_id=" + url.QueryEscape(resultID)
	}
	return s.frontendURL + "/purchase/verify?" + q
}

func (s *PurchaseService) cancelURL(resultID string) string {
	if resultID == "" {
		return s.frontendURL + "/pricing?canceled=true"
	}
	return s.frontendURL + "/results/" + url.PathEscape(resultID) + "?canceled=true"
}

func (s *PurchaseService) returnURL(resultID string) string {
	if resultID == "" {
		return s.frontendURL + DashboardPath + "?success=true"
	}
	return s.frontendURL + "/results/" + url.PathEscape(resultID) + "?success=true"
}
