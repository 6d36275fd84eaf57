package app

import (
	"context"
	"strings"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// CouponService validates discount codes and manages coupons and affiliates.
type CouponService struct {
	coupons    CouponRepository
	affiliates AffiliateRepository
	now        func() time.Time
}

func NewCouponService(coupons CouponRepository, affiliates AffiliateRepository) *CouponService {
	return &CouponService{coupons: coupons, affiliates: affiliates, now: time.Now}
}

// WithClock swaps the time source; used by tests.
func (s *CouponService) WithClock(now func() time.Time) *CouponService {
	s.now = now
	return s
}

// Validate looks up code and prices it against priceCents.
func (s *CouponService) Validate(ctx context.Context, code string, priceCents int64) (domain.Coupon, domain.Quote, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.Coupon{}, domain.Quote{}, domain.ErrCouponNotFound
	}
	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		return domain.Coupon{}, domain.Quote{}, err
	}
	if err := coupon.CheckUsable(s.now()); err != nil {
		return domain.Coupon{}, domain.Quote{}, err
	}
	return coupon, coupon.Apply(priceCents), nil
}

// Redeem records one use of the coupon identified by code.
func (s *CouponService) Redeem(ctx context.Context, code string, usage domain.CouponUsage) error {
	coupon, err := s.coupons.GetCouponByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		return err
	}
	usage.ID = uuid.NewString()
	usage.CouponID = coupon.ID
	now := s.now()
	usage.UsedAt = now
	return s.coupons.RedeemCoupon(ctx, usage, now)
}

func (s *CouponService) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.coupons.ListCoupons(ctx)
	if err != nil {
		return nil, err
	}
	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	return coupons, nil
}

func (s *CouponService) CreateCoupon(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	coupon.Code = domain.NormalizeCode(coupon.Code)
	if err := coupon.Validate(); err != nil {
		return domain.Coupon{}, err
	}
	now := s.now()
	coupon.ID = uuid.NewString()
	coupon.CurrentUses = 0
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	if err := s.coupons.CreateCoupon(ctx, &coupon); err != nil {
		return domain.Coupon{}, err
	}
	return coupon, nil
}

// UpdateCoupon replaces the editable fields; the usage counter is left alone.
func (s *CouponService) UpdateCoupon(ctx context.Context, id string, patch domain.Coupon) (domain.Coupon, error) {
	existing, err := s.coupons.GetCoupon(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	existing.Code = domain.NormalizeCode(patch.Code)
	existing.DiscountType = patch.DiscountType
	existing.DiscountAmount = patch.DiscountAmount
	existing.MaxUses = patch.MaxUses
	existing.ExpiresAt = patch.ExpiresAt
	existing.Active = patch.Active
	if err := existing.Validate(); err != nil {
		return domain.Coupon{}, err
	}
	existing.UpdatedAt = s.now()
	if err := s.coupons.UpdateCoupon(ctx, &existing); err != nil {
		return domain.Coupon{}, err
	}
	return existing, nil
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id string) error {
	return s.coupons.DeleteCoupon(ctx, id)
}

// ResolveAffiliate returns the active affiliate for code.
func (s *CouponService) ResolveAffiliate(ctx context.Context, code string) (domain.Affiliate, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.Affiliate{}, domain.ErrAffiliateNotFound
	}
	affiliate, err := s.affiliates.GetAffiliateByCode(ctx, code)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if !affiliate.Active {
		return domain.Affiliate{}, domain.ErrAffiliateNotFound
	}
	return affiliate, nil
}

func (s *CouponService) ListAffiliates(ctx context.Context) ([]domain.Affiliate, error) {
	affiliates, err := s.affiliates.ListAffiliates(ctx)
	if err != nil {
		return nil, err
	}
	if affiliates == nil {
		affiliates = []domain.Affiliate{}
	}
	return affiliates, nil
}

func (s *CouponService) CreateAffiliate(ctx context.Context, affiliate domain.Affiliate) (domain.Affiliate, error) {
	affiliate.Code = domain.NormalizeCode(affiliate.Code)
	affiliate.Email = strings.ToLower(strings.TrimSpace(affiliate.Email))
	if err := affiliate.Validate(); err != nil {
		return domain.Affiliate{}, err
	}
	now := s.now()
	affiliate.ID = uuid.NewString()
	affiliate.CreatedAt = now
	affiliate.UpdatedAt = now
	if err := s.affiliates.CreateAffiliate(ctx, &affiliate); err != nil {
		return domain.Affiliate{}, err
	}
	return affiliate, nil
}

func (s *CouponService) UpdateAffiliate(ctx context.Context, id string, patch domain.Affiliate) (domain.Affiliate, error) {
	patch.ID = id
	patch.Code = domain.NormalizeCode(patch.Code)
	patch.Email = strings.ToLower(strings.TrimSpace(patch.Email))
	if err := patch.Validate(); err != nil {
		return domain.Affiliate{}, err
	}
	patch.UpdatedAt = s.now()
	if err := s.affiliates.UpdateAffiliate(ctx, &patch); err != nil {
		return domain.Affiliate{}, err
	}
	return patch, nil
}

func (s *CouponService) DeleteAffiliate(ctx context.Context, id string) error {
	return s.affiliates.DeleteAffiliate(ctx, id)
}
