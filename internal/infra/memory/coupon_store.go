package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moral-quiz-service/internal/domain"
)

// CouponStore is an in-memory implementation of app.CouponRepository and
// app.AffiliateRepository.
type CouponStore struct {
	mu         sync.Mutex
	coupons    map[string]domain.Coupon
	usage      []domain.CouponUsage
	affiliates map[string]domain.Affiliate
}

func NewCouponStore() *CouponStore {
	return &CouponStore{
		coupons:    make(map[string]domain.Coupon),
		affiliates: make(map[string]domain.Affiliate),
	}
}

func (s *CouponStore) GetCouponByCode(_ context.Context, code string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, coupon := range s.coupons {
		if coupon.Code == code {
			return coupon, nil
		}
	}
	return domain.Coupon{}, domain.ErrCouponNotFound
}

func (s *CouponStore) GetCoupon(_ context.Context, id string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupon, ok := s.coupons[id]
	if !ok {
		return domain.Coupon{}, domain.ErrCouponNotFound
	}
	return coupon, nil
}

func (s *CouponStore) ListCoupons(_ context.Context) ([]domain.Coupon, error) {
	s.mu.Lock()
	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, coupon := range s.coupons {
		out = append(out, coupon)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *CouponStore) CreateCoupon(_ context.Context, coupon *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.coupons {
		if existing.Code == coupon.Code {
			return domain.ErrDuplicateCode
		}
	}
	s.coupons[coupon.ID] = *coupon
	return nil
}

func (s *CouponStore) UpdateCoupon(_ context.Context, coupon *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.coupons[coupon.ID]
	if !ok {
		return domain.ErrCouponNotFound
	}
	for id, other := range s.coupons {
		if id != coupon.ID && other.Code == coupon.Code {
			return domain.ErrDuplicateCode
		}
	}
	coupon.CurrentUses = existing.CurrentUses
	coupon.CreatedAt = existing.CreatedAt
	s.coupons[coupon.ID] = *coupon
	return nil
}

func (s *CouponStore) DeleteCoupon(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[id]; !ok {
		return domain.ErrCouponNotFound
	}
	delete(s.coupons, id)
	return nil
}

func (s *CouponStore) RedeemCoupon(_ context.Context, usage domain.CouponUsage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupon, ok := s.coupons[usage.CouponID]
	if !ok {
		return domain.ErrCouponNotFound
	}
	if coupon.MaxUses != nil && coupon.CurrentUses >= *coupon.MaxUses {
		return domain.ErrCouponExhausted
	}
	coupon.CurrentUses++
	coupon.UpdatedAt = at
	s.coupons[coupon.ID] = coupon
	s.usage = append(s.usage, usage)
	return nil
}

// Usage returns the recorded redemptions of a coupon.
func (s *CouponStore) Usage(couponID string) []domain.CouponUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CouponUsage
	for _, u := range s.usage {
		if u.CouponID == couponID {
			out = append(out, u)
		}
	}
	return out
}

func (s *CouponStore) GetAffiliateByCode(_ context.Context, code string) (domain.Affiliate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, affiliate := range s.affiliates {
		if affiliate.Code == code {
			return affiliate, nil
		}
	}
	return domain.Affiliate{}, domain.ErrAffiliateNotFound
}

func (s *CouponStore) ListAffiliates(_ context.Context) ([]domain.Affiliate, error) {
	s.mu.Lock()
	out := make([]domain.Affiliate, 0, len(s.affiliates))
	for _, affiliate := range s.affiliates {
		out = append(out, affiliate)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *CouponStore) CreateAffiliate(_ context.Context, affiliate *domain.Affiliate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.affiliates {
		if existing.Code == affiliate.Code {
			return domain.ErrDuplicateCode
		}
	}
	s.affiliates[affiliate.ID] = *affiliate
	return nil
}

func (s *CouponStore) UpdateAffiliate(_ context.Context, affiliate *domain.Affiliate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.affiliates[affiliate.ID]
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	for id, other := range s.affiliates {
		if id != affiliate.ID && other.Code == affiliate.Code {
			return domain.ErrDuplicateCode
		}
	}
	affiliate.CreatedAt = existing.CreatedAt
	s.affiliates[affiliate.ID] = *affiliate
	return nil
}

func (s *CouponStore) DeleteAffiliate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.affiliates[id]; !ok {
		return domain.ErrAffiliateNotFound
	}
	delete(s.affiliates, id)
	return nil
}
