package domain

import (
	"strings"
	"time"
)

// DiscountType is either a percentage or a fixed amount in cents.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon is an admin-managed discount code.
type Coupon struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discountType"`
	DiscountAmount int64        `json:"discountAmount"` // percent points or cents
	CurrentUses    int          `json:"currentUses"`
	MaxUses        *int         `json:"maxUses,omitempty"`
	ExpiresAt      *time.Time   `json:"expiresAt,omitempty"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// CouponUsage is one redemption of a coupon.
type CouponUsage struct {
	ID         string    `json:"id"`
	CouponID   string    `json:"couponId"`
	ResultID   string    `json:"resultId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	GuestEmail string    `json:"guestEmail,omitempty"`
	UsedAt     time.Time `json:"usedAt"`
}

// Quote is the price after applying a coupon.
type Quote struct {
	Code          string `json:"code"`
	OriginalCents int64  `json:"originalCents"`
	DiscountCents int64  `json:"discountCents"`
	FinalCents    int64  `json:"finalCents"`
}

// NormalizeCode canonicalizes coupon and affiliate codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon definition itself.
func (c Coupon) Validate() error {
	if NormalizeCode(c.Code) == "" {
		return ErrInvalidCoupon
	}
	switch c.DiscountType {
	case DiscountPercent:
		if c.DiscountAmount <= 0 || c.DiscountAmount > 100 {
			return ErrInvalidCoupon
		}
	case DiscountFixed:
		if c.DiscountAmount <= 0 {
			return ErrInvalidCoupon
		}
	default:
		return ErrInvalidCoupon
	}
	if c.MaxUses != nil && *c.MaxUses < 0 {
		return ErrInvalidCoupon
	}
	return nil
}

// CheckUsable reports why the coupon cannot be redeemed at now, if at all.
func (c Coupon) CheckUsable(now time.Time) error {
	if !c.Active {
		return ErrCouponInactive
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return ErrCouponExhausted
	}
	return nil
}

// Discount returns the discount in cents for a price. Percentages round half
// up to the nearest cent and the discount never exceeds the price.
func (c Coupon) Discount(priceCents int64) int64 {
	if priceCents <= 0 || c.DiscountAmount <= 0 {
		return 0
	}
	var discount int64
	switch c.DiscountType {
	case DiscountPercent:
		pct := c.DiscountAmount
		if pct > 100 {
			pct = 100
		}
		discount = (priceCents*pct + 50) / 100
	case DiscountFixed:
		discount = c.DiscountAmount
	}
	if discount > priceCents {
		discount = priceCents
	}
	return discount
}

// Apply builds a quote for a price.
func (c Coupon) Apply(priceCents int64) Quote {
	discount := c.Discount(priceCents)
	final := priceCents - discount
	if final < 0 {
		final = 0
	}
	return Quote{
		Code:          c.Code,
		OriginalCents: priceCents,
		DiscountCents: discount,
		FinalCents:    final,
	}
}

// Affiliate is a referral partner whose code can be attached to purchases.
type Affiliate struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	CommissionPercent int64     `json:"commissionPercent"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Validate checks the affiliate definition.
func (a Affiliate) Validate() error {
	if NormalizeCode(a.Code) == "" || strings.TrimSpace(a.Name) == "" {
		return ErrInvalidAffiliate
	}
	if a.CommissionPercent < 0 || a.CommissionPercent > 100 {
		return ErrInvalidAffiliate
	}
	return nil
}
