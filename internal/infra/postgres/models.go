package postgres

import (
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID                  string         `bun:"id,pk"`
	UserID              string         `bun:"user_id,nullzero"`
	GuestEmail          string         `bun:"guest_email,nullzero"`
	GuestAccessToken    string         `bun:"guest_access_token,nullzero"`
	Answers             map[string]int `bun:"answers,type:jsonb"`
	Level               string         `bun:"level"`
	IsPurchased         bool           `bun:"is_purchased"`
	IsDetailed          bool           `bun:"is_detailed"`
	PurchaseStatus      string         `bun:"purchase_status"`
	AccessMethod        string         `bun:"access_method"`
	StripeSessionID     string         `bun:"stripe_session_id,nullzero"`
	PurchaseInitiatedAt *time.Time     `bun:"purchase_initiated_at"`
	PurchaseCompletedAt *time.Time     `bun:"purchase_completed_at"`
	CreatedAt           time.Time      `bun:"created_at"`
	UpdatedAt           time.Time      `bun:"updated_at"`
}

func newResultRow(r domain.Result) *resultRow {
	status := r.PurchaseStatus
	if status == "" {
		status = domain.PurchaseNone
	}
	method := r.AccessMethod
	if method == "" {
		method = domain.AccessFree
	}
	return &resultRow{
		ID:                  r.ID,
		UserID:              r.UserID,
		GuestEmail:          r.GuestEmail,
		GuestAccessToken:    r.GuestAccessToken,
		Answers:             r.Answers,
		Level:               r.Level,
		IsPurchased:         r.IsPurchased,
		IsDetailed:          r.IsDetailed,
		PurchaseStatus:      string(status),
		AccessMethod:        string(method),
		StripeSessionID:     r.StripeSessionID,
		PurchaseInitiatedAt: r.PurchaseInitiatedAt,
		PurchaseCompletedAt: r.PurchaseCompletedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (row resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:                  row.ID,
		UserID:              row.UserID,
		GuestEmail:          row.GuestEmail,
		GuestAccessToken:    row.GuestAccessToken,
		Answers:             row.Answers,
		Level:               row.Level,
		IsPurchased:         row.IsPurchased,
		IsDetailed:          row.IsDetailed,
		PurchaseStatus:      domain.PurchaseStatus(row.PurchaseStatus),
		AccessMethod:        domain.AccessMethod(row.AccessMethod),
		StripeSessionID:     row.StripeSessionID,
		PurchaseInitiatedAt: row.PurchaseInitiatedAt,
		PurchaseCompletedAt: row.PurchaseCompletedAt,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

type trackingRow struct {
	bun.BaseModel `bun:"table:purchase_tracking"`

	ID                   string     `bun:"id,pk"`
	ResultID             string     `bun:"result_id,nullzero"`
	UserID               string     `bun:"user_id,nullzero"`
	GuestEmail           string     `bun:"guest_email,nullzero"`
	Product              string     `bun:"product"`
	AmountCents          int64      `bun:"amount_cents"`
	CouponCode           string     `bun:"coupon_code,nullzero"`
	AffiliateCode        string     `bun:"affiliate_code,nullzero"`
	Status               string     `bun:"status"`
	StripeSessionID      string     `bun:"stripe_session_id,nullzero"`
	VerificationDeferred bool       `bun:"verification_deferred"`
	CreatedAt            time.Time  `bun:"created_at"`
	CompletedAt          *time.Time `bun:"completed_at"`
}

func newTrackingRow(t domain.PurchaseTracking) *trackingRow {
	return &trackingRow{
		ID:                   t.ID,
		ResultID:             t.ResultID,
		UserID:               t.UserID,
		GuestEmail:           t.GuestEmail,
		Product:              string(t.Product),
		AmountCents:          t.AmountCents,
		CouponCode:           t.CouponCode,
		AffiliateCode:        t.AffiliateCode,
		Status:               string(t.Status),
		StripeSessionID:      t.StripeSessionID,
		VerificationDeferred: t.VerificationDeferred,
		CreatedAt:            t.CreatedAt,
		CompletedAt:          t.CompletedAt,
	}
}

func (row trackingRow) toDomain() domain.PurchaseTracking {
	return domain.PurchaseTracking{
		ID:                   row.ID,
		ResultID:             row.ResultID,
		UserID:               row.UserID,
		GuestEmail:           row.GuestEmail,
		Product:              domain.Product(row.Product),
		AmountCents:          row.AmountCents,
		CouponCode:           row.CouponCode,
		AffiliateCode:        row.AffiliateCode,
		Status:               domain.PurchaseStatus(row.Status),
		StripeSessionID:      row.StripeSessionID,
		VerificationDeferred: row.VerificationDeferred,
		CreatedAt:            row.CreatedAt,
		CompletedAt:          row.CompletedAt,
	}
}

type guestPurchaseRow struct {
	bun.BaseModel `bun:"table:guest_purchases"`

	ID              string    `bun:"id,pk"`
	Email           string    `bun:"email"`
	ResultID        string    `bun:"result_id"`
	StripeSessionID string    `bun:"stripe_session_id,nullzero"`
	AccessToken     string    `bun:"access_token"`
	CreatedAt       time.Time `bun:"created_at"`
}

type couponRow struct {
	bun.BaseModel `bun:"table:coupons"`

	ID             string     `bun:"id,pk"`
	Code           string     `bun:"code"`
	DiscountType   string     `bun:"discount_type"`
	DiscountAmount int64      `bun:"discount_amount"`
	CurrentUses    int        `bun:"current_uses"`
	MaxUses        *int       `bun:"max_uses"`
	ExpiresAt      *time.Time `bun:"expires_at"`
	Active         bool       `bun:"active"`
	CreatedAt      time.Time  `bun:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at"`
}

func newCouponRow(c domain.Coupon) *couponRow {
	return &couponRow{
		ID:             c.ID,
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		DiscountAmount: c.DiscountAmount,
		CurrentUses:    c.CurrentUses,
		MaxUses:        c.MaxUses,
		ExpiresAt:      c.ExpiresAt,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (row couponRow) toDomain() domain.Coupon {
	return domain.Coupon{
		ID:             row.ID,
		Code:           row.Code,
		DiscountType:   domain.DiscountType(row.DiscountType),
		DiscountAmount: row.DiscountAmount,
		CurrentUses:    row.CurrentUses,
		MaxUses:        row.MaxUses,
		ExpiresAt:      row.ExpiresAt,
		Active:         row.Active,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

type couponUsageRow struct {
	bun.BaseModel `bun:"table:coupon_usage"`

	ID         string    `bun:"id,pk"`
	CouponID   string    `bun:"coupon_id"`
	ResultID   string    `bun:"result_id,nullzero"`
	UserID     string    `bun:"user_id,nullzero"`
	GuestEmail string    `bun:"guest_email,nullzero"`
	UsedAt     time.Time `bun:"used_at"`
}

type affiliateRow struct {
	bun.BaseModel `bun:"table:affiliates"`

	ID                string    `bun:"id,pk"`
	Code              string    `bun:"code"`
	Name              string    `bun:"name"`
	Email             string    `bun:"email,nullzero"`
	CommissionPercent int64     `bun:"commission_percent"`
	Active            bool      `bun:"active"`
	CreatedAt         time.Time `bun:"created_at"`
	UpdatedAt         time.Time `bun:"updated_at"`
}

func newAffiliateRow(a domain.Affiliate) *affiliateRow {
	return &affiliateRow{
		ID:                a.ID,
		Code:              a.Code,
		Name:              a.Name,
		Email:             a.Email,
		CommissionPercent: a.CommissionPercent,
		Active:            a.Active,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (row affiliateRow) toDomain() domain.Affiliate {
	return domain.Affiliate{
		ID:                row.ID,
		Code:              row.Code,
		Name:              row.Name,
		Email:             row.Email,
		CommissionPercent: row.CommissionPercent,
		Active:            row.Active,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

type tokenRow struct {
	bun.BaseModel `bun:"table:temp_access_tokens"`

	Token     string    `bun:"token,pk"`
	ResultID  string    `bun:"result_id"`
	Email     string    `bun:"email,nullzero"`
	ExpiresAt time.Time `bun:"expires_at"`
	CreatedAt time.Time `bun:"created_at"`
}

type progressRow struct {
	bun.BaseModel `bun:"table:quiz_progress"`

	UserID       string         `bun:"user_id,pk"`
	CurrentIndex int            `bun:"current_index"`
	Answers      map[string]int `bun:"answers,type:jsonb"`
	UpdatedAt    time.Time      `bun:"updated_at"`
}
