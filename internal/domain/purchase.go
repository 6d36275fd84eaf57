package domain

import "time"

// Product names a purchasable item.
type Product string

const (
	ProductReport       Product = "report"
	ProductSubscription Product = "subscription"
	ProductBook         Product = "book"
)

// CheckoutMode mirrors the payment provider's checkout modes.
type CheckoutMode string

const (
	ModePayment      CheckoutMode = "payment"
	ModeSubscription CheckoutMode = "subscription"
)

// ProductConfig is the priced definition of a product.
type ProductConfig struct {
	Name          string       `yaml:"name"`
	PriceCents    int64        `yaml:"price_cents"`
	Mode          CheckoutMode `yaml:"mode"`
	RequireResult bool         `yaml:"require_result"`
}

// PurchaseTracking is the bookkeeping row for one purchase attempt.
type PurchaseTracking struct {
	ID                   string         `json:"id"`
	ResultID             string         `json:"resultId,omitempty"`
	UserID               string         `json:"userId,omitempty"`
	GuestEmail           string         `json:"guestEmail,omitempty"`
	Product              Product        `json:"product"`
	AmountCents          int64          `json:"amountCents"`
	CouponCode           string         `json:"couponCode,omitempty"`
	AffiliateCode        string         `json:"affiliateCode,omitempty"`
	Status               PurchaseStatus `json:"status"`
	StripeSessionID      string         `json:"stripeSessionId,omitempty"`
	VerificationDeferred bool           `json:"verificationDeferred"`
	CreatedAt            time.Time      `json:"createdAt"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
}

// IsGuest reports whether the purchase was made without an account.
func (t PurchaseTracking) IsGuest() bool {
	return t.UserID == ""
}

// GuestPurchase records a completed purchase made without an account.
type GuestPurchase struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	ResultID        string    `json:"resultId"`
	StripeSessionID string    `json:"stripeSessionId"`
	AccessToken     string    `json:"accessToken"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PurchaseRequest is the input to purchase initiation.
type PurchaseRequest struct {
	ResultID      string  `json:"result_id"`
	Product       Product `json:"product"`
	Email         string  `json:"email"`
	CouponCode    string  `json:"coupon_code"`
	AffiliateCode string  `json:"affiliate_code"`
	// AccessToken proves ownership of a guest result.
	AccessToken string `json:"access_token"`
}

// PurchaseSession carries every identifier of an in-flight purchase back to
// the caller as one typed value.
type PurchaseSession struct {
	TrackingID       string         `json:"trackingId"`
	ResultID         string         `json:"resultId,omitempty"`
	StripeSessionID  string         `json:"stripeSessionId,omitempty"`
	CheckoutURL      string         `json:"checkoutUrl"`
	GuestEmail       string         `json:"guestEmail,omitempty"`
	AccessToken      string         `json:"accessToken,omitempty"`
	AccessExpiresAt  *time.Time     `json:"accessExpiresAt,omitempty"`
	AmountCents      int64          `json:"amountCents"`
	DiscountCents    int64          `json:"discountCents"`
	Status           PurchaseStatus `json:"status"`
	CompletedInstant bool           `json:"completedInstant"`
}

// CheckoutRequest is what the service asks the payment provider to create.
type CheckoutRequest struct {
	TrackingID    string
	ResultID      string
	UserID        string
	Email         string
	Product       Product
	ProductName   string
	Mode          CheckoutMode
	AmountCents   int64
	SuccessURL    string
	CancelURL     string
	AffiliateCode string
}

// Metadata keys stamped on checkout sessions.
const (
	MetaTrackingID = "tracking_id"
	MetaResultID   = "result_id"
	MetaUserID     = "user_id"
	MetaGuestEmail = "guest_email"
	MetaProduct    = "product"
	MetaAffiliate  = "affiliate_code"
)

// CheckoutSession is the provider's view of a checkout.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	CustomerEmail string
	AmountTotal   int64
	Metadata      map[string]string
}

// Paid reports whether the provider confirmed payment.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// Expired reports whether the session can no longer be paid.
func (s CheckoutSession) Expired() bool {
	return s.Status == "expired"
}

// CheckoutEventKind classifies provider webhook events we act on.
type CheckoutEventKind string

const (
	EventCompleted CheckoutEventKind = "completed"
	EventFailed    CheckoutEventKind = "failed"
	EventIgnored   CheckoutEventKind = "ignored"
)

// CheckoutEvent is a verified webhook event.
type CheckoutEvent struct {
	ID      string
	Type    string
	Kind    CheckoutEventKind
	Session CheckoutSession
}

// MatchStrategy names how a completed checkout is matched to a result row.
type MatchStrategy string

const (
	MatchByUser       MatchStrategy = "user"
	MatchBySession    MatchStrategy = "session"
	MatchByGuestEmail MatchStrategy = "guest_email"
	MatchByID         MatchStrategy = "id"
)

// ResultMatch selects the result row a purchase applies to.
type ResultMatch struct {
	Strategy   MatchStrategy
	ResultID   string
	UserID     string
	SessionID  string
	GuestEmail string
}

// PurchaseUpdate is the state written to a result once payment is confirmed.
type PurchaseUpdate struct {
	SessionID    string
	AccessMethod AccessMethod
	CompletedAt  time.Time
}

// PurchaseStatusView is the read-only status clients poll or subscribe to.
type PurchaseStatusView struct {
	SessionID  string         `json:"sessionId"`
	TrackingID string         `json:"trackingId"`
	ResultID   string         `json:"resultId,omitempty"`
	Status     PurchaseStatus `json:"status"`
	Verified   bool           `json:"verified"`
	Deferred   bool           `json:"deferred"`
	RedirectTo string         `json:"redirectTo,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Terminal reports whether the status will not change again.
func (v PurchaseStatusView) Terminal() bool {
	return v.Status == PurchaseCompleted || v.Status == PurchaseFailed
}
