package domain

import "time"

// Question is a single statement answered on a 1..5 scale.
type Question struct {
	ID          string `json:"id" yaml:"id"`
	Position    int    `json:"position" yaml:"position"`
	Text        string `json:"text" yaml:"text"`
	Category    string `json:"category" yaml:"category"`
	Subcategory string `json:"subcategory,omitempty" yaml:"subcategory"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation"`
}

// PurchaseStatus tracks where a result is in the purchase flow.
type PurchaseStatus string

const (
	PurchaseNone      PurchaseStatus = "none"
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// AccessMethod records how a result was unlocked.
type AccessMethod string

const (
	AccessFree         AccessMethod = "free"
	AccessPurchase     AccessMethod = "purchase"
	AccessSubscription AccessMethod = "subscription"
	AccessGuest        AccessMethod = "guest"
	AccessCoupon       AccessMethod = "coupon"
)

// Result is a scored quiz submission. It is owned either by a user or by a
// guest holding an access token, never both.
type Result struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"userId,omitempty"`
	GuestEmail          string         `json:"guestEmail,omitempty"`
	GuestAccessToken    string         `json:"-"`
	Answers             map[string]int `json:"answers"`
	Level               string         `json:"level"`
	IsPurchased         bool           `json:"isPurchased"`
	IsDetailed          bool           `json:"isDetailed"`
	PurchaseStatus      PurchaseStatus `json:"purchaseStatus"`
	AccessMethod        AccessMethod   `json:"accessMethod"`
	StripeSessionID     string         `json:"stripeSessionId,omitempty"`
	PurchaseInitiatedAt *time.Time     `json:"purchaseInitiatedAt,omitempty"`
	PurchaseCompletedAt *time.Time     `json:"purchaseCompletedAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// IsGuest reports whether the result has no owning user.
func (r Result) IsGuest() bool {
	return r.UserID == ""
}

// ResultFilter narrows dashboard and admin listings.
type ResultFilter struct {
	UserID         string
	Level          string
	Purchased      *bool
	PurchaseStatus PurchaseStatus
	Page           int
	PageSize       int
}

// Normalize clamps paging to sane bounds.
func (f ResultFilter) Normalize() ResultFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// Offset is the row offset for the current page.
func (f ResultFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ResultPage is one page of a result listing.
type ResultPage struct {
	Results  []Result `json:"results"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// Progress is a user's partially answered quiz.
type Progress struct {
	UserID       string         `json:"userId"`
	CurrentIndex int            `json:"currentIndex"`
	Answers      map[string]int `json:"answers"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// AccessToken is a guest capability granting read access to one result.
type AccessToken struct {
	Token     string    `json:"token"`
	ResultID  string    `json:"resultId"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the token is no longer valid at now.
func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Caller identifies who is making a request. The zero value is an anonymous guest.
type Caller struct {
	UserID string
	Email  string
	Admin  bool
}

// Authenticated reports whether the caller is signed in.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// CategoryScore is the per-category part of a detailed report.
type CategoryScore struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Level    string  `json:"level"`
	Answered int     `json:"answered"`
}

// Report is the detailed view unlocked by a purchase.
type Report struct {
	ResultID   string          `json:"resultId"`
	Level      string          `json:"level"`
	Average    float64         `json:"average"`
	Categories []CategoryScore `json:"categories"`
}
