package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrNotConfigured is returned when no Stripe secret key is set.
var ErrNotConfigured = errors.New("stripe not configured")

// StripeCheckout implements app.CheckoutProvider with Stripe Checkout.
type StripeCheckout struct {
	client   session.Client
	currency string
	enabled  bool
}

// NewStripeCheckout builds a provider over the default API backend.
func NewStripeCheckout(secretKey, currency string) *StripeCheckout {
	return NewStripeCheckoutWithBackend(secretKey, currency, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeCheckoutWithBackend lets tests point the client at a fake API.
func NewStripeCheckoutWithBackend(secretKey, currency string, backend stripe.Backend) *StripeCheckout {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeCheckout{
		client:   session.Client{B: backend, Key: secretKey},
		currency: currency,
		enabled:  secretKey != "",
	}
}

func (c *StripeCheckout) CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if !c.enabled {
		return domain.CheckoutSession{}, ErrNotConfigured
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(c.currency),
		UnitAmount: stripe.Int64(req.AmountCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(req.ProductName),
		},
	}
	mode := stripe.CheckoutSessionModePayment
	if req.Mode == domain.ModeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.TrackingID),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	for key, value := range metadataFor(req) {
		params.AddMetadata(key, value)
	}

	sess, err := c.client.New(params)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return toDomain(sess), nil
}

func (c *StripeCheckout) GetSession(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	if !c.enabled {
		return domain.CheckoutSession{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.client.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return domain.CheckoutSession{}, domain.ErrPurchaseNotFound
		}
		return domain.CheckoutSession{}, fmt.Errorf("get checkout session: %w", err)
	}
	return toDomain(sess), nil
}

// WebhookVerifier checks Stripe signatures and maps events to checkout events.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookVerifier{secret: secret, tolerance: tolerance}
}

// Configured reports whether a signing secret is set.
func (v *WebhookVerifier) Configured() bool {
	return v.secret != ""
}

// Parse verifies the payload signature and decodes checkout session events.
// Events we do not act on come back with Kind EventIgnored.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (domain.CheckoutEvent, error) {
	if !v.Configured() {
		return domain.CheckoutEvent{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.CheckoutEvent{}, fmt.Errorf("verify webhook: %w", err)
	}

	out := domain.CheckoutEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: kindFor(event.Type),
	}
	if out.Kind == domain.EventIgnored {
		return out, nil
	}
	if event.Data == nil {
		return domain.CheckoutEvent{}, errors.New("webhook event has no data")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return domain.CheckoutEvent{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Session = toDomain(&sess)
	return out, nil
}

func kindFor(eventType stripe.EventType) domain.CheckoutEventKind {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return domain.EventCompleted
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		return domain.EventFailed
	default:
		return domain.EventIgnored
	}
}

func metadataFor(req domain.CheckoutRequest) map[string]string {
	meta := map[string]string{
		domain.MetaTrackingID: req.TrackingID,
		domain.MetaProduct:    string(req.Product),
	}
	if req.ResultID != "" {
		meta[domain.MetaResultID] = req.ResultID
	}
	if req.UserID != "" {
		meta[domain.MetaUserID] = req.UserID
	} else if req.Email != "" {
		meta[domain.MetaGuestEmail] = req.Email
	}
	if req.AffiliateCode != "" {
		meta[domain.MetaAffiliate] = req.AffiliateCode
	}
	return meta
}

func toDomain(sess *stripe.CheckoutSession) domain.CheckoutSession {
	out := domain.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		CustomerEmail: sess.CustomerEmail,
		AmountTotal:   sess.AmountTotal,
		Metadata:      sess.Metadata,
	}
	if out.CustomerEmail == "" && sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
