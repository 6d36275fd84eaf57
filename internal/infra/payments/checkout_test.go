package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestCreateSessionSendsMetadata(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1","status":"open","payment_status":"unpaid","metadata":{"tracking_id":"t1"}}`))
	}))
	defer srv.Close()

	provider := NewStripeCheckoutWithBackend("sk_test_123", "usd", testBackend(srv.URL))
	sess, err := provider.CreateSession(context.Background(), domain.CheckoutRequest{
		TrackingID:  "t1",
		ResultID:    "r1",
		Email:       "guest@example.com",
		Product:     domain.ProductReport,
		ProductName: "Detailed report",
		Mode:        domain.ModePayment,
		AmountCents: 749,
		SuccessURL:  "https://app.test/purchase/verify?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://app.test/results/r1?canceled=true",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID != "cs_test_1" || sess.URL == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	expect := map[string]string{
		"mode":                                   "payment",
		"metadata[tracking_id]":                  "t1",
		"metadata[result_id]":                    "r1",
		"metadata[guest_email]":                  "guest@example.com",
		"metadata[product]":                      "report",
		"line_items[0][price_data][unit_amount]": "749",
		"line_items[0][price_data][currency]":    "usd",
		"customer_email":                         "guest@example.com",
		"client_reference_id":                    "t1",
	}
	for key, want := range expect {
		if form[key] != want {
			t.Fatalf("form[%s]=%q, want %q", key, form[key], want)
		}
	}
}

func TestGetSessionMapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/checkout/sessions/cs_missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"cs_paid","object":"checkout.session","status":"complete","payment_status":"paid","amount_total":1499,"customer_details":{"email":"buyer@example.com"}}`))
	}))
	defer srv.Close()

	provider := NewStripeCheckoutWithBackend("sk_test_123", "usd", testBackend(srv.URL))
	sess, err := provider.GetSession(context.Background(), "cs_paid")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !sess.Paid() || sess.AmountTotal != 1499 || sess.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := provider.GetSession(context.Background(), "cs_missing"); !errors.Is(err, domain.ErrPurchaseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProviderWithoutKey(t *testing.T) {
	provider := NewStripeCheckout("", "usd")
	if _, err := provider.CreateSession(context.Background(), domain.CheckoutRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestWebhookVerifierParse(t *testing.T) {
	const secret = "whsec_test"
	verifier := NewWebhookVerifier(secret, 0)

	cases := []struct {
		eventType string
		want      domain.CheckoutEventKind
	}{
		{"checkout.session.completed", domain.EventCompleted},
		{"checkout.session.async_payment_succeeded", domain.EventCompleted},
		{"checkout.session.expired", domain.EventFailed},
		{"checkout.session.async_payment_failed", domain.EventFailed},
		{"customer.created", domain.EventIgnored},
	}
	for _, tc := range cases {
		payload := eventPayload(t, "evt_"+tc.eventType, tc.eventType)
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now(),
		})
		evt, err := verifier.Parse(signed.Payload, signed.Header)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.eventType, err)
		}
		if evt.Kind != tc.want {
			t.Fatalf("%s: kind=%s, want %s", tc.eventType, evt.Kind, tc.want)
		}
		if tc.want != domain.EventIgnored && (evt.Session.ID != "cs_1" || evt.Session.Metadata[domain.MetaTrackingID] != "t1") {
			t.Fatalf("%s: unexpected session %+v", tc.eventType, evt.Session)
		}
	}
}

func TestWebhookVerifierRejectsBadSignature(t *testing.T) {
	verifier := NewWebhookVerifier("whsec_test", 0)
	payload := eventPayload(t, "evt_1", "checkout.session.completed")
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})
	if _, err := verifier.Parse(signed.Payload, signed.Header); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func eventPayload(t *testing.T, id, eventType string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_1",
				"object":         "checkout.session",
				"status":         "complete",
				"payment_status": "paid",
				"metadata":       map[string]string{"tracking_id": "t1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func testBackend(url string) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
}
