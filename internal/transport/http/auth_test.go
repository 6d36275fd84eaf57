package http

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret", nil)
	token, err := v.Sign("user-1", "User@Example.com", "", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	caller := v.Caller(claims)
	if caller.UserID != "user-1" || caller.Email != "user@example.com" || caller.Admin {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret", nil)

	expired, _ := v.Sign("user-1", "", "", -time.Minute)
	other, _ := NewVerifier("other", nil).Sign("user-1", "", "", time.Minute)
	noSubject, _ := v.Sign("", "", "", time.Minute)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  other,
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"wrong alg":  wrongAlg,
		"garbage":    "abc.def.ghi",
	} {
		if _, err := v.Verify(token); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}

	if _, err := NewVerifier("", nil).Verify(expired); err == nil {
		t.Fatalf("expected rejection without a secret")
	}
}

func TestCallerAdmin(t *testing.T) {
	v := NewVerifier("secret", []string{" Boss@Example.com "})
	cases := []struct {
		name   string
		claims Claims
		want   bool
	}{
		{"listed email", Claims{Email: "boss@example.com"}, true},
		{"role claim", Claims{Role: "admin"}, true},
		{"app metadata", Claims{AppMetadata: AppMetadata{Role: "admin"}}, true},
		{"plain user", Claims{Email: "user@example.com", Role: "authenticated"}, false},
	}
	for _, tc := range cases {
		claims := tc.claims
		claims.Subject = "user-1"
		if got := v.Caller(&claims).Admin; got != tc.want {
			t.Fatalf("%s: admin=%v, want %v", tc.name, got, tc.want)
		}
	}
	if caller := v.Caller(nil); caller.Authenticated() {
		t.Fatalf("nil claims must be anonymous")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"bearer abc": true,
		"Basic abc":  false,
		"Bearer":     false,
		"Bearer   ":  false,
	}
	for header, ok := range cases {
		if _, got := extractBearerToken(header); got != ok {
			t.Fatalf("%q: ok=%v, want %v", header, got, ok)
		}
	}
}
