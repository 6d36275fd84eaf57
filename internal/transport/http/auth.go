package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

type authCtxKey int

const claimsKey authCtxKey = iota

// Claims are the fields we read from the hosted auth provider's tokens.
type Claims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

type AppMetadata struct {
	Role string `json:"role"`
}

// Verifier validates HS256 bearer tokens and decides admin access.
type Verifier struct {
	secret      []byte
	adminEmails map[string]struct{}
}

func NewVerifier(secret string, adminEmails []string) *Verifier {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Verifier{secret: []byte(secret), adminEmails: admins}
}

// Verify parses and validates a token string.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Sign issues a token; used by tests and local tooling.
func (v *Verifier) Sign(subject, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Caller maps verified claims to the application's caller.
func (v *Verifier) Caller(claims *Claims) domain.Caller {
	if claims == nil {
		return domain.Caller{}
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	_, listed := v.adminEmails[email]
	admin := claims.Role == "admin" || claims.AppMetadata.Role == "admin" || (email != "" && listed)
	return domain.Caller{UserID: claims.Subject, Email: email, Admin: admin}
}

// WithClaims stores auth claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims from a context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// OptionalAuth attaches claims when a bearer token is present. A present but
// invalid token is rejected rather than silently downgraded to a guest.
func OptionalAuth(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := extractBearerToken(header)
		if !ok {
			log.Printf("auth failure: malformed Authorization header path=%s", c.Request.URL.Path)
			respondUnauthorized(c, "invalid authorization header")
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			log.Printf("auth failure: token invalid path=%s err=%v", c.Request.URL.Path, err)
			respondUnauthorized(c, "invalid token")
			return
		}
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireAuth rejects requests that carry no verified claims. Mount after OptionalAuth.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFromContext(c.Request.Context()); !ok {
			respondUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. Mount after OptionalAuth.
func RequireAdmin(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			respondUnauthorized(c, "authentication required")
			return
		}
		if !verifier.Caller(claims).Admin {
			log.Printf("auth failure: admin required path=%s sub=%s", c.Request.URL.Path, claims.Subject)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
