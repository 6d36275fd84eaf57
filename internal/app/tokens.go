package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// AccessTokens issues and checks guest access tokens.
type AccessTokens struct {
	repo TokenRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewAccessTokens(repo TokenRepository, ttl time.Duration) *AccessTokens {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AccessTokens{repo: repo, ttl: ttl, now: time.Now}
}

// WithClock swaps the time source; used by tests.
func (a *AccessTokens) WithClock(now func() time.Time) *AccessTokens {
	a.now = now
	return a
}

// Issue creates a fresh token granting access to resultID.
func (a *AccessTokens) Issue(ctx context.Context, resultID, email string) (domain.AccessToken, error) {
	token := a.Mint(resultID, email)
	if err := a.Store(ctx, token); err != nil {
		return domain.AccessToken{}, err
	}
	return token, nil
}

// Mint builds a token without persisting it. The result it names must exist
// before Store is called.
func (a *AccessTokens) Mint(resultID, email string) domain.AccessToken {
	now := a.now()
	return domain.AccessToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		ResultID:  resultID,
		Email:     email,
		ExpiresAt: now.Add(a.ttl),
		CreatedAt: now,
	}
}

func (a *AccessTokens) Store(ctx context.Context, token domain.AccessToken) error {
	return a.repo.CreateToken(ctx, token)
}

// Validate checks that token exists, is unexpired and is bound to resultID.
func (a *AccessTokens) Validate(ctx context.Context, token, resultID string) (domain.AccessToken, error) {
	if token == "" {
		return domain.AccessToken{}, domain.ErrTokenNotFound
	}
	tok, err := a.repo.GetToken(ctx, token)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if tok.Expired(a.now()) {
		return domain.AccessToken{}, domain.ErrTokenExpired
	}
	if resultID != "" && tok.ResultID != resultID {
		return domain.AccessToken{}, domain.ErrForbidden
	}
	return tok, nil
}

// Resolve returns the token's result ID for token-only lookups.
func (a *AccessTokens) Resolve(ctx context.Context, token string) (string, error) {
	tok, err := a.Validate(ctx, token, "")
	if err != nil {
		return "", err
	}
	return tok.ResultID, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrEmailRequired
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", errors.Join(domain.ErrInvalidEmail, err)
	}
	return strings.ToLower(addr.Address), nil
}
