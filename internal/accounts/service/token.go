package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// IssuedToken is a freshly minted bearer token.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenService issues and validates bearer tokens. Tokens carry only the
// account id; there is no revocation list, so a token stays valid until it
// expires even if the password changes in the meantime.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	TTL      time.Duration
	Now      func() time.Time
}

// Issue mints a token bound to accountID.
func (s *TokenService) Issue(accountID string) (IssuedToken, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultTokenTTL
	}

	claims := jwtx.NewClaims(accountID, s.Issuer, ttl, s.now())
	signed, err := s.Signer.Sign(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate recovers the account id from token. Failures wrap ErrExpiredToken
// or ErrInvalidToken together with the underlying jwtx error.
func (s *TokenService) Validate(token string) (string, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return "", fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
