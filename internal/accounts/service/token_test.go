package service

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{Issuer: "accounts", Now: now})
	require.NoError(t, err)
	return &TokenService{Signer: signer, Verifier: verifier, Issuer: "accounts", TTL: time.Hour, Now: now}
}

func TestTokenService_RoundTrip(t *testing.T) {
	clock := &testClock{now: startTime}
	ts := newTokenService(t, clock.Now)

	tok, err := ts.Issue("acct-1")
	require.NoError(t, err)
	require.Equal(t, startTime.Add(time.Hour), tok.ExpiresAt)
	require.Equal(t, 2, strings.Count(tok.Token, "."))

	id, err := ts.Validate(tok.Token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", id)

	clock.Advance(time.Hour)
	_, err = ts.Validate(tok.Token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_Rejects(t *testing.T) {
	clock := &testClock{now: startTime}
	ts := newTokenService(t, clock.Now)

	_, err := ts.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := jwtx.NewSignerHS256([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	forged, err := other.Sign(jwtx.NewClaims("acct-1", "accounts", time.Hour, startTime))
	require.NoError(t, err)
	_, err = ts.Validate(forged)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	wrongIssuer, err := ts.Signer.Sign(jwtx.NewClaims("acct-1", "someone-else", time.Hour, startTime))
	require.NoError(t, err)
	_, err = ts.Validate(wrongIssuer)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_DefaultTTL(t *testing.T) {
	ts := newTokenService(t, func() time.Time { return startTime })
	ts.TTL = 0

	tok, err := ts.Issue("acct-1")
	require.NoError(t, err)
	require.Equal(t, startTime.Add(30*24*time.Hour), tok.ExpiresAt)
}
