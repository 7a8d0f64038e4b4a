package jwtx_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newPair(t *testing.T, now func() time.Time) (*jwtx.HS256Signer, *jwtx.HS256Verifier) {
	t.Helper()

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	verifier, err := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{Issuer: "accounts", Now: now})
	require.NoError(t, err)

	return signer, verifier
}

func TestHS256_SignAndVerify(t *testing.T) {
	now := time.Now().UTC()
	signer, verifier := newPair(t, func() time.Time { return now })
	require.Equal(t, "HS256", signer.Alg())

	token, err := signer.Sign(jwtx.NewClaims("acc-1", "accounts", time.Hour, now))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acc-1", claims.Subject)
}

func TestHS256_Expired(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	signer, verifier := newPair(t, func() time.Time { return clock })

	token, err := signer.Sign(jwtx.NewClaims("acc-1", "accounts", time.Hour, now))
	require.NoError(t, err)

	clock = now.Add(2 * time.Hour)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256_Rejects(t *testing.T) {
	now := time.Now().UTC()
	signer, verifier := newPair(t, func() time.Time { return now })

	good, err := signer.Sign(jwtx.NewClaims("acc-1", "accounts", time.Hour, now))
	require.NoError(t, err)

	other, err := jwtx.NewSignerHS256([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	forged, err := other.Sign(jwtx.NewClaims("acc-1", "accounts", time.Hour, now))
	require.NoError(t, err)

	wrongIssuer, err := signer.Sign(jwtx.NewClaims("acc-1", "elsewhere", time.Hour, now))
	require.NoError(t, err)

	noSubject, err := signer.Sign(jwtx.NewClaims("", "accounts", time.Hour, now))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwtx.NewClaims("acc-1", "accounts", time.Hour, now)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", jwtx.ErrMalformed},
		{"empty", "", jwtx.ErrMalformed},
		{"wrong secret", forged, jwtx.ErrInvalidSig},
		{"alg none", unsigned, jwtx.ErrInvalidSig},
		{"tampered payload", tampered, jwtx.ErrMalformed},
		{"wrong issuer", wrongIssuer, jwtx.ErrIssuer},
		{"missing subject", noSubject, jwtx.ErrInvalidClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.Error(t, err)
			if tt.name == "tampered payload" {
				// A tampered segment is either undecodable or fails the MAC.
				require.True(t, errors.Is(err, jwtx.ErrMalformed) || errors.Is(err, jwtx.ErrInvalidSig))
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHS256_WeakSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)

	_, err = jwtx.NewVerifierHS256(nil, jwtx.VerifyOptions{})
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

