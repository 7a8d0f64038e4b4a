package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "bob@example.com", NormalizeEmail("  Bob@Example.COM "))
	require.Equal(t, "", NormalizeEmail("   "))
}

func TestAccount_Pairs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var a Account

	require.Equal(t, StatusUnverified, a.Status())
	require.False(t, a.HasOutstandingVerification(now))

	a.SetVerification("123456", now.Add(30*time.Minute))
	require.True(t, a.HasOutstandingVerification(now))
	require.False(t, a.HasOutstandingVerification(now.Add(30*time.Minute)), "expiry instant is not live")

	a.ClearVerification()
	require.Nil(t, a.VerificationCode)
	require.Nil(t, a.VerificationCodeExpires)

	a.SetReset("fingerprint", now.Add(time.Minute))
	require.True(t, a.HasOutstandingReset(now))
	a.ClearReset()
	require.False(t, a.HasOutstandingReset(now))

	a.IsVerified = true
	require.Equal(t, StatusVerified, a.Status())
}

func TestAccount_SummaryOmitsSecrets(t *testing.T) {
	a := Account{ID: "id", Name: "Bob", Email: "bob@example.com", PasswordHash: "$2a$..."}
	a.SetVerification("123456", time.Now())

	s := a.Summary()
	require.Equal(t, Summary{ID: "id", Name: "Bob", Email: "bob@example.com"}, s)
}
