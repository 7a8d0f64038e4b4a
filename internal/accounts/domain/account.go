package domain

import (
	"strings"
	"time"
)

type AccountStatus string

const (
	StatusUnverified AccountStatus = "unverified"
	StatusVerified   AccountStatus = "verified"
)

// Account is a registered user. The verification and reset fields travel in
// pairs: both set or both nil.
type Account struct {
	ID           string
	Name         string
	Email        string // normalized, see NormalizeEmail
	PasswordHash string // bcrypt encoded
	IsVerified   bool

	VerificationCode        *string
	VerificationCodeExpires *time.Time

	ResetTokenHash    *string // SHA-256 fingerprint of the emailed token
	ResetTokenExpires *time.Time

	// Version increments on every write and guards full-record saves.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail is applied to every email before it reaches the store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a Account) Status() AccountStatus {
	if a.IsVerified {
		return StatusVerified
	}
	return StatusUnverified
}

// HasOutstandingVerification reports whether a verification code is set and
// still live at now.
func (a Account) HasOutstandingVerification(now time.Time) bool {
	return a.VerificationCode != nil && a.VerificationCodeExpires != nil && a.VerificationCodeExpires.After(now)
}

// HasOutstandingReset reports whether a reset token is set and still live at now.
func (a Account) HasOutstandingReset(now time.Time) bool {
	return a.ResetTokenHash != nil && a.ResetTokenExpires != nil && a.ResetTokenExpires.After(now)
}

// SetVerification replaces any existing verification pair.
func (a *Account) SetVerification(code string, expires time.Time) {
	a.VerificationCode = &code
	a.VerificationCodeExpires = &expires
}

func (a *Account) ClearVerification() {
	a.VerificationCode = nil
	a.VerificationCodeExpires = nil
}

// SetReset replaces any existing reset pair.
func (a *Account) SetReset(tokenHash string, expires time.Time) {
	a.ResetTokenHash = &tokenHash
	a.ResetTokenExpires = &expires
}

func (a *Account) ClearReset() {
	a.ResetTokenHash = nil
	a.ResetTokenExpires = nil
}

// Summary is the public projection of an Account. It never carries the
// password hash or any outstanding secret.
type Summary struct {
	ID         string
	Name       string
	Email      string
	IsVerified bool
	CreatedAt  time.Time
}

func (a Account) Summary() Summary {
	return Summary{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
	}
}
