package cryptox

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when a Hasher is created with a zero cost.
const DefaultCost = 10

// MaxPasswordBytes is the longest input bcrypt will accept. Longer inputs must be
// rejected by the caller; bcrypt would otherwise refuse or silently truncate them.
const MaxPasswordBytes = 72

var (
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrMalformedHash   = errors.New("malformed password hash")
)

// Hasher produces and checks one-way password hashes.
type Hasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher using cost, or DefaultCost when cost is outside bcrypt's range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns a salted bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether password matches hash. A mismatch is (false, nil);
// an error is only returned when the stored hash cannot be parsed. Inputs
// longer than MaxPasswordBytes never match, since bcrypt ignores the tail.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		h.DummyVerify(password)
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort):
		return false, ErrMalformedHash
	default:
		var invalid bcrypt.InvalidHashPrefixError
		if errors.As(err, &invalid) {
			return false, ErrMalformedHash
		}
		return false, fmt.Errorf("verify password: %w", err)
	}
}

// DummyVerify performs a throwaway comparison at the hasher's cost so that a
// lookup miss spends the same time as a real comparison. It always reports false.
func (h *Hasher) DummyVerify(password string) bool {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), h.cost())
	})
	if len(password) > MaxPasswordBytes {
		password = password[:MaxPasswordBytes]
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}

func (h *Hasher) cost() int {
	if h.Cost == 0 {
		return DefaultCost
	}
	return h.Cost
}
