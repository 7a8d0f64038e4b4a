package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"max length password", strings.Repeat("a", MaxPasswordBytes)},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.NotEqual(t, tt.password, hash)
			require.True(t, strings.HasPrefix(hash, "$2a$04$"), "hash should carry the configured cost")

			ok, err := h.Verify(tt.password, hash)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = h.Verify(tt.password+"x", hash)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestHasher_UniqueSalts(t *testing.T) {
	h := NewHasher(4)

	hash1, err := h.Hash("samepassword")
	require.NoError(t, err)
	hash2, err := h.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestHasher_TooLong(t *testing.T) {
	h := NewHasher(4)

	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestHasher_VerifyRejectsOverlongInput(t *testing.T) {
	h := NewHasher(4)
	password := strings.Repeat("a", MaxPasswordBytes)

	hash, err := h.Hash(password)
	require.NoError(t, err)

	for _, suffix := range []string{"a", "SOMETHING-ELSE", strings.Repeat("a", 100)} {
		ok, err := h.Verify(password+suffix, hash)
		require.NoError(t, err)
		require.False(t, ok, "suffix %q", suffix)
	}
	require.False(t, h.DummyVerify(password+"x"))
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(4)

	for _, hash := range []string{"", "not-a-hash", "$argon2id$v=19$m=1,t=1,p=1$abc$def"} {
		ok, err := h.Verify("password", hash)
		require.False(t, ok)
		require.ErrorIs(t, err, ErrMalformedHash, "hash %q", hash)
	}
}

func TestNewHasher_DefaultCost(t *testing.T) {
	require.Equal(t, DefaultCost, NewHasher(0).Cost)
	require.Equal(t, DefaultCost, NewHasher(99).Cost)
	require.Equal(t, 12, NewHasher(12).Cost)
}

func TestHasher_DummyVerify(t *testing.T) {
	require.False(t, NewHasher(4).DummyVerify("anything"))
}
