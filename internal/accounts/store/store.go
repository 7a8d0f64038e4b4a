package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrConflict      = errors.New("store: concurrent modification")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are reached through methods so a Tx can
// hand out tx-scoped repos with the same shape.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Accounts persists account records. Emails are expected to be normalized by
// the caller. Every lookup that takes a now only matches secrets whose expiry
// is strictly after now.
type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByVerificationCode matches email and code with a live expiry.
	GetAccountByVerificationCode(ctx context.Context, email, code string, now time.Time) (domain.Account, error)

	// GetAccountByResetTokenHash matches a live reset token fingerprint.
	GetAccountByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (domain.Account, error)

	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SaveAccount persists every mutable field of a. It only succeeds when the
	// stored version still equals a.Version, and returns ErrConflict otherwise.
	// The returned account carries the new version.
	SaveAccount(ctx context.Context, a domain.Account, now time.Time) (domain.Account, error)

	// ConsumeVerificationCode marks the matching account verified and clears
	// its verification pair in a single conditional write.
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (domain.Account, error)

	// ConsumeResetToken replaces the password hash and clears the reset pair
	// in a single conditional write.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (domain.Account, error)

	// ClearExpiredSecrets nulls every verification and reset pair whose expiry
	// is at or before now. Returns the number of accounts touched.
	ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}
