package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

const accountColumns = `id, name, email, password_hash, is_verified,
	verification_code, verification_code_expires,
	reset_token_hash, reset_token_expires,
	version, created_at, updated_at`

type accountsRepo struct {
	q querier
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                  domain.Account
		code, resetHash    sql.NullString
		codeExp, resetExp  sql.NullInt64
		createdAt, updated int64
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsVerified,
		&code, &codeExp,
		&resetHash, &resetExp,
		&a.Version, &createdAt, &updated,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.VerificationCode = mapNullStringPtr(code)
	a.VerificationCodeExpires = mapNullMillis(codeExp)
	a.ResetTokenHash = mapNullStringPtr(resetHash)
	a.ResetTokenExpires = mapNullMillis(resetExp)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) GetAccountByVerificationCode(
	ctx context.Context,
	email, code string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE email = ? AND verification_code = ? AND verification_code_expires > ?`,
		email, code, toMillis(now)))
}

func (r *accountsRepo) GetAccountByResetTokenHash(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE reset_token_hash = ? AND reset_token_expires > ?`,
		tokenHash, toMillis(now)))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (
			id, name, email, password_hash, is_verified,
			verification_code, verification_code_expires,
			reset_token_hash, reset_token_expires,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.IsVerified,
		mapOptionalString(a.VerificationCode), mapOptionalMillis(a.VerificationCodeExpires),
		mapOptionalString(a.ResetTokenHash), mapOptionalMillis(a.ResetTokenExpires),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create account: %w", mapConstraint(err))
	}
	return nil
}

func (r *accountsRepo) SaveAccount(ctx context.Context, a domain.Account, now time.Time) (domain.Account, error) {
	saved, err := scanAccount(r.q.QueryRowContext(ctx,
		`UPDATE accounts SET
			name = ?, email = ?, password_hash = ?, is_verified = ?,
			verification_code = ?, verification_code_expires = ?,
			reset_token_hash = ?, reset_token_expires = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?
		 RETURNING `+accountColumns,
		a.Name, a.Email, a.PasswordHash, a.IsVerified,
		mapOptionalString(a.VerificationCode), mapOptionalMillis(a.VerificationCodeExpires),
		mapOptionalString(a.ResetTokenHash), mapOptionalMillis(a.ResetTokenExpires),
		toMillis(now),
		a.ID, a.Version,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("save account: %w", mapConstraint(err))
	}

	// Distinguish a missing row from a stale version.
	if _, getErr := r.GetAccountByID(ctx, a.ID); getErr != nil {
		return domain.Account{}, getErr
	}
	return domain.Account{}, store.ErrConflict
}

func (r *accountsRepo) ConsumeVerificationCode(
	ctx context.Context,
	email, code string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`UPDATE accounts SET
			is_verified = 1,
			verification_code = NULL, verification_code_expires = NULL,
			version = version + 1, updated_at = ?
		 WHERE email = ? AND verification_code = ? AND verification_code_expires > ?
		 RETURNING `+accountColumns,
		toMillis(now), email, code, toMillis(now)))
}

func (r *accountsRepo) ConsumeResetToken(
	ctx context.Context,
	tokenHash, passwordHash string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`UPDATE accounts SET
			password_hash = ?,
			reset_token_hash = NULL, reset_token_expires = NULL,
			version = version + 1, updated_at = ?
		 WHERE reset_token_hash = ? AND reset_token_expires > ?
		 RETURNING `+accountColumns,
		passwordHash, toMillis(now), tokenHash, toMillis(now)))
}

func (r *accountsRepo) ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	ms := toMillis(now)
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET
			verification_code = CASE WHEN verification_code_expires <= ? THEN NULL ELSE verification_code END,
			verification_code_expires = CASE WHEN verification_code_expires <= ? THEN NULL ELSE verification_code_expires END,
			reset_token_hash = CASE WHEN reset_token_expires <= ? THEN NULL ELSE reset_token_hash END,
			reset_token_expires = CASE WHEN reset_token_expires <= ? THEN NULL ELSE reset_token_expires END,
			version = version + 1, updated_at = ?
		 WHERE verification_code_expires <= ? OR reset_token_expires <= ?`,
		ms, ms, ms, ms, ms, ms, ms)
	if err != nil {
		return 0, fmt.Errorf("clear expired secrets: %w", err)
	}
	return res.RowsAffected()
}
