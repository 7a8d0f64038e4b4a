package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

const accountColumns = `id, name, email, password_hash, is_verified, verification_code, verification_code_expires, reset_token_hash, reset_token_expires, version, created_at, updated_at`

type accountsRepo struct {
	q querier
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                 domain.Account
		code, resetHash   sql.NullString
		codeExp, resetExp sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsVerified,
		&code, &codeExp,
		&resetHash, &resetExp,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.VerificationCode = mapNullStringPtr(code)
	a.VerificationCodeExpires = mapNullTimePtr(codeExp)
	a.ResetTokenHash = mapNullStringPtr(resetHash)
	a.ResetTokenExpires = mapNullTimePtr(resetExp)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	a, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("failed to get account by id: %w", err)
	}
	return a, err
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}
	return a, err
}

func (r *accountsRepo) GetAccountByVerificationCode(
	ctx context.Context,
	email, code string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE email = $1 AND verification_code = $2 AND verification_code_expires > $3`,
		email, code, now.UTC()))
}

func (r *accountsRepo) GetAccountByResetTokenHash(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE reset_token_hash = $1 AND reset_token_expires > $2`,
		tokenHash, now.UTC()))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.IsVerified,
		mapOptionalString(a.VerificationCode), mapOptionalTime(a.VerificationCodeExpires),
		mapOptionalString(a.ResetTokenHash), mapOptionalTime(a.ResetTokenExpires),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapConstraint(err))
	}
	return nil
}

func (r *accountsRepo) SaveAccount(ctx context.Context, a domain.Account, now time.Time) (domain.Account, error) {
	saved, err := scanAccount(r.q.QueryRowContext(ctx,
		`UPDATE accounts SET
			name = $1, email = $2, password_hash = $3, is_verified = $4,
			verification_code = $5, verification_code_expires = $6,
			reset_token_hash = $7, reset_token_expires = $8,
			version = version + 1, updated_at = $9
		 WHERE id = $10 AND version = $11
		 RETURNING `+accountColumns,
		a.Name, a.Email, a.PasswordHash, a.IsVerified,
		mapOptionalString(a.VerificationCode), mapOptionalTime(a.VerificationCodeExpires),
		mapOptionalString(a.ResetTokenHash), mapOptionalTime(a.ResetTokenExpires),
		now.UTC(),
		a.ID, a.Version,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("failed to save account: %w", mapConstraint(err))
	}

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
			is_verified = TRUE,
			verification_code = NULL, verification_code_expires = NULL,
			version = version + 1, updated_at = $1
		 WHERE email = $2 AND verification_code = $3 AND verification_code_expires > $1
		 RETURNING `+accountColumns,
		now.UTC(), email, code))
}

func (r *accountsRepo) ConsumeResetToken(
	ctx context.Context,
	tokenHash, passwordHash string,
	now time.Time,
) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`UPDATE accounts SET
			password_hash = $1,
			reset_token_hash = NULL, reset_token_expires = NULL,
			version = version + 1, updated_at = $2
		 WHERE reset_token_hash = $3 AND reset_token_expires > $2
		 RETURNING `+accountColumns,
		passwordHash, now.UTC(), tokenHash))
}

func (r *accountsRepo) ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET
			verification_code = CASE WHEN verification_code_expires <= $1 THEN NULL ELSE verification_code END,
			verification_code_expires = CASE WHEN verification_code_expires <= $1 THEN NULL ELSE verification_code_expires END,
			reset_token_hash = CASE WHEN reset_token_expires <= $1 THEN NULL ELSE reset_token_hash END,
			reset_token_expires = CASE WHEN reset_token_expires <= $1 THEN NULL ELSE reset_token_expires END,
			version = version + 1, updated_at = $1
		 WHERE verification_code_expires <= $1 OR reset_token_expires <= $1`,
		now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired secrets: %w", err)
	}
	return res.RowsAffected()
}
