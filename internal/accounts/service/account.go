package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/notify"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	DefaultCodeTTL  = 30 * time.Minute
	DefaultResetTTL = 30 * time.Minute

	// RegisterDispatchWarning is returned alongside a successful registration
	// when the verification email could not be delivered.
	RegisterDispatchWarning = "account created, but the verification email could not be sent; request a new code"

	// saveAttempts bounds the optimistic retry loop in updateByEmail.
	saveAttempts = 2
)

// AccountService drives the account lifecycle: registration, login, email
// verification and password reset. Every dependency is injected; there is
// no package-level state.
//
// Dispatch policy: state is committed before any email is sent and is never
// rolled back when sending fails. Operations whose only purpose is delivery
// (ResendVerification, ForgotPassword) report ErrDispatchFailure. Register has
// a primary effect beyond delivery, so it succeeds with a warning instead.
type AccountService struct {
	Store      store.Store
	Hasher     *cryptox.Hasher
	Tokens     *TokenService
	Dispatcher notify.Dispatcher
	Metrics    *metrics.Metrics

	// ClientURL is the base of the password reset link.
	ClientURL string
	CodeTTL   time.Duration
	ResetTTL  time.Duration
	Now       func() time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Account   domain.Summary
	Token     string
	ExpiresAt time.Time
	Warning   string
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.By(passwordFits)),
	))
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required, validation.By(passwordFits)),
	))
}

type VerifyEmailInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (in VerifyEmailInput) validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Code, validation.Required),
	))
}

type ResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (in ResetPasswordInput) validate() error {
	return asValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
		validation.Field(&in.Password, validation.Required, validation.By(passwordFits)),
	))
}

func validateEmail(email string) error {
	return asValidationError(validation.Errors{
		"email": validation.Validate(email, validation.Required),
	}.Filter())
}

func passwordFits(value any) error {
	s, _ := value.(string)
	if len(s) > cryptox.MaxPasswordBytes {
		return errors.New("must be at most 72 bytes")
	}
	return nil
}

// Register creates an unverified account, issues a bearer token and emails a
// verification code.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Normalize and validate.
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		s.Metrics.Operation("register", metrics.ResultFailure)
		return AuthResult{}, err
	}

	// 2. Hash the password and mint the first verification code.
	hash, err := s.hash(in.Password)
	if err != nil {
		return AuthResult{}, err
	}
	code, err := cryptox.GenerateVerificationCode()
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	account := domain.Account{
		ID:           idx.NewAt(now).String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	account.SetVerification(code, now.Add(s.codeTTL()))

	// 3. Persist. The unique email index decides duplicates.
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		s.Metrics.Operation("register", metrics.ResultFailure)
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Info("registration rejected: email taken")
			return AuthResult{}, ErrDuplicateAccount
		}
		log.Error("failed to create account", slog.Any("error", err))
		return AuthResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	account.Version = 1

	// 4. Issue the bearer token.
	token, err := s.Tokens.Issue(account.ID)
	if err != nil {
		log.Error("failed to issue token", slog.String("account_id", account.ID), slog.Any("error", err))
		return AuthResult{}, err
	}

	result := AuthResult{
		Account:   account.Summary(),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}

	// 5. Deliver the code. The account stays created whatever happens here.
	if err := s.sendVerification(ctx, account, code); err != nil {
		log.Warn("verification email failed after registration",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		result.Warning = RegisterDispatchWarning
		s.Metrics.Operation("register", metrics.ResultWarning)
		return result, nil
	}

	log.Info("account registered", slog.String("account_id", account.ID))
	s.Metrics.Operation("register", metrics.ResultSuccess)
	return result, nil
}

// Login checks credentials and issues a bearer token. Unknown accounts and
// wrong passwords both wrap ErrInvalidCredentials and cost one bcrypt
// comparison, so callers cannot tell them apart.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	log := slogx.FromContext(ctx)

	in.Email = domain.NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		s.Metrics.Operation("login", metrics.ResultFailure)
		return AuthResult{}, err
	}

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, in.Email)
	if err != nil {
		s.Metrics.Operation("login", metrics.ResultFailure)
		if errors.Is(err, store.ErrNotFound) {
			start := time.Now()
			s.Hasher.DummyVerify(in.Password)
			s.Metrics.ObserveHash(start)
			return AuthResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrNotFound)
		}
		log.Error("failed to load account for login", slog.Any("error", err))
		return AuthResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	start := time.Now()
	ok, err := s.Hasher.Verify(in.Password, account.PasswordHash)
	s.Metrics.ObserveHash(start)
	if err != nil {
		s.Metrics.Operation("login", metrics.ResultFailure)
		log.Error("stored password hash is unusable",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return AuthResult{}, err
	}
	if !ok {
		s.Metrics.Operation("login", metrics.ResultFailure)
		log.Info("login rejected: bad password", slog.String("account_id", account.ID))
		return AuthResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrBadCredentials)
	}

	token, err := s.Tokens.Issue(account.ID)
	if err != nil {
		log.Error("failed to issue token", slog.String("account_id", account.ID), slog.Any("error", err))
		return AuthResult{}, err
	}

	s.Metrics.Operation("login", metrics.ResultSuccess)
	return AuthResult{
		Account:   account.Summary(),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// VerifyEmail consumes a live verification code and marks the account
// verified. A code can be consumed once.
func (s *AccountService) VerifyEmail(ctx context.Context, in VerifyEmailInput) (domain.Summary, error) {
	log := slogx.FromContext(ctx)

	in.Email = domain.NormalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if err := in.validate(); err != nil {
		s.Metrics.Operation("verify_email", metrics.ResultFailure)
		return domain.Summary{}, err
	}

	account, err := s.Store.Accounts().ConsumeVerificationCode(ctx, in.Email, in.Code, s.now())
	if err != nil {
		s.Metrics.Operation("verify_email", metrics.ResultFailure)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Summary{}, ErrInvalidOrExpiredCode
		}
		log.Error("failed to consume verification code", slog.Any("error", err))
		return domain.Summary{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	log.Info("email verified", slog.String("account_id", account.ID))
	s.Metrics.Operation("verify_email", metrics.ResultSuccess)
	return account.Summary(), nil
}

// ResendVerification replaces the outstanding verification code with a new
// one and emails it. The old code stops working as soon as the new one is
// stored, even if the email then fails.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		s.Metrics.Operation("resend_verification", metrics.ResultFailure)
		return err
	}

	code, err := cryptox.GenerateVerificationCode()
	if err != nil {
		return err
	}

	account, err := s.updateByEmail(ctx, email, func(a *domain.Account, now time.Time) {
		a.SetVerification(code, now.Add(s.codeTTL()))
	})
	if err != nil {
		s.Metrics.Operation("resend_verification", metrics.ResultFailure)
		return err
	}

	if err := s.sendVerification(ctx, account, code); err != nil {
		s.Metrics.Operation("resend_verification", metrics.ResultFailure)
		log.Error("failed to resend verification email",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrDispatchFailure, err)
	}

	s.Metrics.Operation("resend_verification", metrics.ResultSuccess)
	return nil
}

// ForgotPassword stores the fingerprint of a fresh reset token and emails the
// raw token as a link. Any earlier reset token is invalidated.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		s.Metrics.Operation("forgot_password", metrics.ResultFailure)
		return err
	}

	token, err := cryptox.GenerateResetToken()
	if err != nil {
		return err
	}

	account, err := s.updateByEmail(ctx, email, func(a *domain.Account, now time.Time) {
		a.SetReset(cryptox.FingerprintToken(token), now.Add(s.resetTTL()))
	})
	if err != nil {
		s.Metrics.Operation("forgot_password", metrics.ResultFailure)
		return err
	}

	msg, err := notify.ResetEmail(account.Email, account.Name, s.ResetURL(token), s.resetTTL())
	if err == nil {
		err = s.Dispatcher.Send(ctx, msg)
	}
	s.Metrics.Dispatch("reset", err)
	if err != nil {
		s.Metrics.Operation("forgot_password", metrics.ResultFailure)
		log.Error("failed to send reset email",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrDispatchFailure, err)
	}

	log.Info("password reset requested", slog.String("account_id", account.ID))
	s.Metrics.Operation("forgot_password", metrics.ResultSuccess)
	return nil
}

// ResetPassword replaces the password of the account holding a live reset
// token and consumes the token.
func (s *AccountService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	log := slogx.FromContext(ctx)

	in.Token = strings.TrimSpace(in.Token)
	if err := in.validate(); err != nil {
		s.Metrics.Operation("reset_password", metrics.ResultFailure)
		return err
	}

	fingerprint := cryptox.FingerprintToken(in.Token)

	// 1. Reject unknown tokens before paying for a hash.
	if _, err := s.Store.Accounts().GetAccountByResetTokenHash(ctx, fingerprint, s.now()); err != nil {
		s.Metrics.Operation("reset_password", metrics.ResultFailure)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		log.Error("failed to look up reset token", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return err
	}

	// 2. Swap the hash and clear the token in one conditional write. A token
	// that expired or was used while hashing no longer matches.
	account, err := s.Store.Accounts().ConsumeResetToken(ctx, fingerprint, hash, s.now())
	if err != nil {
		s.Metrics.Operation("reset_password", metrics.ResultFailure)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		log.Error("failed to consume reset token", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	log.Info("password reset", slog.String("account_id", account.ID))
	s.Metrics.Operation("reset_password", metrics.ResultSuccess)
	return nil
}

// Authenticate validates a bearer token and loads its account. The account is
// always read from the store, so IsVerified reflects the current state.
func (s *AccountService) Authenticate(ctx context.Context, token string) (domain.Account, error) {
	id, err := s.Tokens.Validate(token)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := s.GetAccount(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.Account{}, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
	}
	return account, err
}

// GetAccount fetches an account by id.
func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return account, nil
}

// ResetURL builds the link emailed by ForgotPassword.
func (s *AccountService) ResetURL(token string) string {
	return strings.TrimRight(s.ClientURL, "/") + "/reset-password/" + token
}

// updateByEmail loads the account for email, applies mutate and saves it with
// a version check. A concurrent writer causes one reload and retry.
func (s *AccountService) updateByEmail(
	ctx context.Context,
	email string,
	mutate func(a *domain.Account, now time.Time),
) (domain.Account, error) {
	log := slogx.FromContext(ctx)

	var saved domain.Account
	for attempt := 1; ; attempt++ {
		err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			account, err := tx.Accounts().GetAccountByEmail(ctx, email)
			if err != nil {
				return err
			}

			now := s.now()
			mutate(&account, now)
			saved, err = tx.Accounts().SaveAccount(ctx, account, now)
			return err
		})

		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, store.ErrNotFound):
			return domain.Account{}, ErrNotFound
		case errors.Is(err, store.ErrConflict) && attempt < saveAttempts:
			log.Debug("account changed concurrently, retrying", slog.Int("attempt", attempt))
			continue
		default:
			log.Error("failed to update account", slog.Any("error", err))
			return domain.Account{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
	}
}

func (s *AccountService) sendVerification(ctx context.Context, account domain.Account, code string) error {
	msg, err := notify.VerificationEmail(account.Email, account.Name, code, s.codeTTL())
	if err == nil {
		err = s.Dispatcher.Send(ctx, msg)
	}
	s.Metrics.Dispatch("verification", err)
	return err
}

func (s *AccountService) hash(password string) (string, error) {
	start := time.Now()
	defer s.Metrics.ObserveHash(start)

	hash, err := s.Hasher.Hash(password)
	if errors.Is(err, cryptox.ErrPasswordTooLong) {
		return "", fieldError("password", "must be at most 72 bytes")
	}
	return hash, err
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AccountService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

func (s *AccountService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}
