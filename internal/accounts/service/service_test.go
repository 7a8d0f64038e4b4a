package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/notify"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	startTime  = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	resetLink  = regexp.MustCompile(`/reset-password/([0-9a-f]{64})`)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder captures dispatched messages and can be told to fail.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (r *recorder) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp unavailable")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) setFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *recorder) last(t *testing.T) notify.Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "no message dispatched")
	return r.sent[len(r.sent)-1]
}

type fixture struct {
	svc   *AccountService
	store *sqlite.Store
	clock *testClock
	mail  *recorder
	m     *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := &testClock{now: startTime}
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{Issuer: "accounts-test", Now: clock.Now})
	require.NoError(t, err)

	mail := &recorder{}
	m := metrics.New()
	svc := &AccountService{
		Store:  st,
		Hasher: cryptox.NewHasher(bcrypt.MinCost),
		Tokens: &TokenService{
			Signer:   signer,
			Verifier: verifier,
			Issuer:   "accounts-test",
			Now:      clock.Now,
		},
		Dispatcher: mail,
		Metrics:    m,
		ClientURL:  "https://app.example.com/",
		Now:        clock.Now,
	}

	return &fixture{svc: svc, store: st, clock: clock, mail: mail, m: m}
}

func (f *fixture) account(t *testing.T, email string) domain.Account {
	t.Helper()
	a, err := f.store.Accounts().GetAccountByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

func (f *fixture) register(t *testing.T, name, email, password string) AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.register(t, "Alice", "  Alice@Example.com ", "pw123")
	require.Empty(t, res.Warning)
	require.Equal(t, "alice@example.com", res.Account.Email)
	require.False(t, res.Account.IsVerified)
	require.Equal(t, startTime.Add(jwtx.DefaultTokenTTL), res.ExpiresAt)

	a := f.account(t, "alice@example.com")
	require.Equal(t, res.Account.ID, a.ID)
	require.False(t, a.IsVerified)
	require.Regexp(t, `^[1-9][0-9]{5}$`, *a.VerificationCode)
	require.Equal(t, startTime.Add(30*time.Minute), *a.VerificationCodeExpires)
	require.NotEqual(t, "pw123", a.PasswordHash)

	ok, err := f.svc.Hasher.Verify("pw123", a.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	id, err := f.svc.Tokens.Validate(res.Token)
	require.NoError(t, err)
	require.Equal(t, a.ID, id)

	msg := f.mail.last(t)
	require.Equal(t, "alice@example.com", msg.To)
	require.Equal(t, notify.VerificationSubject, msg.Subject)
	require.Contains(t, msg.HTML, *a.VerificationCode)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "name")
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "password")

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Bob", Email: "not-an-email", Password: "pw"})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "email")

	long := string(make([]byte, cryptox.MaxPasswordBytes+1))
	_, err = f.svc.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: long})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")

	_, err = f.store.Accounts().GetAccountByEmail(ctx, "bob@example.com")
	require.Error(t, err, "no account is created for invalid input")
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.register(t, "Alice", "alice@example.com", "pw123")
	before := f.account(t, "alice@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "Mallory", Email: "ALICE@example.com", Password: "other",
	})
	require.ErrorIs(t, err, ErrDuplicateAccount)

	after := f.account(t, "alice@example.com")
	require.Equal(t, before, after)
	require.Equal(t, first.Account.ID, after.ID)
}

func TestRegister_DispatchFailureIsAWarning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mail.setFail(true)

	res := f.register(t, "Alice", "alice@example.com", "pw123")
	require.Equal(t, RegisterDispatchWarning, res.Warning)
	require.NotEmpty(t, res.Token)

	a := f.account(t, "alice@example.com")
	require.NotNil(t, a.VerificationCode, "account is committed despite the failed email")
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "Alice", "alice@example.com", "pw123")

	t.Run("correct credentials", func(t *testing.T) {
		res, err := f.svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "pw123"})
		require.NoError(t, err)
		id, err := f.svc.Tokens.Validate(res.Token)
		require.NoError(t, err)
		require.Equal(t, reg.Account.ID, id)
	})

	t.Run("wrong password", func(t *testing.T) {
		before := f.account(t, "alice@example.com")
		_, err := f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "nope"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.ErrorIs(t, err, ErrBadCredentials)
		require.Equal(t, before, f.account(t, "alice@example.com"))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "pw123"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Login(ctx, LoginInput{Email: "alice@example.com"})
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestLogin_OverlongPasswordNeverMatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	password := strings.Repeat("a", cryptox.MaxPasswordBytes)
	f.register(t, "Alice", "alice@example.com", password)

	_, err := f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: password + "SOMETHING-ELSE"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidation)

	ok, err := f.svc.Hasher.Verify(password+"SOMETHING-ELSE", f.account(t, "alice@example.com").PasswordHash)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: password})
	require.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "a@x.com", "pw123")
	code := *f.account(t, "a@x.com").VerificationCode

	f.clock.Advance(29 * time.Minute)

	summary, err := f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: code})
	require.NoError(t, err)
	require.True(t, summary.IsVerified)

	a := f.account(t, "a@x.com")
	require.True(t, a.IsVerified)
	require.Nil(t, a.VerificationCode)
	require.Nil(t, a.VerificationCodeExpires)

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: code})
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyEmail_Rejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "a@x.com", "pw123")
	code := *f.account(t, "a@x.com").VerificationCode

	_, err := f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "other@x.com", Code: code})
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: code})
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode, "a code is dead at its expiry instant")
	require.False(t, f.account(t, "a@x.com").IsVerified)
}

func TestResendVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "a@x.com", "pw123")
	oldCode := *f.account(t, "a@x.com").VerificationCode

	f.clock.Advance(20 * time.Minute)
	require.NoError(t, f.svc.ResendVerification(ctx, "A@X.com"))

	a := f.account(t, "a@x.com")
	newCode := *a.VerificationCode
	require.Equal(t, f.clock.Now().Add(30*time.Minute), *a.VerificationCodeExpires)
	require.Contains(t, f.mail.last(t).HTML, newCode)

	if newCode != oldCode {
		_, err := f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: oldCode})
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}

	// The new code outlives the original expiry.
	f.clock.Advance(15 * time.Minute)
	_, err := f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: newCode})
	require.NoError(t, err)
}

func TestResendVerification_Failures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.ResendVerification(ctx, ""), ErrValidation)
	require.ErrorIs(t, f.svc.ResendVerification(ctx, "nobody@x.com"), ErrNotFound)

	f.register(t, "Alice", "a@x.com", "pw123")
	before := f.account(t, "a@x.com")

	f.mail.setFail(true)
	err := f.svc.ResendVerification(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrDispatchFailure)

	after := f.account(t, "a@x.com")
	require.Equal(t, before.Version+1, after.Version, "the new code is committed before dispatch")

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: *after.VerificationCode})
	require.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "a@x.com", "old-password")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	msg := f.mail.last(t)
	require.Equal(t, notify.ResetSubject, msg.Subject)
	require.Contains(t, msg.HTML, "https://app.example.com/reset-password/")
	match := resetLink.FindStringSubmatch(msg.HTML)
	require.Len(t, match, 2)
	token := match[1]

	a := f.account(t, "a@x.com")
	require.Equal(t, cryptox.FingerprintToken(token), *a.ResetTokenHash, "only the fingerprint is stored")
	require.Equal(t, startTime.Add(30*time.Minute), *a.ResetTokenExpires)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "new-password"}))

	a = f.account(t, "a@x.com")
	require.Nil(t, a.ResetTokenHash)
	require.Nil(t, a.ResetTokenExpires)

	_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "old-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "new-password"})
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "third-password"})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken, "tokens are single use")
}

func TestResetPassword_Rejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "a@x.com", "pw123")

	require.ErrorIs(t, f.svc.ForgotPassword(ctx, "nobody@x.com"), ErrNotFound)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	first := resetLink.FindStringSubmatch(f.mail.last(t).HTML)[1]

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	second := resetLink.FindStringSubmatch(f.mail.last(t).HTML)[1]
	require.NotEqual(t, first, second)

	err := f.svc.ResetPassword(ctx, ResetPasswordInput{Token: first, Password: "x"})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken, "a newer request replaces the old token")

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: second})
	require.ErrorIs(t, err, ErrValidation)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "deadbeef", Password: "x"})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	f.clock.Advance(30 * time.Minute)
	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: second, Password: "x"})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "pw123"})
	require.NoError(t, err, "password unchanged after rejected resets")
}

func TestForgotPassword_DispatchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "Alice", "a@x.com", "pw123")

	f.mail.setFail(true)
	err := f.svc.ForgotPassword(context.Background(), "a@x.com")
	require.ErrorIs(t, err, ErrDispatchFailure)
	require.NotNil(t, f.account(t, "a@x.com").ResetTokenHash)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "Alice", "a@x.com", "pw123")

	a, err := f.svc.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	require.False(t, a.IsVerified)

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Email: "a@x.com", Code: *f.account(t, "a@x.com").VerificationCode})
	require.NoError(t, err)

	a, err = f.svc.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	require.True(t, a.IsVerified, "verification state is read from the store, not the token")

	_, err = f.svc.Authenticate(ctx, reg.Token+"x")
	require.ErrorIs(t, err, ErrInvalidToken)

	f.clock.Advance(jwtx.DefaultTokenTTL)
	_, err = f.svc.Authenticate(ctx, reg.Token)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestAuthenticate_UnknownAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tok, err := f.svc.Tokens.Issue("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), tok.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.GetAccount(context.Background(), "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResetURL(t *testing.T) {
	svc := &AccountService{ClientURL: "http://localhost:3000"}
	require.Equal(t, "http://localhost:3000/reset-password/abc", svc.ResetURL("abc"))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"password": "cannot be blank", "email": "must be a valid email address"}}
	require.Equal(t, "validation failed: email: must be a valid email address; password: cannot be blank", err.Error())
	require.ErrorIs(t, err, ErrValidation)
}
