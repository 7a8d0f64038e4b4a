package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/accountsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type UsersHandler struct {
	Accounts *service.AccountService
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create an unverified account, email a 6-digit verification code and return a bearer token.
//	@Description	If the email cannot be sent the account is still created and the response carries a warning.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.RegisterRequest	true	"name, email, password"
//	@Success		201		{object}	accountsdk.AuthResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request"
//	@Failure		409		{object}	accountsdk.ErrorResponse	"account_exists"
//	@Failure		429		{object}	accountsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/api/users/register [post].
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.RegisterRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse(res))
}

// Login godoc
//
//	@Summary		Login
//	@Description	Exchange email and password for a bearer token. Unknown emails and wrong passwords get the same response.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.LoginRequest	true	"email, password"
//	@Success		200		{object}	accountsdk.AuthResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	accountsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429		{object}	accountsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/api/users/login [post].
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.LoginRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Accounts.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(res))
}

// VerifyEmail godoc
//
//	@Summary		Verify Email
//	@Description	Consume a live verification code and mark the account verified.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.VerifyEmailRequest	true	"email, code"
//	@Success		200		{object}	accountsdk.MessageResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request, invalid_code"
//	@Router			/api/users/verify-email [post].
func (h *UsersHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.VerifyEmailRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.Accounts.VerifyEmail(r.Context(), service.VerifyEmailInput{
		Email: req.Email,
		Code:  req.Code,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountsdk.MessageResponse{Message: "email verified"})
}

// ResendVerification godoc
//
//	@Summary		Resend Verification Code
//	@Description	Replace the outstanding verification code and email the new one.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.EmailRequest	true	"email"
//	@Success		200		{object}	accountsdk.MessageResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request"
//	@Failure		404		{object}	accountsdk.ErrorResponse	"not_found"
//	@Failure		502		{object}	accountsdk.ErrorResponse	"dispatch_failed"
//	@Router			/api/users/resend-verification [post].
func (h *UsersHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.EmailRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Accounts.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountsdk.MessageResponse{Message: "verification code sent"})
}

// ForgotPassword godoc
//
//	@Summary		Forgot Password
//	@Description	Email a single-use password reset link.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.EmailRequest	true	"email"
//	@Success		200		{object}	accountsdk.MessageResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request"
//	@Failure		404		{object}	accountsdk.ErrorResponse	"not_found"
//	@Failure		502		{object}	accountsdk.ErrorResponse	"dispatch_failed"
//	@Router			/api/users/forgot-password [post].
func (h *UsersHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.EmailRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountsdk.MessageResponse{Message: "password reset email sent"})
}

// ResetPassword godoc
//
//	@Summary		Reset Password
//	@Description	Set a new password using the token from the reset link. The token is consumed.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		accountsdk.ResetPasswordRequest	true	"token, password"
//	@Success		200		{object}	accountsdk.MessageResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"invalid_request, invalid_reset_token"
//	@Router			/api/users/reset-password [post].
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.ResetPasswordRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), service.ResetPasswordInput{
		Token:    req.Token,
		Password: req.Password,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountsdk.MessageResponse{Message: "password updated"})
}

// Me godoc
//
//	@Summary		Current Account
//	@Description	Return the account bound to the bearer token, read fresh from the store.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	accountsdk.AccountResponse
//	@Failure		401	{object}	accountsdk.ErrorResponse	"invalid_token"
//	@Router			/api/users/me [get].
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		accountsdk.ErrInvalidToken.WriteError(w)
		return
	}

	account, err := h.Accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			accountsdk.ErrInvalidToken.WriteError(w)
			return
		}
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(account.Summary()))
}

func authResponse(res service.AuthResult) accountsdk.AuthResponse {
	return accountsdk.AuthResponse{
		ID:         res.Account.ID,
		Name:       res.Account.Name,
		Email:      res.Account.Email,
		IsVerified: res.Account.IsVerified,
		Token:      res.Token,
		ExpiresAt:  res.ExpiresAt,
		Warning:    res.Warning,
	}
}

func accountResponse(s domain.Summary) accountsdk.AccountResponse {
	return accountsdk.AccountResponse{
		ID:         s.ID,
		Name:       s.Name,
		Email:      s.Email,
		IsVerified: s.IsVerified,
		CreatedAt:  s.CreatedAt,
	}
}
