package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/accountsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// writeError maps a service error onto its API error. Order matters:
// ErrInvalidCredentials wraps ErrNotFound for unknown emails.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		apiErr := accountsdk.ErrInvalidRequest.WithFields(verr.Fields)
		apiErr.Description = verr.Error()
		apiErr.WriteError(w)
	case errors.Is(err, httpx.ErrBadJSON):
		accountsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		accountsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrDuplicateAccount):
		accountsdk.ErrAccountExists.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		accountsdk.ErrAccountNotFound.WriteError(w)
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		accountsdk.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		accountsdk.ErrInvalidResetToken.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrExpiredToken):
		accountsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrDispatchFailure):
		accountsdk.ErrDispatchFailed.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		accountsdk.ErrServerError.WriteError(w)
	}
}
