package accountsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeAccountExists      = "account_exists"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeInvalidResetToken  = "invalid_reset_token"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeDispatchFailed     = "dispatch_failed"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is an error response. The server writes it and the client
// returns it.
type APIError struct {
	StatusCode  int               `json:"-"`
	Code        string            `json:"error"`
	Description string            `json:"error_description"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Fields:           e.Fields,
	})
}

// WithFields returns a copy of e carrying per-field messages.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	cp := *e
	cp.Fields = fields
	return &cp
}

func newAPIError(status int, code, desc string) *APIError {
	return &APIError{StatusCode: status, Code: code, Description: desc}
}

var (
	ErrInvalidRequest = newAPIError(http.StatusBadRequest, ErrorCodeInvalidRequest,
		"the request is malformed or missing required fields")
	ErrAccountExists = newAPIError(http.StatusConflict, ErrorCodeAccountExists,
		"an account with this email already exists")
	ErrAccountNotFound = newAPIError(http.StatusNotFound, ErrorCodeNotFound,
		"no account is registered with this email")
	ErrInvalidCredentials = newAPIError(http.StatusUnauthorized, ErrorCodeInvalidCredentials,
		"invalid email or password")
	ErrInvalidCode = newAPIError(http.StatusBadRequest, ErrorCodeInvalidCode,
		"the verification code is invalid or has expired")
	ErrInvalidResetToken = newAPIError(http.StatusBadRequest, ErrorCodeInvalidResetToken,
		"the reset link is invalid or has expired")
	ErrInvalidToken = newAPIError(http.StatusUnauthorized, ErrorCodeInvalidToken,
		"the access token is missing, invalid or expired")
	ErrDispatchFailed = newAPIError(http.StatusBadGateway, ErrorCodeDispatchFailed,
		"the email could not be sent, please try again later")
	ErrServerError = newAPIError(http.StatusInternalServerError, ErrorCodeServerError,
		"internal server error")
)

// parseErrorResponse turns a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Fields:      errResp.Fields,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
