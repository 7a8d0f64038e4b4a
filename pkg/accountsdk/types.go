package accountsdk

import "time"

// ============================================================================
// Requests
// ============================================================================

type RegisterRequest struct {
	Name     string `json:"name"     example:"Alice"`
	Email    string `json:"email"    example:"alice@example.com"`
	Password string `json:"password" example:"correct horse"`
}

type LoginRequest struct {
	Email    string `json:"email"    example:"alice@example.com"`
	Password string `json:"password" example:"correct horse"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" example:"alice@example.com"`
	Code  string `json:"code"  example:"482913"`
}

// EmailRequest is the body of resend-verification and forgot-password.
type EmailRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequest struct {
	// Token is the value from the emailed reset link.
	Token    string `json:"token"`
	Password string `json:"password" example:"new password"`
}

// ============================================================================
// Responses
// ============================================================================

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID         string    `json:"id"          example:"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"`
	Name       string    `json:"name"        example:"Alice"`
	Email      string    `json:"email"       example:"alice@example.com"`
	IsVerified bool      `json:"is_verified" example:"false"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Warning is set when the account was created but the verification email
	// could not be sent.
	Warning string `json:"warning,omitempty"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID         string    `json:"id"          example:"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"`
	Name       string    `json:"name"        example:"Alice"`
	Email      string    `json:"email"       example:"alice@example.com"`
	IsVerified bool      `json:"is_verified" example:"true"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessageResponse struct {
	Message string `json:"message" example:"email verified"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error            string            `json:"error"             example:"invalid_request"`
	ErrorDescription string            `json:"error_description" example:"validation failed"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"  example:"ok"`
	Uptime  string        `json:"uptime"  example:"1h2m3s"`
	Version string        `json:"version" example:"v0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of critical dependencies.
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
}
