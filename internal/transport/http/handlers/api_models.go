package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/renthol/rental-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the user view returned by the API.
type UserSummary struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone,omitempty"`
	Role         domain.Role `json:"role"`
	RegisteredAt time.Time   `json:"registered_at"`
}

// RegistrationRequest defines the account registration payload. Role is
// optional and defaults to the regular user role.
type RegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role,omitempty"`
}

// RegistrationResponse tells the client to expect a verification code.
type RegistrationResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"` // seconds until the code expires
}

// OTPVerifyRequest holds the verification payload.
type OTPVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

// OTPVerifyResponse is returned after a successful verification.
type OTPVerifyResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	CaptchaToken string `json:"captcha_token" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserSummary `json:"user"`
}

// LockedResponse is returned when the account lockout window is active.
type LockedResponse struct {
	Error       string    `json:"error"`
	Code        string    `json:"code"`
	LockedUntil time.Time `json:"locked_until"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// PasswordExpiredResponse signals that a renewal is required before login.
type PasswordExpiredResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Role    domain.Role `json:"role"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest redeems a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePasswordRequest rotates the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ProfileUpdateRequest changes the mutable profile fields.
type ProfileUpdateRequest struct {
	Username string `json:"username" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
}

// RoleUpdateRequest changes an account's privilege level.
type RoleUpdateRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

// UserListResponse wraps a page of accounts.
type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Total int           `json:"total"`
}

// LockResponse reports the lock placed on an account.
type LockResponse struct {
	Message     string    `json:"message"`
	LockedUntil time.Time `json:"locked_until"`
}

// CSRFTokenResponse delivers the double-submit token.
type CSRFTokenResponse struct {
	Token string `json:"csrf_token"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to the API view.
func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         user.Role,
		RegisteredAt: user.RegisteredAt,
	}
}
