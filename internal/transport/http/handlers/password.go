package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/transport/http/middleware"
	"github.com/renthol/rental-service/internal/usecase"
)

// PasswordHandler exposes the password lifecycle endpoints.
type PasswordHandler struct {
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// RegisterRoutes binds the password routes. Forgot/reset are public and take
// the rate-limit chain; change requires authentication.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc, resetMW []gin.HandlerFunc) {
	r.POST("/forgot", append(append([]gin.HandlerFunc{}, resetMW...), h.forgotPassword)...)
	r.POST("/reset", append(append([]gin.HandlerFunc{}, resetMW...), h.resetPassword)...)
	r.POST("/change", auth, h.changePassword)
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Reset request payload"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/password/forgot [post]
func (h *PasswordHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.passwords.ForgotPassword(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "no account for this email"},
		}, http.StatusInternalServerError, "failed to send reset link")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password reset link sent"})
}

// ResetPassword godoc
// @Summary Redeem a reset token and set a new password
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/password/reset [post]
func (h *PasswordHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.passwords.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, requestMeta(c))
	if err != nil {
		h.respondPasswordError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

// ChangePassword godoc
// @Summary Change the password of the authenticated user
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Change payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/password/change [post]
func (h *PasswordHandler) changePassword(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.passwords.ChangePassword(c.Request.Context(), principal.UserID, req.CurrentPassword, req.NewPassword, requestMeta(c))
	if err != nil {
		h.respondPasswordError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

func (h *PasswordHandler) respondPasswordError(c *gin.Context, err error) {
	var verr *security.PasswordValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   verr.Message,
			Code:    verr.Code,
			TraceID: middleware.GetTraceID(c),
		})
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrResetTokenExpired, Status: http.StatusUnauthorized, Message: "reset link expired"},
		{Err: usecase.ErrResetTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid reset link"},
		{Err: usecase.ErrPasswordReuse, Status: http.StatusConflict, Message: "password was used recently, pick a different one"},
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
		{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
	}, http.StatusInternalServerError, "password update failed")
}
