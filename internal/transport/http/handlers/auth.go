package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/infra/security"
	"github.com/renthol/rental-service/internal/transport/http/middleware"
	"github.com/renthol/rental-service/internal/usecase"
)

// CookieSettings controls the attributes of the cookies issued on login.
type CookieSettings struct {
	Domain string
	Secure bool
}

// AuthHandler exposes registration and authentication endpoints.
type AuthHandler struct {
	registration *usecase.RegistrationService
	auth         *usecase.AuthService
	cookies      CookieSettings
	sessionTTL   time.Duration
	otpTTL       time.Duration
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	registration *usecase.RegistrationService,
	auth *usecase.AuthService,
	cookies CookieSettings,
	sessionTTL, otpTTL time.Duration,
) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}

	return &AuthHandler{
		registration: registration,
		auth:         auth,
		cookies:      cookies,
		sessionTTL:   sessionTTL,
		otpTTL:       otpTTL,
	}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the rate-limited endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, registerMW, loginMW []gin.HandlerFunc) {
	r.POST("/register", append(append([]gin.HandlerFunc{}, registerMW...), h.register)...)
	r.POST("/verify-otp", append(append([]gin.HandlerFunc{}, registerMW...), h.verifyOTP)...)
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginMW...), h.login)...)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
	r.GET("/me", middleware.RequireAuth(h.auth), h.me)
	r.GET("/csrf-token", h.csrfToken)
}

// Register godoc
// @Summary Start account registration
// @Description Validates the payload and emails a one-time verification code.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegistrationRequest true "Registration payload"
// @Success 202 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		Meta:     requestMeta(c),
	})
	if err != nil {
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
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email address"},
			{Err: usecase.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "phone number must be 10 digits"},
			{Err: usecase.ErrInvalidUsername, Status: http.StatusBadRequest, Message: "username is required"},
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "unknown role"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusAccepted, RegistrationResponse{
		Message:   "verification code sent",
		ExpiresIn: int(h.otpTTL.Seconds()),
	})
}

// VerifyOTP godoc
// @Summary Confirm the emailed verification code
// @Description Promotes the pending registration to an active account.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body OTPVerifyRequest true "Verification payload"
// @Success 201 {object} OTPVerifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/verify-otp [post]
func (h *AuthHandler) verifyOTP(c *gin.Context) {
	var req OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	user, err := h.registration.VerifyOTP(c.Request.Context(), usecase.VerifyOTPInput{
		Email: req.Email,
		OTP:   req.OTP,
		Meta:  requestMeta(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrOTPInvalid, Status: http.StatusBadRequest, Message: "invalid verification code"},
			{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "verification code expired"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusCreated, OTPVerifyResponse{
		Message: "account activated",
		User:    newUserSummary(*user),
	})
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Verifies the CAPTCHA-gated credential pair, sets the session cookie, and returns a bearer token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} LockedResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		CaptchaToken: req.CaptchaToken,
		Meta:         requestMeta(c),
	})
	if err != nil {
		var locked *usecase.LockedError
		if errors.As(err, &locked) {
			c.JSON(http.StatusForbidden, LockedResponse{
				Error:       "account temporarily locked",
				Code:        "account_locked",
				LockedUntil: locked.Until,
				TraceID:     middleware.GetTraceID(c),
			})
			return
		}

		var expired *usecase.PasswordExpiredError
		if errors.As(err, &expired) {
			c.JSON(http.StatusForbidden, PasswordExpiredResponse{
				Error:   "password expired, reset required",
				Code:    "password_expired",
				Role:    expired.Role,
				TraceID: middleware.GetTraceID(c),
			})
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCaptchaFailed, Status: http.StatusBadRequest, Message: "captcha verification failed"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	h.setSessionCookie(c, result.SessionID)
	h.setAccessTokenCookie(c, result.AccessToken)

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.auth.AccessTokenTTL().Seconds()),
		User:        newUserSummary(result.User),
	})
}

// Logout godoc
// @Summary Terminate the current session
// @Tags Authentication
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	if principal.SessionID != "" {
		if err := h.auth.Logout(c.Request.Context(), principal.SessionID, requestMeta(c)); err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
			return
		}
	}

	h.clearSessionCookie(c)
	h.clearAccessTokenCookie(c)

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me godoc
// @Summary Current authenticated identity
// @Tags Authentication
// @Produce json
// @Success 200 {object} UserSummary
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       principal.UserID,
		"username": principal.Username,
		"role":     principal.Role,
	})
}

// CSRFToken godoc
// @Summary Issue a double-submit CSRF token
// @Description Sets the CSRF cookie and returns the matching token for the X-CSRF-Token header.
// @Tags Authentication
// @Produce json
// @Success 200 {object} CSRFTokenResponse
// @Router /api/v1/auth/csrf-token [get]
func (h *AuthHandler) csrfToken(c *gin.Context) {
	token, err := security.GenerateSecureToken(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue csrf token"))
		return
	}

	// Readable by the client script so it can be echoed in the header.
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CSRFCookieName, token, int(h.sessionTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, false)

	c.JSON(http.StatusOK, CSRFTokenResponse{Token: token})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sessionID string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, sessionID, int(h.sessionTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) setAccessTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookieName, token, int(h.auth.AccessTokenTTL().Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearAccessTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookieName, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func requestMeta(c *gin.Context) usecase.RequestMeta {
	reqCtx := middleware.GetRequestContext(c)
	return usecase.RequestMeta{
		IP:        reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
	}
}
