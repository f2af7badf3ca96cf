package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/usecase"
)

const (
	// SessionCookieName is the cookie carrying the server-side session ID.
	SessionCookieName = "rental_session"

	// AccessTokenCookieName is the cookie mirroring the bearer token issued
	// at login, for clients that rely on cookies instead of the
	// Authorization header.
	AccessTokenCookieName = "rental_token"

	principalKey = "principal"
)

// Principal is the authenticated caller resolved by RequireAuth.
type Principal struct {
	UserID    string
	Username  string
	Role      domain.Role
	SessionID string // empty when authenticated via bearer token
}

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth authenticates the request. The session cookie is checked
// first; a Bearer token is accepted as the fallback so API clients without
// cookie support can call the same routes.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionID, err := c.Cookie(SessionCookieName); err == nil && sessionID != "" {
			session, err := auth.ResolveSession(c.Request.Context(), sessionID)
			if err == nil {
				setPrincipal(c, Principal{
					UserID:    session.UserID,
					Username:  session.Username,
					Role:      session.Role,
					SessionID: session.ID,
				})
				c.Next()
				return
			}
			if !errors.Is(err, usecase.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
				return
			}
			// A dead cookie falls through to the bearer token path.
		}

		token, ok := bearerToken(c)
		if !ok {
			// The login response mirrors the token into a cookie for
			// clients that cannot set the Authorization header.
			if cookieToken, err := c.Cookie(AccessTokenCookieName); err == nil && cookieToken != "" {
				token, ok = cookieToken, true
			}
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		setPrincipal(c, Principal{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     domain.Role(claims.Role),
		})

		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if principal.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// GetPrincipal retrieves the authenticated caller from the context.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}

	principal, ok := val.(Principal)
	return principal, ok
}

func setPrincipal(c *gin.Context, principal Principal) {
	c.Set(principalKey, principal)
	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.UserID = principal.UserID
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
