package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/transport/http/middleware"
	"github.com/renthol/rental-service/internal/usecase"
)

// UserHandler exposes profile endpoints and the admin account console.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterProfileRoutes binds the self-service profile routes.
func (h *UserHandler) RegisterProfileRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.getProfile)
	r.PUT("/profile", h.updateProfile)
}

// RegisterAdminRoutes binds the admin console routes.
func (h *UserHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.listUsers)
	r.GET("/users/:id", h.getUser)
	r.PUT("/users/:id/role", h.updateRole)
	r.POST("/users/:id/lock", h.lockUser)
	r.POST("/users/:id/unlock", h.unlockUser)
	r.DELETE("/users/:id", h.deleteUser)
}

// GetProfile godoc
// @Summary Fetch the authenticated user's profile
// @Tags Users
// @Produce json
// @Success 200 {object} UserSummary
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/user/profile [get]
func (h *UserHandler) getProfile(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), principal.UserID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newUserSummary(*user))
}

// UpdateProfile godoc
// @Summary Update the authenticated user's profile
// @Tags Users
// @Accept json
// @Produce json
// @Param request body ProfileUpdateRequest true "Profile payload"
// @Success 200 {object} UserSummary
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/user/profile [put]
func (h *UserHandler) updateProfile(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), principal.UserID, req.Username, req.Phone, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidUsername, Status: http.StatusBadRequest, Message: "username is required"},
			{Err: usecase.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "phone number must be 10 digits"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, newUserSummary(*user))
}

// ListUsers godoc
// @Summary List accounts (admin)
// @Tags Admin
// @Produce json
// @Param role query string false "filter by role"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} UserListResponse
// @Router /api/v1/admin/users [get]
func (h *UserHandler) listUsers(c *gin.Context) {
	filter := port.UserFilter{
		Role:   domain.Role(c.Query("role")),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}

	users, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list users"))
		return
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, newUserSummary(user))
	}

	c.JSON(http.StatusOK, UserListResponse{Users: summaries, Total: len(summaries)})
}

func (h *UserHandler) getUser(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, newUserSummary(*user))
}

// UpdateRole godoc
// @Summary Change an account's role (admin)
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body RoleUpdateRequest true "Role payload"
// @Success 200 {object} MessageResponse
// @Router /api/v1/admin/users/{id}/role [put]
func (h *UserHandler) updateRole(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Message: "invalid role"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role updated"})
}

func (h *UserHandler) lockUser(c *gin.Context) {
	until, err := h.users.LockAccount(c.Request.Context(), c.Param("id"), requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to lock account")
		return
	}

	c.JSON(http.StatusOK, LockResponse{Message: "account locked", LockedUntil: until})
}

func (h *UserHandler) unlockUser(c *gin.Context) {
	err := h.users.UnlockAccount(c.Request.Context(), c.Param("id"), requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to unlock account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account unlocked"})
}

// DeleteUser godoc
// @Summary Delete an account (admin)
// @Tags Admin
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /api/v1/admin/users/{id} [delete]
func (h *UserHandler) deleteUser(c *gin.Context) {
	err := h.users.Delete(c.Request.Context(), c.Param("id"), requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to delete account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deleted"})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
