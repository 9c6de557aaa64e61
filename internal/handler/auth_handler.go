package handler

import (
	"errors"
	"net/http"

	"dlvideo/internal/auth"
	"dlvideo/internal/model"
	"dlvideo/pkg/logger"
	"dlvideo/pkg/middleware"
	"dlvideo/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles login, session and user administration requests
type AuthHandler struct {
	manager *auth.Manager
	cfg     *model.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(manager *auth.Manager, cfg *model.Config) *AuthHandler {
	return &AuthHandler{manager: manager, cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type resetPasswordRequest struct {
	Username    string `json:"username" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type renameUserRequest struct {
	OldUsername string `json:"old_username" binding:"required"`
	NewUsername string `json:"new_username" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Username and password are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.manager.Login(req.Username, req.Password, c.ClientIP())
	if err != nil {
		var locked *auth.LockedError
		if errors.As(err, &locked) {
			c.JSON(http.StatusForbidden, model.ErrorResponse{
				Error:   "account_locked",
				Message: locked.Error(),
				Code:    http.StatusForbidden,
			})
			return
		}
		// Every credential failure reads the same to the caller.
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{
			Error:   "invalid_credentials",
			Message: auth.ErrInvalidCredentials.Error(),
			Code:    http.StatusUnauthorized,
		})
		return
	}

	maxAge := h.cfg.Auth.SessionExpiryHours * 3600
	c.SetCookie(middleware.SessionCookie, result.Token, maxAge, "/", "", h.cfg.Security.CookieSecure, true)

	c.JSON(http.StatusOK, gin.H{
		"session_token":        result.Token,
		"username":             result.Username,
		"role":                 result.Role,
		"must_change_password": result.MustChangePassword,
		"expires_at":           result.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.ExtractToken(c); token != "" {
		h.manager.Logout(token)
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.cfg.Security.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Verify handles GET /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	token := middleware.ExtractToken(c)
	info, ok := h.manager.Verify(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"username":   info.Username,
		"role":       info.Role,
		"expires_at": info.ExpiresAt,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	info := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"username":   info.Username,
		"role":       info.Role,
		"expires_at": info.ExpiresAt,
	})
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req passwordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Old and new passwords are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	info := middleware.CurrentUser(c)
	if err := h.manager.ChangePassword(info.Username, req.OldPassword, req.NewPassword); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrWrongPassword) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, model.ErrorResponse{
			Error:   "change_failed",
			Message: err.Error(),
			Code:    status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// CreateUser handles POST /api/auth/users
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "Username and password are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateUsername(req.Username) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_username",
			Message: "Username must be 3-50 characters of letters, digits, '_', '-' or '.'",
			Code:    http.StatusBadRequest,
		})
		return
	}

	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}

	if err := h.manager.CreateUser(req.Username, req.Password, role); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrUserExists) {
			status = http.StatusConflict
		}
		c.JSON(status, model.ErrorResponse{
			Error:   "create_failed",
			Message: err.Error(),
			Code:    status,
		})
		return
	}

	logger.Logger.Info("Admin created user",
		zap.String("username", req.Username),
		zap.String("by", middleware.CurrentUser(c).Username))
	c.JSON(http.StatusCreated, gin.H{"status": "created", "username": req.Username})
}

// ListUsers handles GET /api/auth/users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.manager.ListUsers()})
}

// DeleteUser handles DELETE /api/auth/users/:username
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	requester := middleware.CurrentUser(c).Username

	if err := h.manager.DeleteUser(username, requester); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, model.ErrorResponse{
			Error:   "delete_failed",
			Message: err.Error(),
			Code:    status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "username": username})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "A username and new password are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	admin := middleware.CurrentUser(c).Username
	token := middleware.SessionToken(c)

	if err := h.manager.ResetPassword(req.Username, req.NewPassword, admin, token); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, model.ErrorResponse{
			Error:   "reset_failed",
			Message: err.Error(),
			Code:    status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset", "username": req.Username})
}

// UpdateUsername handles POST /api/auth/update-username
func (h *AuthHandler) UpdateUsername(c *gin.Context) {
	var req renameUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_request",
			Message: "The old and new usernames are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if !validator.ValidateUsername(req.NewUsername) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid_username",
			Message: "Username must be 3-50 characters of letters, digits, '_', '-' or '.'",
			Code:    http.StatusBadRequest,
		})
		return
	}

	admin := middleware.CurrentUser(c).Username

	if err := h.manager.RenameUser(req.OldUsername, req.NewUsername, admin); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			status = http.StatusNotFound
		case errors.Is(err, auth.ErrUserExists):
			status = http.StatusConflict
		}
		c.JSON(status, model.ErrorResponse{
			Error:   "rename_failed",
			Message: err.Error(),
			Code:    status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed", "username": req.NewUsername})
}

// DeleteUserSessions handles DELETE /api/auth/sessions/:username
func (h *AuthHandler) DeleteUserSessions(c *gin.Context) {
	username := c.Param("username")
	admin := middleware.CurrentUser(c).Username

	removed, err := h.manager.DeleteUserSessions(username, admin)
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sessions_deleted", "count": removed})
}

// ListSessions handles GET /api/auth/sessions
func (h *AuthHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.manager.ListSessions()})
}

// CleanupSessions handles POST /api/auth/cleanup-sessions
func (h *AuthHandler) CleanupSessions(c *gin.Context) {
	removed := h.manager.SweepSessions()
	c.JSON(http.StatusOK, gin.H{"status": "cleaned", "removed": removed})
}
