// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"telecrm-service/internal/domain/user"
	"telecrm-service/internal/middleware"
	"telecrm-service/internal/pkg/response"
	service "telecrm-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login authenticates a user and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", result)
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	actor := middleware.MustGetActor(c)
	jti, ok := middleware.GetJTI(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, "missing token id", nil)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), actor.ID, jti); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logged out", nil)
}

// Me returns the profile of the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	u, err := h.authService.Me(c.Request.Context(), actor.ID)
	if err != nil {
		response.FromError(c, "failed to fetch profile", err)
		return
	}

	response.Success(c, http.StatusOK, "profile fetched", u)
}

// CreateUser registers a new employee/manager/admin. Admin only.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req user.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.authService.CreateUser(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, "failed to create user", err)
		return
	}

	response.Success(c, http.StatusCreated, "user created successfully", result)
}
