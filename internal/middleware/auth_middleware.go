// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"telecrm-service/internal/domain/user"
	"telecrm-service/internal/pkg/response"
	"telecrm-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth validates the bearer token and stores the resulting Actor in the
// request context. Handlers pass that Actor explicitly into every service
// call; nothing downstream reads identity off the session again.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		actor, jti, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("actor", *actor)
		c.Set("jti", jti)

		c.Next()
	}
}

// RequireRole requires the actor to hold one of the given roles.
// MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "authentication required", nil)
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, map[string]interface{}{
			"required_roles": roles,
			"actor_role":     actor.Role,
		})
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		// WebSocket clients cannot set headers; accept a query token there.
		return c.Query("token")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
