// internal/middleware/helpers.go
package middleware

import (
	"telecrm-service/internal/domain/user"

	"github.com/gin-gonic/gin"
)

// GetActor returns the authenticated Actor from the request context.
func GetActor(c *gin.Context) (user.Actor, bool) {
	v, exists := c.Get("actor")
	if !exists {
		return user.Actor{}, false
	}

	actor, ok := v.(user.Actor)
	return actor, ok
}

// MustGetActor returns the Actor or panics; use only behind Auth().
func MustGetActor(c *gin.Context) user.Actor {
	actor, ok := GetActor(c)
	if !ok {
		panic("actor not found in context")
	}
	return actor
}

// GetJTI returns the token ID of the current session.
func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get("jti")
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}
