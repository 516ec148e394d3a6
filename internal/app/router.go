// internal/app/router.go
package app

import (
	"telecrm-service/internal/domain/user"
	assignmentHandler "telecrm-service/internal/handlers/assignment"
	authHandler "telecrm-service/internal/handlers/auth"
	leadHandler "telecrm-service/internal/handlers/lead"
	wsHandler "telecrm-service/internal/handlers/ws"
	"telecrm-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler       *authHandler.AuthHandler
	LeadHandler       *leadHandler.LeadHandler
	AssignmentHandler *assignmentHandler.AssignmentHandler
	WSHandler         *wsHandler.WSHandler
	AuthMiddleware    *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.AuthMiddleware.Auth(), h.WSHandler.Connect)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.POST("/users",
			h.AuthMiddleware.RequireRole(user.RoleAdmin),
			h.AuthHandler.CreateUser)
	}

	// ==================== Leads ====================
	leads := api.Group("/leads")
	leads.Use(h.AuthMiddleware.Auth())
	{
		leads.GET("", h.LeadHandler.ListLeads)
		leads.GET("/stats",
			h.AuthMiddleware.RequireRole(user.RoleAdmin, user.RoleManager),
			h.LeadHandler.Stats)
		leads.GET("/:id", h.LeadHandler.GetLead)
		leads.POST("",
			h.AuthMiddleware.RequireRole(user.RoleAdmin, user.RoleManager),
			h.LeadHandler.CreateLead)
		leads.PUT("/:id/status", h.LeadHandler.UpdateStatus)
		leads.POST("/:id/reactivate",
			h.AuthMiddleware.RequireRole(user.RoleAdmin, user.RoleManager),
			h.LeadHandler.ReactivateLead)
		leads.DELETE("/:id",
			h.AuthMiddleware.RequireRole(user.RoleAdmin),
			h.LeadHandler.DeleteLead)

		// Assignment trail lives under the lead it belongs to.
		leads.GET("/:id/history", h.AssignmentHandler.History)
		leads.PUT("/:id/reassign",
			h.AuthMiddleware.RequireRole(user.RoleAdmin, user.RoleManager),
			h.AssignmentHandler.Reassign)
	}

	// ==================== Assignments ====================
	assignments := api.Group("/assignments")
	assignments.Use(h.AuthMiddleware.Auth())
	assignments.Use(h.AuthMiddleware.RequireRole(user.RoleAdmin, user.RoleManager))
	{
		assignments.POST("/allocate", h.AssignmentHandler.Allocate)
		assignments.POST("/bulk", h.AssignmentHandler.BulkAssign)
		assignments.POST("/auto",
			h.AuthMiddleware.RequireRole(user.RoleAdmin),
			h.AssignmentHandler.AutoAssign)
		assignments.POST("/sweep", h.AssignmentHandler.Sweep)
	}
}
