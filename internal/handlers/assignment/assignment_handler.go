// internal/handlers/assignment/assignment_handler.go
package assignment

import (
	"net/http"
	"strconv"

	"telecrm-service/internal/middleware"
	"telecrm-service/internal/pkg/response"
	service "telecrm-service/internal/service/assignment"
	"telecrm-service/internal/service/scheduler"

	"github.com/gin-gonic/gin"
)

type AssignmentHandler struct {
	engine  *service.Service
	sweeper *scheduler.Service
}

func NewAssignmentHandler(engine *service.Service, sweeper *scheduler.Service) *AssignmentHandler {
	return &AssignmentHandler{
		engine:  engine,
		sweeper: sweeper,
	}
}

// Allocate hands an unassigned lead to an employee.
func (h *AssignmentHandler) Allocate(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req service.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	l, err := h.engine.Allocate(c.Request.Context(), actor, req.LeadID, req.EmployeeID)
	if err != nil {
		response.FromError(c, "failed to allocate lead", err)
		return
	}

	response.Success(c, http.StatusOK, "lead allocated", l)
}

// Reassign moves a lead from its current assignee to another employee.
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	var req struct {
		EmployeeID int64 `json:"employee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	l, err := h.engine.Reassign(c.Request.Context(), actor, leadID, req.EmployeeID)
	if err != nil {
		response.FromError(c, "failed to reassign lead", err)
		return
	}

	response.Success(c, http.StatusOK, "lead reassigned", l)
}

// BulkAssign moves a batch of leads to one employee, reporting per-lead
// skips and failures instead of aborting the batch.
func (h *AssignmentHandler) BulkAssign(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req service.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.BulkAssignByManager(c.Request.Context(), actor, req)
	if err != nil {
		response.FromError(c, "bulk assignment failed", err)
		return
	}

	response.Success(c, http.StatusOK, "bulk assignment processed", result)
}

// AutoAssign distributes unassigned leads from the pool. Admin only.
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req service.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.AutoAssign(c.Request.Context(), actor, req)
	if err != nil {
		response.FromError(c, "auto assignment failed", err)
		return
	}

	response.Success(c, http.StatusOK, "auto assignment processed", result)
}

// History returns the assignment trail of a lead, newest first.
func (h *AssignmentHandler) History(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	history, err := h.engine.AssignmentHistory(c.Request.Context(), actor, leadID)
	if err != nil {
		response.FromError(c, "failed to fetch history", err)
		return
	}

	response.Success(c, http.StatusOK, "history fetched", history)
}

// Sweep runs the cooling-off redistribution for the caller's team on demand,
// without waiting for the cron schedule.
func (h *AssignmentHandler) Sweep(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	result, err := h.sweeper.Sweep(c.Request.Context(), actor)
	if err != nil {
		response.FromError(c, "reassignment sweep failed", err)
		return
	}

	response.Success(c, http.StatusOK, "sweep completed", result)
}
