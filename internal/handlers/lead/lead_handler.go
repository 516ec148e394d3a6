// internal/handlers/lead/lead_handler.go
package lead

import (
	"net/http"
	"strconv"

	domain "telecrm-service/internal/domain/lead"
	"telecrm-service/internal/middleware"
	"telecrm-service/internal/pkg/response"
	service "telecrm-service/internal/service/lead"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	leadService *service.Service
}

func NewLeadHandler(leadService *service.Service) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
	}
}

// CreateLead registers a new lead owned by the calling manager.
func (h *LeadHandler) CreateLead(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var req domain.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	l, err := h.leadService.CreateLead(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, "failed to create lead", err)
		return
	}

	response.Success(c, http.StatusCreated, "lead created successfully", l)
}

// GetLead fetches a single lead the caller is allowed to see.
func (h *LeadHandler) GetLead(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := parseID(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	l, err := h.leadService.GetLead(c.Request.Context(), actor, leadID)
	if err != nil {
		response.FromError(c, "failed to fetch lead", err)
		return
	}

	response.Success(c, http.StatusOK, "lead fetched", l)
}

// ListLeads returns the caller's visible slice of the lead store.
func (h *LeadHandler) ListLeads(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	var filters domain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	result, err := h.leadService.ListLeads(c.Request.Context(), actor, filters)
	if err != nil {
		response.FromError(c, "failed to list leads", err)
		return
	}

	response.Success(c, http.StatusOK, "leads fetched", result)
}

// UpdateStatus applies a status transition, optionally as a call outcome.
func (h *LeadHandler) UpdateStatus(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := parseID(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	l, err := h.leadService.UpdateStatus(c.Request.Context(), actor, leadID, &req)
	if err != nil {
		response.FromError(c, "failed to update status", err)
		return
	}

	response.Success(c, http.StatusOK, "status updated", l)
}

// ReactivateLead brings a Dead lead back to New.
func (h *LeadHandler) ReactivateLead(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := parseID(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	l, err := h.leadService.ReactivateLead(c.Request.Context(), actor, leadID)
	if err != nil {
		response.FromError(c, "failed to reactivate lead", err)
		return
	}

	response.Success(c, http.StatusOK, "lead reactivated", l)
}

// DeleteLead removes a lead. Admin only (enforced in the service).
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	leadID, err := parseID(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid lead id", err)
		return
	}

	if err := h.leadService.DeleteLead(c.Request.Context(), actor, leadID); err != nil {
		response.FromError(c, "failed to delete lead", err)
		return
	}

	response.Success(c, http.StatusOK, "lead deleted", nil)
}

// Stats returns lead counts grouped by status.
func (h *LeadHandler) Stats(c *gin.Context) {
	counts, err := h.leadService.CountByStatus(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to fetch stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats fetched", counts)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
