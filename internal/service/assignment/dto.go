// internal/service/assignment/dto.go
package assignment

import "telecrm-service/internal/domain/lead"

type AllocateRequest struct {
	LeadID     int64 `json:"lead_id" binding:"required"`
	EmployeeID int64 `json:"employee_id" binding:"required"`
}

type BulkAssignRequest struct {
	LeadIDs    []int64 `json:"lead_ids" binding:"required,min=1"`
	EmployeeID int64   `json:"employee_id" binding:"required"`
}

// SkippedLead records a lead the batch left untouched, with the reason.
type SkippedLead struct {
	LeadID int64  `json:"lead_id"`
	Reason string `json:"reason"`
}

// FailedLead records a per-lead error inside a batch.
type FailedLead struct {
	LeadID int64  `json:"lead_id"`
	Error  string `json:"error"`
}

// BulkAssignResult buckets every lead of a batch: callers retry just the
// failed subset instead of replaying the whole call.
type BulkAssignResult struct {
	Assigned []int64       `json:"assigned"`
	Skipped  []SkippedLead `json:"skipped"`
	Errors   []FailedLead  `json:"errors"`
}

// AssignType selects whether AutoAssign hands leads to an employee or a
// manager, which decides where provenance (created_by) lands.
type AssignType string

const (
	AssignTypeEmployee AssignType = "employee"
	AssignTypeManager  AssignType = "manager"
)

type AutoAssignRequest struct {
	Status     string  `json:"status" binding:"required"`
	AssignType string  `json:"assign_type" binding:"required,oneof=employee manager"`
	PersonID   int64   `json:"person_id" binding:"required"`
	Count      int     `json:"count" binding:"required,min=1,max=500"`
	Sector     *string `json:"sector"`
	Region     *string `json:"region"`
}

type AutoAssignResult struct {
	AssignedCount  int          `json:"assigned_count"`
	SkippedCount   int          `json:"skipped_count"`
	TotalProcessed int          `json:"total_processed"`
	Errors         []FailedLead `json:"errors,omitempty"`
}

// HistoryResponse wraps the derived assignment-history view.
type HistoryResponse struct {
	LeadID  int64               `json:"lead_id"`
	History []lead.HistoryEntry `json:"history"`
}
