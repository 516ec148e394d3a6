// internal/domain/lead/dto.go
package lead

import "time"

type CreateLeadRequest struct {
	Name   string   `json:"name" binding:"required,max=255"`
	Phone  string   `json:"phone" binding:"required,max=20"`
	Email  string   `json:"email" binding:"omitempty,email,max=255"`
	Sector string   `json:"sector"`
	Region string   `json:"region"`
	Tags   []string `json:"tags"`
}

type UpdateStatusRequest struct {
	Status         string     `json:"status" binding:"required"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
	SellingPrice   *float64   `json:"selling_price"`
	LossReason     *string    `json:"loss_reason"`
	DeadLeadReason *string    `json:"dead_lead_reason"`
	// FromCall marks the update as a call outcome so the attempt counter
	// and call status are bumped alongside the transition.
	FromCall bool `json:"from_call"`
}

// ListFilters is the typed query surface over the lead store. Nil pointer
// fields are not translated to predicates, so a missing filter can never
// silently match the wrong column.
type ListFilters struct {
	Status     *Status     `form:"status"`
	CallStatus *CallStatus `form:"call_status"`
	Sector     *Sector     `form:"sector"`
	Region     *Region     `form:"region"`
	AssignedTo *int64      `form:"assigned_to"`
	Unassigned *bool       `form:"unassigned"`
	CreatedBy  *int64      `form:"created_by"`
	Search     string      `form:"search"` // name or phone
	Page       int         `form:"page" binding:"omitempty,min=1"`
	PageSize   int         `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type ListResponse struct {
	Leads      []Lead `json:"leads"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// UnassignedFilter selects the pool AutoAssign draws from, oldest first.
type UnassignedFilter struct {
	Status Status
	Sector *Sector
	Region *Region
	Limit  int
}
