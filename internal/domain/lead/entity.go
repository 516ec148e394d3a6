// internal/domain/lead/entity.go
package lead

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Lead is the central record of the telecalling pipeline. A lead is created
// unassigned, gets distributed to an employee, and moves through the status
// pipeline as call outcomes are recorded.
type Lead struct {
	ID            int64  `json:"id" db:"id"`
	LeadReference string `json:"lead_reference" db:"lead_reference"`

	// Descriptive details
	Name   string         `json:"name" db:"name"`
	Phone  string         `json:"phone" db:"phone"`
	Email  sql.NullString `json:"email,omitempty" db:"email"`
	Sector Sector         `json:"sector" db:"sector"`
	Region Region         `json:"region" db:"region"`
	Tags   pq.StringArray `json:"tags,omitempty" db:"tags"`

	// Lifecycle
	Status     Status     `json:"status" db:"status"`
	CallStatus CallStatus `json:"call_status" db:"call_status"`

	// Ownership. AssignedTo is the employee currently responsible for
	// calling; CreatedBy is the manager/admin owning the lead's provenance.
	AssignedTo   sql.NullInt64 `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedBy    int64         `json:"created_by" db:"created_by"`
	AssignedDate sql.NullTime  `json:"assigned_date,omitempty" db:"assigned_date"`

	// Status-conditional fields. At most one group is populated at a time;
	// ApplyStatusChange keeps them consistent with Status.
	FollowUpDate     sql.NullTime    `json:"follow_up_date,omitempty" db:"follow_up_date"`
	SellingPrice     sql.NullFloat64 `json:"selling_price,omitempty" db:"selling_price"`
	LossReason       sql.NullString  `json:"loss_reason,omitempty" db:"loss_reason"`
	ReassignmentDate sql.NullTime    `json:"reassignment_date,omitempty" db:"reassignment_date"`
	DeadLeadReason   sql.NullString  `json:"dead_lead_reason,omitempty" db:"dead_lead_reason"`
	DeadLeadDate     sql.NullTime    `json:"dead_lead_date,omitempty" db:"dead_lead_date"`

	// Call tracking
	CallAttempts    int          `json:"call_attempts" db:"call_attempts"`
	LastCallAttempt sql.NullTime `json:"last_call_attempt,omitempty" db:"last_call_attempt"`

	// Append-only handoff history, never rewritten.
	PreviousAssignments []AssignmentRecord `json:"previous_assignments" db:"previous_assignments"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AssignmentRecord is one entry in a lead's handoff history.
type AssignmentRecord struct {
	EmployeeID      int64     `json:"employee_id"`
	AssignedAt      time.Time `json:"assigned_at"`
	StatusAtHandoff Status    `json:"status_at_handoff"`
	ReassignedBy    *int64    `json:"reassigned_by,omitempty"`
}

// HistoryEntry is the derived view returned by the assignment-history
// endpoint: stored records plus a synthetic entry for the current holder.
type HistoryEntry struct {
	EmployeeID   int64     `json:"employee_id"`
	AssignedAt   time.Time `json:"assigned_at"`
	Status       Status    `json:"status"`
	ReassignedBy *int64    `json:"reassigned_by,omitempty"`
	IsCurrent    bool      `json:"is_current"`
}

// NewLead builds a fresh, unassigned lead with pipeline defaults applied.
func NewLead(reference, name, phone string, createdBy int64) *Lead {
	now := time.Now()
	return &Lead{
		LeadReference: reference,
		Name:          name,
		Phone:         phone,
		Sector:        SectorOther,
		Region:        RegionUnspecified,
		Status:        StatusNew,
		CallStatus:    CallStatusPending,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Assignee returns the current assignee ID, or 0 if the lead is unassigned.
func (l *Lead) Assignee() int64 {
	if !l.AssignedTo.Valid {
		return 0
	}
	return l.AssignedTo.Int64
}

// IsAssignedTo reports whether the lead is currently held by the given employee.
func (l *Lead) IsAssignedTo(employeeID int64) bool {
	return l.AssignedTo.Valid && l.AssignedTo.Int64 == employeeID
}
