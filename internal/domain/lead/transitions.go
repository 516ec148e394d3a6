// internal/domain/lead/transitions.go
package lead

import (
	"database/sql"
	"fmt"
	"time"
)

// StatusChange carries a target status plus the companion fields a caller
// may supply. ReassignmentDate is intentionally absent: Lost and Hot compute
// it from policy, callers never set it directly.
type StatusChange struct {
	Status         Status          `json:"status"`
	FollowUpDate   *time.Time      `json:"follow_up_date,omitempty"`
	SellingPrice   *float64        `json:"selling_price,omitempty"`
	LossReason     *string         `json:"loss_reason,omitempty"`
	DeadLeadReason *DeadLeadReason `json:"dead_lead_reason,omitempty"`
}

// TransitionPolicy holds the cooling-off windows applied when a lead enters
// a status the scheduler acts on.
type TransitionPolicy struct {
	// HotReassignAfter is how long an uncontacted Hot lead waits before
	// becoming eligible for redistribution.
	HotReassignAfter time.Duration
	// LostReassignAfter is the delay before a Lost lead is recycled.
	LostReassignAfter time.Duration
}

// DefaultTransitionPolicy mirrors the production windows: Lost leads recycle
// after 14 days, Hot leads after 7.
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{
		HotReassignAfter:  7 * 24 * time.Hour,
		LostReassignAfter: 14 * 24 * time.Hour,
	}
}

// ValidationError reports a status-transition field invariant violation.
// The whole operation must be rejected; no partial field application.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ApplyStatusChange validates the change against the rule table and writes
// the normalized field set onto the lead. On error the lead is untouched.
//
// Rule table, applied in full on every transition:
//   - Follow-up requires follow_up_date; clears price, loss reason, reassignment date.
//   - Won requires selling_price; clears follow-up and reassignment dates, loss reason.
//   - Lost requires loss_reason; reassignment date = now + lost window.
//   - Hot sets reassignment date = now + hot window so the scheduler can act.
//   - Dead requires a dead-lead reason and stamps dead_lead_date.
//   - Every other status clears all four conditional fields.
func ApplyStatusChange(l *Lead, change StatusChange, policy TransitionPolicy, now time.Time) error {
	if !change.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", change.Status)}
	}

	switch change.Status {
	case StatusFollowUp:
		if change.FollowUpDate == nil {
			return &ValidationError{Field: "follow_up_date", Reason: "required when status is Follow-up"}
		}
	case StatusWon:
		if change.SellingPrice == nil {
			return &ValidationError{Field: "selling_price", Reason: "required when status is Won"}
		}
		if *change.SellingPrice <= 0 {
			return &ValidationError{Field: "selling_price", Reason: "must be greater than zero"}
		}
	case StatusLost:
		if change.LossReason == nil || *change.LossReason == "" {
			return &ValidationError{Field: "loss_reason", Reason: "required when status is Lost"}
		}
	case StatusDead:
		if change.DeadLeadReason == nil {
			return &ValidationError{Field: "dead_lead_reason", Reason: "required when status is Dead"}
		}
		if !change.DeadLeadReason.Valid() {
			return &ValidationError{Field: "dead_lead_reason", Reason: fmt.Sprintf("unknown reason %q", *change.DeadLeadReason)}
		}
	}

	// Validation passed; normalize every conditional field so nothing stale
	// survives from the previous status.
	clearConditionalFields(l)

	switch change.Status {
	case StatusFollowUp:
		l.FollowUpDate.Time = *change.FollowUpDate
		l.FollowUpDate.Valid = true
	case StatusWon:
		l.SellingPrice.Float64 = *change.SellingPrice
		l.SellingPrice.Valid = true
	case StatusLost:
		l.LossReason.String = *change.LossReason
		l.LossReason.Valid = true
		l.ReassignmentDate.Time = now.Add(policy.LostReassignAfter)
		l.ReassignmentDate.Valid = true
	case StatusHot:
		l.ReassignmentDate.Time = now.Add(policy.HotReassignAfter)
		l.ReassignmentDate.Valid = true
	case StatusDead:
		l.DeadLeadReason.String = string(*change.DeadLeadReason)
		l.DeadLeadReason.Valid = true
		l.DeadLeadDate.Time = now
		l.DeadLeadDate.Valid = true
	}

	l.Status = change.Status
	l.UpdatedAt = now
	return nil
}

// Reactivate moves a Dead lead back to New: dead-lead fields are cleared
// and the call counters reset so the lead re-enters the pipeline fresh.
func Reactivate(l *Lead, now time.Time) error {
	if l.Status != StatusDead {
		return &ValidationError{Field: "status", Reason: "only Dead leads can be reactivated"}
	}

	clearConditionalFields(l)
	l.Status = StatusNew
	l.CallAttempts = 0
	l.LastCallAttempt = nullTime()
	l.UpdatedAt = now
	return nil
}

// CheckConditionalFields asserts the invariant that the populated
// conditional fields match the current status. The assignment engine runs
// this before every save in place of a persistence-layer hook.
func CheckConditionalFields(l *Lead) error {
	if l.FollowUpDate.Valid && l.Status != StatusFollowUp {
		return &ValidationError{Field: "follow_up_date", Reason: "set while status is not Follow-up"}
	}
	if l.SellingPrice.Valid && l.Status != StatusWon {
		return &ValidationError{Field: "selling_price", Reason: "set while status is not Won"}
	}
	if l.LossReason.Valid && l.Status != StatusLost {
		return &ValidationError{Field: "loss_reason", Reason: "set while status is not Lost"}
	}
	if l.ReassignmentDate.Valid && l.Status != StatusLost && l.Status != StatusHot {
		return &ValidationError{Field: "reassignment_date", Reason: "set while status is not Lost or Hot"}
	}
	if l.DeadLeadReason.Valid && l.Status != StatusDead {
		return &ValidationError{Field: "dead_lead_reason", Reason: "set while status is not Dead"}
	}
	return nil
}

func clearConditionalFields(l *Lead) {
	l.FollowUpDate = nullTime()
	l.SellingPrice.Float64 = 0
	l.SellingPrice.Valid = false
	l.LossReason.String = ""
	l.LossReason.Valid = false
	l.ReassignmentDate = nullTime()
	l.DeadLeadReason.String = ""
	l.DeadLeadReason.Valid = false
	l.DeadLeadDate = nullTime()
}

func nullTime() sql.NullTime { return sql.NullTime{} }

