// internal/service/assignment/assignment_service.go
package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/audit"
	ws "telecrm-service/internal/websocket"

	"go.uber.org/zap"
)

// maxSaveRetries bounds the optimistic-concurrency loop: a save that keeps
// losing the race this many times surfaces ErrConflict to the caller.
const maxSaveRetries = 3

// Notifier pushes a live notice to the employee who just received a lead.
type Notifier interface {
	NotifyAssigned(userID int64, notice ws.AssignmentNotice)
}

// Service is the assignment engine: it owns allocate, reassign, bulk-assign
// and auto-assign, the shared authorization rule, and the handoff history.
type Service struct {
	leads     lead.Repository
	directory user.Directory
	audit     audit.Emitter
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	leads lead.Repository,
	directory user.Directory,
	auditEmitter audit.Emitter,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		leads:     leads,
		directory: directory,
		audit:     auditEmitter,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the engine's clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Allocate assigns a lead to an employee. Re-allocating to the current
// holder is not a no-op: call status still resets to Pending, matching the
// behavior the telecallers rely on.
func (s *Service) Allocate(ctx context.Context, actor user.Actor, leadID, employeeID int64) (*lead.Lead, error) {
	if err := s.verifyEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	l, err := s.applyAssignment(ctx, actor, leadID, employeeID, nil, false)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		LeadID:    l.ID,
		EventType: audit.EventAllocated,
		ActorID:   actor.ID,
		Timestamp: s.now(),
	})
	s.notifyAssignee(l, actor.ID)

	return l, nil
}

// Reassign moves a lead to a new employee and records who ordered the move
// in the handoff history.
func (s *Service) Reassign(ctx context.Context, actor user.Actor, leadID, newEmployeeID int64) (*lead.Lead, error) {
	if err := s.verifyEmployee(ctx, newEmployeeID); err != nil {
		return nil, err
	}

	reassignedBy := actor.ID
	l, err := s.applyAssignment(ctx, actor, leadID, newEmployeeID, &reassignedBy, false)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		LeadID:    l.ID,
		EventType: audit.EventReassigned,
		ActorID:   actor.ID,
		Timestamp: s.now(),
	})
	s.notifyAssignee(l, actor.ID)

	return l, nil
}

// Redistribute is the scheduler's entry point: Reassign semantics plus
// clearing the reassignment date so the lead is not immediately re-selected
// by the next sweep.
func (s *Service) Redistribute(ctx context.Context, actor user.Actor, leadID, newEmployeeID int64) (*lead.Lead, error) {
	reassignedBy := actor.ID
	l, err := s.applyAssignment(ctx, actor, leadID, newEmployeeID, &reassignedBy, true)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		LeadID:    l.ID,
		EventType: audit.EventRedistributed,
		ActorID:   actor.ID,
		Timestamp: s.now(),
	})
	s.notifyAssignee(l, actor.ID)

	return l, nil
}

// BulkAssignByManager reassigns a batch of leads to one employee. Per-lead
// failures land in the result buckets; a single bad ID never aborts the
// batch.
func (s *Service) BulkAssignByManager(ctx context.Context, actor user.Actor, req BulkAssignRequest) (*BulkAssignResult, error) {
	if !actor.IsManager() && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only managers may bulk-assign", xerrors.ErrUnauthorized)
	}

	// One directory lookup for the whole batch.
	teamIDs, err := s.teamOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	if actor.IsManager() && !containsID(teamIDs, req.EmployeeID) {
		return nil, fmt.Errorf("%w: employee %d is not on this manager's team", xerrors.ErrUnauthorized, req.EmployeeID)
	}
	if err := s.verifyEmployee(ctx, req.EmployeeID); err != nil {
		return nil, err
	}

	result := &BulkAssignResult{
		Assigned: []int64{},
		Skipped:  []SkippedLead{},
		Errors:   []FailedLead{},
	}

	for _, leadID := range req.LeadIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		l, err := s.leads.FindByID(ctx, leadID)
		if err != nil {
			result.Errors = append(result.Errors, FailedLead{LeadID: leadID, Error: err.Error()})
			continue
		}

		if err := s.authorizeWithTeam(actor, l, teamIDs); err != nil {
			result.Errors = append(result.Errors, FailedLead{LeadID: leadID, Error: err.Error()})
			continue
		}

		if l.IsAssignedTo(req.EmployeeID) {
			result.Skipped = append(result.Skipped, SkippedLead{
				LeadID: leadID,
				Reason: "already assigned to this employee",
			})
			continue
		}

		if _, err := s.Reassign(ctx, actor, leadID, req.EmployeeID); err != nil {
			result.Errors = append(result.Errors, FailedLead{LeadID: leadID, Error: err.Error()})
			continue
		}

		result.Assigned = append(result.Assigned, leadID)
	}

	s.logger.Info("bulk assign completed",
		zap.Int64("actor_id", actor.ID),
		zap.Int64("employee_id", req.EmployeeID),
		zap.Int("assigned", len(result.Assigned)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// AutoAssign distributes up to Count currently-unassigned leads to one
// person, oldest-created first. Admin only. Provenance follows the org
// hierarchy: assigning to an employee sets created_by to their manager.
func (s *Service) AutoAssign(ctx context.Context, actor user.Actor, req AutoAssignRequest) (*AutoAssignResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: auto-assign is admin only", xerrors.ErrUnauthorized)
	}

	status := lead.Status(req.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", xerrors.ErrInvalidInput, req.Status)
	}

	person, err := s.directory.GetUser(ctx, req.PersonID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignee: %w", err)
	}

	var createdBy int64
	switch AssignType(req.AssignType) {
	case AssignTypeEmployee:
		if person.Role != user.RoleEmployee {
			return nil, fmt.Errorf("%w: person %d is not an employee", xerrors.ErrInvalidInput, req.PersonID)
		}
		if !person.ManagerID.Valid {
			return nil, fmt.Errorf("%w: employee %d has no manager", xerrors.ErrInvalidInput, req.PersonID)
		}
		createdBy = person.ManagerID.Int64
	case AssignTypeManager:
		if person.Role != user.RoleManager {
			return nil, fmt.Errorf("%w: person %d is not a manager", xerrors.ErrInvalidInput, req.PersonID)
		}
		createdBy = person.ID
	default:
		return nil, fmt.Errorf("%w: unknown assign type %q", xerrors.ErrInvalidInput, req.AssignType)
	}

	filter := lead.UnassignedFilter{Status: status, Limit: req.Count}
	if req.Sector != nil {
		sector := lead.Sector(*req.Sector)
		if !sector.Valid() {
			return nil, fmt.Errorf("%w: unknown sector %q", xerrors.ErrInvalidInput, *req.Sector)
		}
		filter.Sector = &sector
	}
	if req.Region != nil {
		region := lead.Region(*req.Region)
		if !region.Valid() {
			return nil, fmt.Errorf("%w: unknown region %q", xerrors.ErrInvalidInput, *req.Region)
		}
		filter.Region = &region
	}

	candidates, err := s.leads.FindUnassigned(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unassigned leads: %w", err)
	}

	result := &AutoAssignResult{TotalProcessed: len(candidates)}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		leadID := candidate.ID
		_, err := s.mutateLead(ctx, leadID, func(l *lead.Lead) error {
			if l.AssignedTo.Valid {
				// Raced with another assignment since the pool was fetched.
				return xerrors.ErrAlreadyAssigned
			}
			s.assignTo(l, req.PersonID, nil)
			l.CreatedBy = createdBy
			return nil
		})
		if err != nil {
			if errors.Is(err, xerrors.ErrAlreadyAssigned) {
				result.SkippedCount++
			} else {
				result.Errors = append(result.Errors, FailedLead{LeadID: leadID, Error: err.Error()})
				result.SkippedCount++
			}
			continue
		}

		result.AssignedCount++
		s.audit.Emit(ctx, audit.Event{
			LeadID:    leadID,
			EventType: audit.EventAutoAssigned,
			ActorID:   actor.ID,
			Timestamp: s.now(),
		})
	}

	s.logger.Info("auto assign completed",
		zap.String("status", req.Status),
		zap.String("assign_type", req.AssignType),
		zap.Int64("person_id", req.PersonID),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("total", result.TotalProcessed),
	)

	return result, nil
}

// AssignmentHistory reconstructs the descending handoff view: a synthetic
// entry for the current holder followed by the stored records. Derived only;
// nothing here is persisted.
func (s *Service) AssignmentHistory(ctx context.Context, actor user.Actor, leadID int64) (*HistoryResponse, error) {
	l, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeView(ctx, actor, l); err != nil {
		return nil, err
	}

	entries := make([]lead.HistoryEntry, 0, len(l.PreviousAssignments)+1)

	if l.AssignedTo.Valid {
		entries = append(entries, lead.HistoryEntry{
			EmployeeID: l.AssignedTo.Int64,
			AssignedAt: l.UpdatedAt,
			Status:     l.Status,
			IsCurrent:  true,
		})
	}

	for _, rec := range l.PreviousAssignments {
		entries = append(entries, lead.HistoryEntry{
			EmployeeID:   rec.EmployeeID,
			AssignedAt:   rec.AssignedAt,
			Status:       rec.StatusAtHandoff,
			ReassignedBy: rec.ReassignedBy,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AssignedAt.After(entries[j].AssignedAt)
	})

	return &HistoryResponse{LeadID: leadID, History: entries}, nil
}

// Authorize applies the shared manager scope rule: a manager may act on a
// lead iff they created it or it is assigned to one of their employees.
// Admins bypass the check.
func (s *Service) Authorize(ctx context.Context, actor user.Actor, l *lead.Lead) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsManager() {
		return fmt.Errorf("%w: role %s cannot manage assignments", xerrors.ErrUnauthorized, actor.Role)
	}

	teamIDs, err := s.teamOf(ctx, actor)
	if err != nil {
		return err
	}
	return s.authorizeWithTeam(actor, l, teamIDs)
}

// ---- internals ----

// applyAssignment runs the assignment mutation under the optimistic retry
// loop. History append, ownership transfer and the call-status reset happen
// in one save; there is no observable intermediate state.
func (s *Service) applyAssignment(ctx context.Context, actor user.Actor, leadID, employeeID int64, reassignedBy *int64, clearReassignmentDate bool) (*lead.Lead, error) {
	teamIDs, err := s.teamOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	return s.mutateLead(ctx, leadID, func(l *lead.Lead) error {
		if err := s.authorizeWithTeam(actor, l, teamIDs); err != nil {
			return err
		}
		s.assignTo(l, employeeID, reassignedBy)
		if clearReassignmentDate {
			l.ReassignmentDate = sql.NullTime{}
		}
		return nil
	})
}

// assignTo applies the core ownership invariant: outgoing assignee is
// appended to history, the pointer moves, and call status resets to Pending.
func (s *Service) assignTo(l *lead.Lead, employeeID int64, reassignedBy *int64) {
	now := s.now()

	if l.AssignedTo.Valid && l.AssignedTo.Int64 != employeeID {
		l.PreviousAssignments = append(l.PreviousAssignments, lead.AssignmentRecord{
			EmployeeID:      l.AssignedTo.Int64,
			AssignedAt:      now,
			StatusAtHandoff: l.Status,
			ReassignedBy:    reassignedBy,
		})
	}

	l.AssignedTo = sql.NullInt64{Int64: employeeID, Valid: true}
	l.CallStatus = lead.CallStatusPending
	l.AssignedDate = sql.NullTime{Time: now, Valid: true}
}

// mutateLead is the per-lead read-modify-write cycle with optimistic retry.
// The mutation closure sees a fresh read on every attempt, so authorization
// and state checks inside it are never stale.
func (s *Service) mutateLead(ctx context.Context, leadID int64, mutate func(*lead.Lead) error) (*lead.Lead, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		l, err := s.leads.FindByID(ctx, leadID)
		if err != nil {
			return nil, err
		}

		expected := l.UpdatedAt
		if err := mutate(l); err != nil {
			return nil, err
		}

		if err := lead.CheckConditionalFields(l); err != nil {
			return nil, err
		}

		err = s.leads.Save(ctx, l, expected)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, xerrors.ErrConflict) {
			return nil, err
		}

		s.logger.Debug("save conflict, retrying",
			zap.Int64("lead_id", leadID),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("%w: lead %d", xerrors.ErrConflict, leadID)
}

func (s *Service) authorizeWithTeam(actor user.Actor, l *lead.Lead, teamIDs []int64) error {
	if actor.IsAdmin() {
		return nil
	}
	if l.CreatedBy == actor.ID {
		return nil
	}
	if l.AssignedTo.Valid && containsID(teamIDs, l.AssignedTo.Int64) {
		return nil
	}
	return fmt.Errorf("%w: lead %d is outside this manager's scope", xerrors.ErrUnauthorized, l.ID)
}

// authorizeView extends the manager rule to the current assignee, who may
// read their own lead's history.
func (s *Service) authorizeView(ctx context.Context, actor user.Actor, l *lead.Lead) error {
	if actor.IsEmployee() {
		if l.IsAssignedTo(actor.ID) {
			return nil
		}
		return fmt.Errorf("%w: lead %d is not assigned to you", xerrors.ErrUnauthorized, l.ID)
	}
	return s.Authorize(ctx, actor, l)
}

// teamOf resolves the actor's employee IDs. Admins have no team; the
// authorization bypass makes the empty set irrelevant for them.
func (s *Service) teamOf(ctx context.Context, actor user.Actor) ([]int64, error) {
	if !actor.IsManager() {
		return nil, nil
	}

	employees, err := s.directory.FindEmployeesOfManager(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manager's employees: %w", err)
	}

	ids := make([]int64, len(employees))
	for i, e := range employees {
		ids[i] = e.ID
	}
	return ids, nil
}

func (s *Service) verifyEmployee(ctx context.Context, employeeID int64) error {
	u, err := s.directory.GetUser(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("failed to resolve employee %d: %w", employeeID, err)
	}
	if u.Role != user.RoleEmployee {
		return fmt.Errorf("%w: user %d is not an employee", xerrors.ErrInvalidInput, employeeID)
	}
	return nil
}

func (s *Service) notifyAssignee(l *lead.Lead, assignedBy int64) {
	if s.notifier == nil || !l.AssignedTo.Valid {
		return
	}
	s.notifier.NotifyAssigned(l.AssignedTo.Int64, ws.AssignmentNotice{
		LeadID:     l.ID,
		LeadName:   l.Name,
		AssignedBy: assignedBy,
		AssignedAt: s.now(),
	})
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
