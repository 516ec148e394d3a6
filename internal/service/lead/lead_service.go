// internal/service/lead/lead_service.go
package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/audit"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxSaveRetries = 3

// Service owns lead creation and the status-transition side of the
// lifecycle. Assignment mutations live in the assignment engine.
type Service struct {
	leads     domain.Repository
	directory user.Directory
	audit     audit.Emitter
	policy    domain.TransitionPolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	leads domain.Repository,
	directory user.Directory,
	auditEmitter audit.Emitter,
	policy domain.TransitionPolicy,
	logger *zap.Logger,
) *Service {
	return &Service{
		leads:     leads,
		directory: directory,
		audit:     auditEmitter,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateLead registers a new lead. Phone is a soft-unique business key:
// creation is rejected when a lead with the same phone already exists.
func (s *Service) CreateLead(ctx context.Context, actor user.Actor, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	if !actor.IsManager() && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only managers and admins create leads", xerrors.ErrUnauthorized)
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", xerrors.ErrInvalidInput)
	}

	if existing, err := s.leads.FindByPhone(ctx, phone); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: lead with phone %s already exists", xerrors.ErrDuplicateEntry, phone)
	} else if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	l := domain.NewLead(ulid.Make().String(), strings.TrimSpace(req.Name), phone, actor.ID)

	if req.Email != "" {
		l.Email = sql.NullString{String: req.Email, Valid: true}
	}
	if req.Sector != "" {
		sector := domain.Sector(req.Sector)
		if !sector.Valid() {
			return nil, fmt.Errorf("%w: unknown sector %q", xerrors.ErrInvalidInput, req.Sector)
		}
		l.Sector = sector
	}
	if req.Region != "" {
		region := domain.Region(req.Region)
		if !region.Valid() {
			return nil, fmt.Errorf("%w: unknown region %q", xerrors.ErrInvalidInput, req.Region)
		}
		l.Region = region
	}
	l.Tags = req.Tags

	if err := s.leads.Create(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info("lead created",
		zap.Int64("lead_id", l.ID),
		zap.String("lead_reference", l.LeadReference),
		zap.Int64("created_by", actor.ID),
	)

	return l, nil
}

// UpdateStatus applies a validated status transition. The validator rejects
// the whole change on any missing companion field; nothing is persisted on
// failure.
func (s *Service) UpdateStatus(ctx context.Context, actor user.Actor, leadID int64, req *domain.UpdateStatusRequest) (*domain.Lead, error) {
	change := domain.StatusChange{
		Status:       domain.Status(req.Status),
		FollowUpDate: req.FollowUpDate,
		SellingPrice: req.SellingPrice,
		LossReason:   req.LossReason,
	}
	if req.DeadLeadReason != nil {
		reason := domain.DeadLeadReason(*req.DeadLeadReason)
		change.DeadLeadReason = &reason
	}

	l, err := s.mutateLead(ctx, leadID, func(l *domain.Lead) error {
		if err := s.authorizeStatusUpdate(ctx, actor, l); err != nil {
			return err
		}

		now := s.now()
		if err := domain.ApplyStatusChange(l, change, s.policy, now); err != nil {
			return err
		}

		if req.FromCall {
			// Outcome recorded by the caller: count the attempt and mark
			// the lead acted upon.
			l.CallAttempts++
			l.LastCallAttempt = sql.NullTime{Time: now, Valid: true}
			l.CallStatus = domain.CallStatusCompleted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		LeadID:    l.ID,
		EventType: audit.EventStatusChanged,
		ActorID:   actor.ID,
		Timestamp: s.now(),
	})

	return l, nil
}

// ReactivateLead pulls a Dead lead back into the pipeline as New with a
// clean call record.
func (s *Service) ReactivateLead(ctx context.Context, actor user.Actor, leadID int64) (*domain.Lead, error) {
	if !actor.IsManager() && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only managers and admins reactivate leads", xerrors.ErrUnauthorized)
	}

	l, err := s.mutateLead(ctx, leadID, func(l *domain.Lead) error {
		if err := s.authorizeManagerScope(ctx, actor, l); err != nil {
			return err
		}
		return domain.Reactivate(l, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		LeadID:    l.ID,
		EventType: audit.EventReactivated,
		ActorID:   actor.ID,
		Timestamp: s.now(),
	})

	return l, nil
}

// GetLead fetches a single lead, scoped to what the actor may see.
func (s *Service) GetLead(ctx context.Context, actor user.Actor, leadID int64) (*domain.Lead, error) {
	l, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if actor.IsEmployee() && !l.IsAssignedTo(actor.ID) {
		return nil, fmt.Errorf("%w: lead %d is not assigned to you", xerrors.ErrUnauthorized, leadID)
	}
	if actor.IsManager() {
		if err := s.authorizeManagerScope(ctx, actor, l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// ListLeads returns a page of leads under the typed filter set. Employees
// are pinned to their own queue; managers to leads they created.
func (s *Service) ListLeads(ctx context.Context, actor user.Actor, filters domain.ListFilters) (*domain.ListResponse, error) {
	switch {
	case actor.IsEmployee():
		id := actor.ID
		filters.AssignedTo = &id
		filters.Unassigned = nil
	case actor.IsManager():
		id := actor.ID
		filters.CreatedBy = &id
	}

	leads, total, err := s.leads.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &domain.ListResponse{
		Leads:      leads,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// DeleteLead is administrative CRUD; the engine itself never deletes leads.
func (s *Service) DeleteLead(ctx context.Context, actor user.Actor, leadID int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: lead deletion is admin only", xerrors.ErrUnauthorized)
	}
	return s.leads.Delete(ctx, leadID)
}

// CountByStatus feeds the dashboard counters.
func (s *Service) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	return s.leads.CountByStatus(ctx)
}

// ---- internals ----

func (s *Service) mutateLead(ctx context.Context, leadID int64, mutate func(*domain.Lead) error) (*domain.Lead, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		l, err := s.leads.FindByID(ctx, leadID)
		if err != nil {
			return nil, err
		}

		expected := l.UpdatedAt
		if err := mutate(l); err != nil {
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

// authorizeStatusUpdate lets the current assignee, their manager, or an
// admin record a transition.
func (s *Service) authorizeStatusUpdate(ctx context.Context, actor user.Actor, l *domain.Lead) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsEmployee() {
		if l.IsAssignedTo(actor.ID) {
			return nil
		}
		return fmt.Errorf("%w: lead %d is not assigned to you", xerrors.ErrUnauthorized, l.ID)
	}
	return s.authorizeManagerScope(ctx, actor, l)
}

func (s *Service) authorizeManagerScope(ctx context.Context, actor user.Actor, l *domain.Lead) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsManager() {
		return fmt.Errorf("%w: role %s lacks scope over leads", xerrors.ErrUnauthorized, actor.Role)
	}
	if l.CreatedBy == actor.ID {
		return nil
	}

	employees, err := s.directory.FindEmployeesOfManager(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve manager's employees: %w", err)
	}
	for _, e := range employees {
		if l.IsAssignedTo(e.ID) {
			return nil
		}
	}
	return fmt.Errorf("%w: lead %d is outside this manager's scope", xerrors.ErrUnauthorized, l.ID)
}
