// internal/service/scheduler/reassignment_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/assignment"

	"go.uber.org/zap"
)

// Service redistributes stalled leads: Hot leads nobody contacted and Lost
// leads past their cooling-off window move to a different employee on the
// same team so they do not rot in one queue.
type Service struct {
	leads     lead.Repository
	directory user.Directory
	engine    *assignment.Service
	logger    *zap.Logger
	rng       *rand.Rand
	now       func() time.Time
}

// NewService builds the scheduler. The random source is injected so tests
// can pin candidate selection.
func NewService(
	leads lead.Repository,
	directory user.Directory,
	engine *assignment.Service,
	rng *rand.Rand,
	logger *zap.Logger,
) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		leads:     leads,
		directory: directory,
		engine:    engine,
		logger:    logger,
		rng:       rng,
		now:       time.Now,
	}
}

// SetClock overrides the scheduler clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SweepResult reports one sweep. Zero eligible leads is a normal outcome,
// not an error.
type SweepResult struct {
	Eligible   int `json:"eligible"`
	Reassigned int `json:"reassigned"`
	Skipped    int `json:"skipped"`
}

// Sweep scans the invoking manager's visible leads whose cooling-off window
// has elapsed and hands each to a uniformly random team member other than
// the current holder. Re-running immediately is a safe no-op: redistribution
// clears the reassignment date.
func (s *Service) Sweep(ctx context.Context, actor user.Actor) (*SweepResult, error) {
	managerID := actor.ID
	if actor.IsAdmin() && actor.ManagerID != nil {
		managerID = *actor.ManagerID
	} else if !actor.IsManager() && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only managers and admins run the sweep", xerrors.ErrUnauthorized)
	}

	employees, err := s.directory.FindEmployeesOfManager(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employees: %w", err)
	}

	employeeIDs := make([]int64, len(employees))
	for i, e := range employees {
		employeeIDs[i] = e.ID
	}

	due, err := s.leads.FindDueForReassignment(ctx, managerID, employeeIDs, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to select leads due for reassignment: %w", err)
	}

	result := &SweepResult{Eligible: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	for _, l := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pool := candidatePool(employeeIDs, l.Assignee())
		if len(pool) == 0 {
			// Single-employee team already holding the lead; leave it.
			result.Skipped++
			continue
		}

		candidate := pool[s.rng.Intn(len(pool))]

		if _, err := s.engine.Redistribute(ctx, actor, l.ID, candidate); err != nil {
			// Per-lead failure; keep processing the rest of the batch.
			s.logger.Warn("failed to redistribute lead",
				zap.Int64("lead_id", l.ID),
				zap.Int64("candidate", candidate),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}

		result.Reassigned++
	}

	s.logger.Info("reassignment sweep completed",
		zap.Int64("manager_id", managerID),
		zap.Int("eligible", result.Eligible),
		zap.Int("reassigned", result.Reassigned),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

// managerLister is the slice of the directory the sweep-all loop needs.
type managerLister interface {
	ListManagers(ctx context.Context) ([]user.User, error)
}

// SweepAll runs one sweep per active manager. This is the periodic entry
// point the cron job drives.
func (s *Service) SweepAll(ctx context.Context, managers managerLister) (*SweepResult, error) {
	all, err := managers.ListManagers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}

	total := &SweepResult{}
	for _, m := range all {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		actor := user.Actor{ID: m.ID, Role: user.RoleManager}
		res, err := s.Sweep(ctx, actor)
		if err != nil {
			s.logger.Warn("sweep failed for manager",
				zap.Int64("manager_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		total.Eligible += res.Eligible
		total.Reassigned += res.Reassigned
		total.Skipped += res.Skipped
	}

	return total, nil
}

func candidatePool(employeeIDs []int64, currentAssignee int64) []int64 {
	pool := make([]int64, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		if id != currentAssignee {
			pool = append(pool, id)
		}
	}
	return pool
}
