package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/audit"
	"telecrm-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	managerID      = int64(10)
	otherManagerID = int64(11)
	empA           = int64(21)
	empB           = int64(22)
	empC           = int64(23)
	outsiderEmp    = int64(31)
)

func newFixture() (*Service, *testutil.MemLeadRepo, *testutil.RecordingAudit, *testutil.RecordingNotifier) {
	repo := testutil.NewMemLeadRepo()
	dir := testutil.NewMemDirectory(
		&user.User{ID: 1, Role: user.RoleAdmin},
		&user.User{ID: managerID, Role: user.RoleManager},
		&user.User{ID: otherManagerID, Role: user.RoleManager},
		&user.User{ID: empA, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: managerID, Valid: true}},
		&user.User{ID: empB, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: managerID, Valid: true}},
		&user.User{ID: empC, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: managerID, Valid: true}},
		&user.User{ID: outsiderEmp, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: otherManagerID, Valid: true}},
	)
	auditRec := &testutil.RecordingAudit{}
	notifier := &testutil.RecordingNotifier{}
	svc := NewService(repo, dir, auditRec, notifier, zap.NewNop())
	return svc, repo, auditRec, notifier
}

func managerActor() user.Actor { return user.Actor{ID: managerID, Role: user.RoleManager} }

func seedLead(repo *testutil.MemLeadRepo, createdBy int64) *lead.Lead {
	l := lead.NewLead("01J0REF", "Acme Corp", "+919900112233", createdBy)
	return repo.Seed(l)
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("manager allocates own lead to team employee", func(t *testing.T) {
		svc, repo, auditRec, notifier := newFixture()
		seeded := seedLead(repo, managerID)

		l, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
		require.NoError(t, err)

		assert.True(t, l.IsAssignedTo(empA))
		assert.Equal(t, lead.CallStatusPending, l.CallStatus)
		assert.True(t, l.AssignedDate.Valid)
		assert.Empty(t, l.PreviousAssignments, "first assignment writes no history")

		require.Equal(t, []audit.EventType{audit.EventAllocated}, auditRec.Types())
		require.Equal(t, []int64{empA}, notifier.UserIDs)
	})

	t.Run("target must be an employee", func(t *testing.T) {
		svc, repo, _, _ := newFixture()
		seeded := seedLead(repo, managerID)

		_, err := svc.Allocate(ctx, managerActor(), seeded.ID, otherManagerID)
		require.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("foreign manager is rejected", func(t *testing.T) {
		svc, repo, _, notifier := newFixture()
		seeded := seedLead(repo, managerID)

		_, err := svc.Allocate(ctx, user.Actor{ID: otherManagerID, Role: user.RoleManager}, seeded.ID, outsiderEmp)
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
		assert.Empty(t, notifier.UserIDs)
	})

	t.Run("missing lead", func(t *testing.T) {
		svc, _, _, _ := newFixture()
		_, err := svc.Allocate(ctx, managerActor(), 404, empA)
		require.ErrorIs(t, err, xerrors.ErrNotFound)
	})
}

func TestReassign_HistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc, repo, auditRec, _ := newFixture()
	seeded := seedLead(repo, managerID)

	_, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
	require.NoError(t, err)

	_, err = svc.Reassign(ctx, managerActor(), seeded.ID, empB)
	require.NoError(t, err)

	l, err := svc.Reassign(ctx, managerActor(), seeded.ID, empC)
	require.NoError(t, err)

	assert.True(t, l.IsAssignedTo(empC))
	require.Len(t, l.PreviousAssignments, 2)

	// Order of handoffs is preserved; nothing is ever rewritten.
	assert.Equal(t, empA, l.PreviousAssignments[0].EmployeeID)
	assert.Equal(t, empB, l.PreviousAssignments[1].EmployeeID)
	for _, rec := range l.PreviousAssignments {
		require.NotNil(t, rec.ReassignedBy)
		assert.Equal(t, managerID, *rec.ReassignedBy)
	}

	assert.Equal(t, []audit.EventType{audit.EventAllocated, audit.EventReassigned, audit.EventReassigned}, auditRec.Types())
}

func TestAllocate_SameEmployeeResetsCallStatus(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newFixture()
	seeded := seedLead(repo, managerID)

	_, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
	require.NoError(t, err)

	// The employee starts working the lead.
	working, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	working.CallStatus = lead.CallStatusInProgress
	repo.Put(working)

	l, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
	require.NoError(t, err)

	assert.Equal(t, lead.CallStatusPending, l.CallStatus, "re-allocation resets call status even for the same holder")
	assert.Empty(t, l.PreviousAssignments, "same-holder re-allocation is not a handoff")
}

func TestRedistribute_ClearsReassignmentDate(t *testing.T) {
	ctx := context.Background()
	svc, repo, auditRec, _ := newFixture()

	l := lead.NewLead("01J0HOT", "Globex", "+919900112244", managerID)
	l.Status = lead.StatusHot
	l.AssignedTo = sql.NullInt64{Int64: empA, Valid: true}
	l.ReassignmentDate = sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
	repo.Seed(l)

	got, err := svc.Redistribute(ctx, managerActor(), l.ID, empB)
	require.NoError(t, err)

	assert.True(t, got.IsAssignedTo(empB))
	assert.False(t, got.ReassignmentDate.Valid, "redistribution must clear the recycle date")
	require.Len(t, got.PreviousAssignments, 1)
	assert.Equal(t, empA, got.PreviousAssignments[0].EmployeeID)
	assert.Equal(t, []audit.EventType{audit.EventRedistributed}, auditRec.Types())
}

func TestBulkAssignByManager(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failures fill the buckets", func(t *testing.T) {
		svc, repo, _, _ := newFixture()

		moved := seedLead(repo, managerID)
		_, err := svc.Allocate(ctx, managerActor(), moved.ID, empA)
		require.NoError(t, err)

		alreadyThere := lead.NewLead("01J0B", "Initech", "+919900112255", managerID)
		alreadyThere.AssignedTo = sql.NullInt64{Int64: empB, Valid: true}
		repo.Seed(alreadyThere)

		foreign := lead.NewLead("01J0C", "Umbrella", "+919900112266", otherManagerID)
		foreign.AssignedTo = sql.NullInt64{Int64: outsiderEmp, Valid: true}
		repo.Seed(foreign)

		result, err := svc.BulkAssignByManager(ctx, managerActor(), BulkAssignRequest{
			LeadIDs:    []int64{moved.ID, alreadyThere.ID, foreign.ID, 999},
			EmployeeID: empB,
		})
		require.NoError(t, err)

		assert.Equal(t, []int64{moved.ID}, result.Assigned)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, alreadyThere.ID, result.Skipped[0].LeadID)
		require.Len(t, result.Errors, 2)

		got, err := repo.FindByID(ctx, moved.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAssignedTo(empB))
	})

	t.Run("target outside the manager's team", func(t *testing.T) {
		svc, repo, _, _ := newFixture()
		seeded := seedLead(repo, managerID)

		_, err := svc.BulkAssignByManager(ctx, managerActor(), BulkAssignRequest{
			LeadIDs:    []int64{seeded.ID},
			EmployeeID: outsiderEmp,
		})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("employees may not bulk-assign", func(t *testing.T) {
		svc, _, _, _ := newFixture()
		_, err := svc.BulkAssignByManager(ctx, user.Actor{ID: empA, Role: user.RoleEmployee}, BulkAssignRequest{
			LeadIDs:    []int64{1},
			EmployeeID: empB,
		})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}

func TestAutoAssign(t *testing.T) {
	ctx := context.Background()
	admin := user.Actor{ID: 1, Role: user.RoleAdmin}

	seedPool := func(repo *testutil.MemLeadRepo, n int) []*lead.Lead {
		base := time.Now().Add(-time.Hour)
		leads := make([]*lead.Lead, n)
		for i := 0; i < n; i++ {
			l := lead.NewLead("01J0P", "Pool", fmt.Sprintf("+9199001122%02d", i), 0)
			l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			leads[i] = repo.Seed(l)
		}
		return leads
	}

	t.Run("assigning to an employee credits their manager", func(t *testing.T) {
		svc, repo, auditRec, _ := newFixture()
		pool := seedPool(repo, 3)

		result, err := svc.AutoAssign(ctx, admin, AutoAssignRequest{
			Status:     string(lead.StatusNew),
			AssignType: string(AssignTypeEmployee),
			PersonID:   empA,
			Count:      2,
		})
		require.NoError(t, err)

		assert.Equal(t, 2, result.AssignedCount)
		assert.Equal(t, 0, result.SkippedCount)
		assert.Equal(t, 2, result.TotalProcessed)

		// Oldest first.
		for _, seeded := range pool[:2] {
			got, err := repo.FindByID(ctx, seeded.ID)
			require.NoError(t, err)
			assert.True(t, got.IsAssignedTo(empA))
			assert.Equal(t, managerID, got.CreatedBy, "provenance follows the employee's manager")
		}
		third, err := repo.FindByID(ctx, pool[2].ID)
		require.NoError(t, err)
		assert.False(t, third.AssignedTo.Valid)

		assert.Equal(t, []audit.EventType{audit.EventAutoAssigned, audit.EventAutoAssigned}, auditRec.Types())
	})

	t.Run("assigning to a manager credits the manager directly", func(t *testing.T) {
		svc, repo, _, _ := newFixture()
		seedPool(repo, 1)

		result, err := svc.AutoAssign(ctx, admin, AutoAssignRequest{
			Status:     string(lead.StatusNew),
			AssignType: string(AssignTypeManager),
			PersonID:   managerID,
			Count:      5,
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.AssignedCount)
	})

	t.Run("lead grabbed mid-batch is skipped, not clobbered", func(t *testing.T) {
		svc, repo, _, _ := newFixture()
		pool := seedPool(repo, 2)

		repo.AfterFindUnassigned = func(r *testutil.MemLeadRepo, found []lead.Lead) {
			grabbed, err := r.FindByID(ctx, pool[0].ID)
			require.NoError(t, err)
			grabbed.AssignedTo = sql.NullInt64{Int64: empB, Valid: true}
			r.Put(grabbed)
		}

		result, err := svc.AutoAssign(ctx, admin, AutoAssignRequest{
			Status:     string(lead.StatusNew),
			AssignType: string(AssignTypeEmployee),
			PersonID:   empA,
			Count:      10,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.AssignedCount)
		assert.Equal(t, 1, result.SkippedCount)

		kept, err := repo.FindByID(ctx, pool[0].ID)
		require.NoError(t, err)
		assert.True(t, kept.IsAssignedTo(empB), "racing winner keeps the lead")
	})

	t.Run("admin only", func(t *testing.T) {
		svc, _, _, _ := newFixture()
		_, err := svc.AutoAssign(ctx, managerActor(), AutoAssignRequest{
			Status:     string(lead.StatusNew),
			AssignType: string(AssignTypeEmployee),
			PersonID:   empA,
			Count:      1,
		})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}

func TestSaveConflictRetries(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newFixture()
	seeded := seedLead(repo, managerID)

	// A concurrent writer bumps the lead between the engine's read and save.
	repo.SaveHook = func(r *testutil.MemLeadRepo, _ *lead.Lead) {
		stored, err := r.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		stored.CallAttempts = 7
		stored.UpdatedAt = stored.UpdatedAt.Add(time.Millisecond)
		r.Put(stored)
	}

	l, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
	require.NoError(t, err)

	assert.True(t, l.IsAssignedTo(empA))
	assert.Equal(t, 7, l.CallAttempts, "retry must re-read the concurrent write, not overwrite it")
}

func TestAssignmentHistory(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newFixture()
	seeded := seedLead(repo, managerID)

	_, err := svc.Allocate(ctx, managerActor(), seeded.ID, empA)
	require.NoError(t, err)
	_, err = svc.Reassign(ctx, managerActor(), seeded.ID, empB)
	require.NoError(t, err)

	t.Run("newest first with a synthetic current entry", func(t *testing.T) {
		resp, err := svc.AssignmentHistory(ctx, managerActor(), seeded.ID)
		require.NoError(t, err)

		require.Len(t, resp.History, 2)
		assert.True(t, resp.History[0].IsCurrent)
		assert.Equal(t, empB, resp.History[0].EmployeeID)
		assert.False(t, resp.History[1].IsCurrent)
		assert.Equal(t, empA, resp.History[1].EmployeeID)
		assert.False(t, resp.History[0].AssignedAt.Before(resp.History[1].AssignedAt))
	})

	t.Run("current assignee may view", func(t *testing.T) {
		_, err := svc.AssignmentHistory(ctx, user.Actor{ID: empB, Role: user.RoleEmployee}, seeded.ID)
		require.NoError(t, err)
	})

	t.Run("previous assignee may not", func(t *testing.T) {
		_, err := svc.AssignmentHistory(ctx, user.Actor{ID: empA, Role: user.RoleEmployee}, seeded.ID)
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}
