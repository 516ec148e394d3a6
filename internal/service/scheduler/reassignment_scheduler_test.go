package scheduler

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/assignment"
	"telecrm-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	mgrA = int64(10)
	mgrB = int64(11)
	emp1 = int64(21)
	emp2 = int64(22)
	emp3 = int64(31)
)

func newSweepFixture() (*Service, *testutil.MemLeadRepo, *testutil.MemDirectory) {
	repo := testutil.NewMemLeadRepo()
	dir := testutil.NewMemDirectory(
		&user.User{ID: mgrA, Role: user.RoleManager},
		&user.User{ID: mgrB, Role: user.RoleManager},
		&user.User{ID: emp1, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: mgrA, Valid: true}},
		&user.User{ID: emp2, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: mgrA, Valid: true}},
		&user.User{ID: emp3, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: mgrB, Valid: true}},
	)
	engine := assignment.NewService(repo, dir, &testutil.RecordingAudit{}, nil, zap.NewNop())
	svc := NewService(repo, dir, engine, rand.New(rand.NewSource(1)), zap.NewNop())
	return svc, repo, dir
}

func seedDueLead(repo *testutil.MemLeadRepo, createdBy, assignee int64, due time.Time) *lead.Lead {
	l := lead.NewLead("01J0SWEEP", "Stalled Deal", "+919900110000", createdBy)
	l.Status = lead.StatusLost
	l.LossReason = sql.NullString{String: "no budget", Valid: true}
	l.AssignedTo = sql.NullInt64{Int64: assignee, Valid: true}
	l.ReassignmentDate = sql.NullTime{Time: due, Valid: true}
	return repo.Seed(l)
}

func TestSweep_MovesLeadOffCurrentHolder(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSweepFixture()

	due := time.Now().Add(-time.Hour)
	seeded := seedDueLead(repo, mgrA, emp1, due)

	result, err := svc.Sweep(ctx, user.Actor{ID: mgrA, Role: user.RoleManager})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 1, result.Reassigned)
	assert.Equal(t, 0, result.Skipped)

	got, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)

	// Two-employee team: the only candidate is the other one.
	assert.True(t, got.IsAssignedTo(emp2), "sweep must never hand the lead back to its current holder")
	assert.False(t, got.ReassignmentDate.Valid)
	require.Len(t, got.PreviousAssignments, 1)
	assert.Equal(t, emp1, got.PreviousAssignments[0].EmployeeID)
	assert.Equal(t, lead.CallStatusPending, got.CallStatus)
}

func TestSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSweepFixture()
	seedDueLead(repo, mgrA, emp1, time.Now().Add(-time.Hour))

	actor := user.Actor{ID: mgrA, Role: user.RoleManager}

	first, err := svc.Sweep(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, 1, first.Reassigned)

	// Redistribution cleared the recycle date; there is nothing left to do.
	second, err := svc.Sweep(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Eligible)
	assert.Equal(t, 0, second.Reassigned)
}

func TestSweep_CoolingOffBoundary(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSweepFixture()

	lostAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	due := lostAt.Add(14 * 24 * time.Hour)
	seedDueLead(repo, mgrA, emp1, due)

	actor := user.Actor{ID: mgrA, Role: user.RoleManager}

	svc.SetClock(func() time.Time { return due.Add(-24 * time.Hour) })
	early, err := svc.Sweep(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 0, early.Eligible, "day 13 is still inside the cooling-off window")

	svc.SetClock(func() time.Time { return due })
	onTime, err := svc.Sweep(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, onTime.Eligible)
	assert.Equal(t, 1, onTime.Reassigned)
}

func TestSweep_SingleEmployeeTeamSkips(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSweepFixture()

	// mgrB's team is just emp3, who already holds the lead.
	seeded := seedDueLead(repo, mgrB, emp3, time.Now().Add(-time.Hour))

	result, err := svc.Sweep(ctx, user.Actor{ID: mgrB, Role: user.RoleManager})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 0, result.Reassigned)
	assert.Equal(t, 1, result.Skipped)

	got, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAssignedTo(emp3))
	assert.True(t, got.ReassignmentDate.Valid, "skipped leads stay eligible for the next sweep")
}

func TestSweep_Authorization(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSweepFixture()

	_, err := svc.Sweep(ctx, user.Actor{ID: emp1, Role: user.RoleEmployee})
	require.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestSweepAll(t *testing.T) {
	ctx := context.Background()
	svc, repo, dir := newSweepFixture()

	a := seedDueLead(repo, mgrA, emp1, time.Now().Add(-time.Hour))
	b := lead.NewLead("01J0B", "Other Team Deal", "+919900110001", mgrB)
	b.Status = lead.StatusHot
	b.AssignedTo = sql.NullInt64{Int64: emp3, Valid: true}
	b.ReassignmentDate = sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true}
	repo.Seed(b)

	total, err := svc.SweepAll(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, total.Eligible)
	assert.Equal(t, 1, total.Reassigned, "mgrA's lead moves")
	assert.Equal(t, 1, total.Skipped, "mgrB has nobody else to take theirs")

	gotA, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, gotA.IsAssignedTo(emp2))
}
