package lead

import (
	"context"
	"database/sql"
	"testing"
	"time"

	domain "telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/audit"
	"telecrm-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	mgrID    = int64(10)
	empID    = int64(21)
	otherEmp = int64(22)
)

func newFixture() (*Service, *testutil.MemLeadRepo, *testutil.RecordingAudit) {
	repo := testutil.NewMemLeadRepo()
	dir := testutil.NewMemDirectory(
		&user.User{ID: 1, Role: user.RoleAdmin},
		&user.User{ID: mgrID, Role: user.RoleManager},
		&user.User{ID: empID, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: mgrID, Valid: true}},
		&user.User{ID: otherEmp, Role: user.RoleEmployee, ManagerID: sql.NullInt64{Int64: mgrID, Valid: true}},
	)
	auditRec := &testutil.RecordingAudit{}
	svc := NewService(repo, dir, auditRec, domain.DefaultTransitionPolicy(), zap.NewNop())
	return svc, repo, auditRec
}

func managerActor() user.Actor  { return user.Actor{ID: mgrID, Role: user.RoleManager} }
func employeeActor() user.Actor { return user.Actor{ID: empID, Role: user.RoleEmployee} }

func seedAssigned(repo *testutil.MemLeadRepo, assignee int64) *domain.Lead {
	l := domain.NewLead("01J0LS", "Acme Corp", "+919900112233", mgrID)
	l.AssignedTo = sql.NullInt64{Int64: assignee, Valid: true}
	return repo.Seed(l)
}

func str(s string) *string   { return &s }
func f64(f float64) *float64 { return &f }

func TestCreateLead(t *testing.T) {
	ctx := context.Background()

	t.Run("manager creates a lead with defaults", func(t *testing.T) {
		svc, _, _ := newFixture()

		l, err := svc.CreateLead(ctx, managerActor(), &domain.CreateLeadRequest{
			Name:  "Acme Corp",
			Phone: " +919900112233 ",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, l.LeadReference)
		assert.Equal(t, "+919900112233", l.Phone, "phone is trimmed")
		assert.Equal(t, domain.StatusNew, l.Status)
		assert.Equal(t, domain.CallStatusPending, l.CallStatus)
		assert.Equal(t, domain.SectorOther, l.Sector)
		assert.Equal(t, domain.RegionUnspecified, l.Region)
		assert.Equal(t, mgrID, l.CreatedBy)
		assert.False(t, l.AssignedTo.Valid)
	})

	t.Run("duplicate phone is rejected", func(t *testing.T) {
		svc, _, _ := newFixture()
		req := &domain.CreateLeadRequest{Name: "Acme Corp", Phone: "+919900112233"}

		_, err := svc.CreateLead(ctx, managerActor(), req)
		require.NoError(t, err)

		_, err = svc.CreateLead(ctx, managerActor(), req)
		require.ErrorIs(t, err, xerrors.ErrDuplicateEntry)
	})

	t.Run("unknown sector is rejected", func(t *testing.T) {
		svc, _, _ := newFixture()
		_, err := svc.CreateLead(ctx, managerActor(), &domain.CreateLeadRequest{
			Name: "Acme", Phone: "+919900112299", Sector: "Mining",
		})
		require.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("employees may not create", func(t *testing.T) {
		svc, _, _ := newFixture()
		_, err := svc.CreateLead(ctx, employeeActor(), &domain.CreateLeadRequest{Name: "X", Phone: "+911"})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("call outcome bumps the attempt counter", func(t *testing.T) {
		svc, repo, auditRec := newFixture()
		seeded := seedAssigned(repo, empID)

		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		svc.SetClock(func() time.Time { return now })

		l, err := svc.UpdateStatus(ctx, employeeActor(), seeded.ID, &domain.UpdateStatusRequest{
			Status:   string(domain.StatusInterested),
			FromCall: true,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusInterested, l.Status)
		assert.Equal(t, 1, l.CallAttempts)
		require.True(t, l.LastCallAttempt.Valid)
		assert.Equal(t, now, l.LastCallAttempt.Time)
		assert.Equal(t, domain.CallStatusCompleted, l.CallStatus)
		assert.Equal(t, []audit.EventType{audit.EventStatusChanged}, auditRec.Types())
	})

	t.Run("manual correction leaves call tracking alone", func(t *testing.T) {
		svc, repo, _ := newFixture()
		seeded := seedAssigned(repo, empID)

		l, err := svc.UpdateStatus(ctx, managerActor(), seeded.ID, &domain.UpdateStatusRequest{
			Status: string(domain.StatusInterested),
		})
		require.NoError(t, err)

		assert.Equal(t, 0, l.CallAttempts)
		assert.False(t, l.LastCallAttempt.Valid)
		assert.Equal(t, domain.CallStatusPending, l.CallStatus)
	})

	t.Run("invalid transition persists nothing", func(t *testing.T) {
		svc, repo, auditRec := newFixture()
		seeded := seedAssigned(repo, empID)

		_, err := svc.UpdateStatus(ctx, employeeActor(), seeded.ID, &domain.UpdateStatusRequest{
			Status:   string(domain.StatusWon),
			FromCall: true,
		})
		require.Error(t, err)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := repo.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNew, stored.Status)
		assert.Equal(t, 0, stored.CallAttempts, "failed transition must not count the attempt")
		assert.Empty(t, auditRec.Events)
	})

	t.Run("won deal", func(t *testing.T) {
		svc, repo, _ := newFixture()
		seeded := seedAssigned(repo, empID)

		l, err := svc.UpdateStatus(ctx, employeeActor(), seeded.ID, &domain.UpdateStatusRequest{
			Status:       string(domain.StatusWon),
			SellingPrice: f64(99500),
			FromCall:     true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWon, l.Status)
		assert.Equal(t, 99500.0, l.SellingPrice.Float64)
	})

	t.Run("other employees cannot record outcomes", func(t *testing.T) {
		svc, repo, _ := newFixture()
		seeded := seedAssigned(repo, empID)

		_, err := svc.UpdateStatus(ctx, user.Actor{ID: otherEmp, Role: user.RoleEmployee}, seeded.ID, &domain.UpdateStatusRequest{
			Status:     string(domain.StatusLost),
			LossReason: str("lost interest"),
		})
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}

func TestReactivateLead(t *testing.T) {
	ctx := context.Background()
	svc, repo, auditRec := newFixture()

	seeded := seedAssigned(repo, empID)
	_, err := svc.UpdateStatus(ctx, employeeActor(), seeded.ID, &domain.UpdateStatusRequest{
		Status:         string(domain.StatusDead),
		DeadLeadReason: str(string(domain.DeadReasonNotReachable)),
		FromCall:       true,
	})
	require.NoError(t, err)

	t.Run("employees may not reactivate", func(t *testing.T) {
		_, err := svc.ReactivateLead(ctx, employeeActor(), seeded.ID)
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("manager reactivation resets the call record", func(t *testing.T) {
		l, err := svc.ReactivateLead(ctx, managerActor(), seeded.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusNew, l.Status)
		assert.Equal(t, 0, l.CallAttempts)
		assert.False(t, l.LastCallAttempt.Valid)
		assert.False(t, l.DeadLeadReason.Valid)
		assert.Contains(t, auditRec.Types(), audit.EventReactivated)
	})

	t.Run("live leads cannot be reactivated", func(t *testing.T) {
		_, err := svc.ReactivateLead(ctx, managerActor(), seeded.ID)
		require.Error(t, err)
	})
}

func TestListLeads_ScopePinning(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture()

	mine := seedAssigned(repo, empID)
	other := domain.NewLead("01J0X", "Globex", "+919900112244", mgrID)
	other.AssignedTo = sql.NullInt64{Int64: otherEmp, Valid: true}
	repo.Seed(other)

	t.Run("employee sees only their queue", func(t *testing.T) {
		resp, err := svc.ListLeads(ctx, employeeActor(), domain.ListFilters{})
		require.NoError(t, err)
		require.Len(t, resp.Leads, 1)
		assert.Equal(t, mine.ID, resp.Leads[0].ID)
	})

	t.Run("employee cannot widen the filter", func(t *testing.T) {
		id := otherEmp
		resp, err := svc.ListLeads(ctx, employeeActor(), domain.ListFilters{AssignedTo: &id})
		require.NoError(t, err)
		require.Len(t, resp.Leads, 1)
		assert.Equal(t, mine.ID, resp.Leads[0].ID)
	})

	t.Run("manager sees leads they created", func(t *testing.T) {
		resp, err := svc.ListLeads(ctx, managerActor(), domain.ListFilters{})
		require.NoError(t, err)
		assert.Len(t, resp.Leads, 2)
	})
}

func TestGetLead_Scope(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture()
	seeded := seedAssigned(repo, empID)

	_, err := svc.GetLead(ctx, employeeActor(), seeded.ID)
	require.NoError(t, err)

	_, err = svc.GetLead(ctx, user.Actor{ID: otherEmp, Role: user.RoleEmployee}, seeded.ID)
	require.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestDeleteLead(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture()
	seeded := seedAssigned(repo, empID)

	require.ErrorIs(t, svc.DeleteLead(ctx, managerActor(), seeded.ID), xerrors.ErrUnauthorized)

	require.NoError(t, svc.DeleteLead(ctx, user.Actor{ID: 1, Role: user.RoleAdmin}, seeded.ID))
	_, err := svc.GetLead(ctx, managerActor(), seeded.ID)
	require.ErrorIs(t, err, xerrors.ErrNotFound)
}
