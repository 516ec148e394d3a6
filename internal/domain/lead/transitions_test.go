package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrFloat(f float64) *float64 { return &f }

func ptrString(s string) *string { return &s }

func ptrReason(r DeadLeadReason) *DeadLeadReason { return &r }

func baseLead() *Lead {
	l := NewLead("01J0TESTREF", "Acme Corp", "+919900112233", 10)
	l.ID = 1
	return l
}

func TestApplyStatusChange_RequiredFields(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := DefaultTransitionPolicy()

	tests := []struct {
		name   string
		change StatusChange
		field  string
	}{
		{"follow-up without date", StatusChange{Status: StatusFollowUp}, "follow_up_date"},
		{"won without price", StatusChange{Status: StatusWon}, "selling_price"},
		{"won with zero price", StatusChange{Status: StatusWon, SellingPrice: ptrFloat(0)}, "selling_price"},
		{"won with negative price", StatusChange{Status: StatusWon, SellingPrice: ptrFloat(-50)}, "selling_price"},
		{"lost without reason", StatusChange{Status: StatusLost}, "loss_reason"},
		{"lost with empty reason", StatusChange{Status: StatusLost, LossReason: ptrString("")}, "loss_reason"},
		{"dead without reason", StatusChange{Status: StatusDead}, "dead_lead_reason"},
		{"dead with unknown reason", StatusChange{Status: StatusDead, DeadLeadReason: ptrReason("Ghosted")}, "dead_lead_reason"},
		{"unknown status", StatusChange{Status: "Tepid"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := baseLead()
			err := ApplyStatusChange(l, tt.change, policy, now)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			// Rejection must leave the lead untouched.
			assert.Equal(t, StatusNew, l.Status)
			assert.False(t, l.FollowUpDate.Valid)
			assert.False(t, l.SellingPrice.Valid)
		})
	}
}

func TestApplyStatusChange_Won(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := baseLead()

	// Park the lead in Follow-up first so Won has something to clear.
	followUp := now.Add(48 * time.Hour)
	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusFollowUp, FollowUpDate: ptrTime(followUp)}, DefaultTransitionPolicy(), now))
	require.True(t, l.FollowUpDate.Valid)

	err := ApplyStatusChange(l, StatusChange{Status: StatusWon, SellingPrice: ptrFloat(125000)}, DefaultTransitionPolicy(), now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, StatusWon, l.Status)
	assert.True(t, l.SellingPrice.Valid)
	assert.Equal(t, 125000.0, l.SellingPrice.Float64)
	assert.False(t, l.FollowUpDate.Valid, "follow-up date must be cleared on Won")
	assert.False(t, l.LossReason.Valid)
	assert.False(t, l.ReassignmentDate.Valid)
}

func TestApplyStatusChange_HotToWonClearsReassignmentDate(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := baseLead()

	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusHot}, DefaultTransitionPolicy(), now))
	require.True(t, l.ReassignmentDate.Valid)

	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusWon, SellingPrice: ptrFloat(5000)}, DefaultTransitionPolicy(), now.Add(time.Hour)))

	assert.Equal(t, StatusWon, l.Status)
	assert.Equal(t, 5000.0, l.SellingPrice.Float64)
	assert.False(t, l.FollowUpDate.Valid)
	assert.False(t, l.ReassignmentDate.Valid, "a won deal must drop off the scheduler's radar")
}

func TestApplyStatusChange_LostSchedulesRecycling(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := baseLead()

	err := ApplyStatusChange(l, StatusChange{Status: StatusLost, LossReason: ptrString("went with competitor")}, DefaultTransitionPolicy(), now)
	require.NoError(t, err)

	assert.Equal(t, StatusLost, l.Status)
	require.True(t, l.ReassignmentDate.Valid)
	assert.Equal(t, now.Add(14*24*time.Hour), l.ReassignmentDate.Time)
	assert.Equal(t, "went with competitor", l.LossReason.String)
}

func TestApplyStatusChange_HotUsesPolicyWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := TransitionPolicy{HotReassignAfter: 72 * time.Hour, LostReassignAfter: 14 * 24 * time.Hour}
	l := baseLead()

	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusHot}, policy, now))

	require.True(t, l.ReassignmentDate.Valid)
	assert.Equal(t, now.Add(72*time.Hour), l.ReassignmentDate.Time)
}

func TestApplyStatusChange_DeadStampsDate(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := baseLead()

	err := ApplyStatusChange(l, StatusChange{Status: StatusDead, DeadLeadReason: ptrReason(DeadReasonDoNotCall)}, DefaultTransitionPolicy(), now)
	require.NoError(t, err)

	assert.Equal(t, StatusDead, l.Status)
	require.True(t, l.DeadLeadReason.Valid)
	assert.Equal(t, string(DeadReasonDoNotCall), l.DeadLeadReason.String)
	require.True(t, l.DeadLeadDate.Valid)
	assert.Equal(t, now, l.DeadLeadDate.Time)
}

func TestApplyStatusChange_PlainStatusClearsEverything(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := baseLead()

	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusLost, LossReason: ptrString("budget cut")}, DefaultTransitionPolicy(), now))
	require.True(t, l.ReassignmentDate.Valid)

	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusInterested}, DefaultTransitionPolicy(), now.Add(time.Hour)))

	assert.Equal(t, StatusInterested, l.Status)
	assert.False(t, l.LossReason.Valid)
	assert.False(t, l.ReassignmentDate.Valid)
	assert.False(t, l.FollowUpDate.Valid)
	assert.False(t, l.SellingPrice.Valid)
	assert.False(t, l.DeadLeadReason.Valid)
}

func TestReactivate(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("dead lead re-enters the pipeline fresh", func(t *testing.T) {
		l := baseLead()
		l.CallAttempts = 5
		l.LastCallAttempt.Time = now.Add(-time.Hour)
		l.LastCallAttempt.Valid = true
		require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusDead, DeadLeadReason: ptrReason(DeadReasonNotReachable)}, DefaultTransitionPolicy(), now))

		err := Reactivate(l, now.Add(24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, StatusNew, l.Status)
		assert.Equal(t, 0, l.CallAttempts)
		assert.False(t, l.LastCallAttempt.Valid)
		assert.False(t, l.DeadLeadReason.Valid)
		assert.False(t, l.DeadLeadDate.Valid)
	})

	t.Run("only dead leads reactivate", func(t *testing.T) {
		l := baseLead()
		err := Reactivate(l, now)
		require.Error(t, err)
		assert.Equal(t, StatusNew, l.Status)
	})
}

func TestCheckConditionalFields(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	l := baseLead()
	require.NoError(t, ApplyStatusChange(l, StatusChange{Status: StatusHot}, DefaultTransitionPolicy(), now))
	require.NoError(t, CheckConditionalFields(l))

	// Force an inconsistency the way a buggy write path would.
	l.Status = StatusInterested
	err := CheckConditionalFields(l)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reassignment_date", verr.Field)
}
