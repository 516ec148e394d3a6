// internal/testutil/memory.go
//
// In-memory doubles for the engine's storage and directory interfaces.
// They honor the same compare-and-set contract as the Postgres
// implementations so concurrency tests exercise the real retry paths.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"telecrm-service/internal/domain/lead"
	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/service/audit"
	ws "telecrm-service/internal/websocket"
)

// MemLeadRepo is an in-memory lead.Repository.
type MemLeadRepo struct {
	mu     sync.Mutex
	leads  map[int64]*lead.Lead
	nextID int64

	// SaveHook runs once before the next Save, outside the lock. Tests use
	// it to inject a concurrent writer between a read and its save.
	SaveHook func(r *MemLeadRepo, l *lead.Lead)

	// AfterFindUnassigned runs once after the next FindUnassigned, outside
	// the lock, to simulate a pool going stale mid-batch.
	AfterFindUnassigned func(r *MemLeadRepo, found []lead.Lead)
}

func NewMemLeadRepo() *MemLeadRepo {
	return &MemLeadRepo{leads: make(map[int64]*lead.Lead), nextID: 1}
}

// Seed stores a lead as-is, assigning an ID if missing.
func (r *MemLeadRepo) Seed(l *lead.Lead) *lead.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == 0 {
		l.ID = r.nextID
		r.nextID++
	} else if l.ID >= r.nextID {
		r.nextID = l.ID + 1
	}
	r.leads[l.ID] = cloneLead(l)
	return l
}

// Put overwrites a stored lead without touching updated_at. Test hook for
// simulating a concurrent writer.
func (r *MemLeadRepo) Put(l *lead.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[l.ID] = cloneLead(l)
}

func (r *MemLeadRepo) Create(ctx context.Context, l *lead.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.leads {
		if existing.Phone == l.Phone {
			return xerrors.ErrDuplicateEntry
		}
	}
	l.ID = r.nextID
	r.nextID++
	r.leads[l.ID] = cloneLead(l)
	return nil
}

func (r *MemLeadRepo) FindByID(ctx context.Context, id int64) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneLead(l), nil
}

func (r *MemLeadRepo) FindByPhone(ctx context.Context, phone string) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.Phone == phone {
			return cloneLead(l), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *MemLeadRepo) List(ctx context.Context, filters lead.ListFilters) ([]lead.Lead, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []lead.Lead
	for _, l := range r.leads {
		if filters.Status != nil && l.Status != *filters.Status {
			continue
		}
		if filters.CallStatus != nil && l.CallStatus != *filters.CallStatus {
			continue
		}
		if filters.AssignedTo != nil && !l.IsAssignedTo(*filters.AssignedTo) {
			continue
		}
		if filters.Unassigned != nil && *filters.Unassigned && l.AssignedTo.Valid {
			continue
		}
		if filters.CreatedBy != nil && l.CreatedBy != *filters.CreatedBy {
			continue
		}
		out = append(out, *cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *MemLeadRepo) FindUnassigned(ctx context.Context, filter lead.UnassignedFilter) ([]lead.Lead, error) {
	r.mu.Lock()

	var out []lead.Lead
	for _, l := range r.leads {
		if l.AssignedTo.Valid || l.Status != filter.Status {
			continue
		}
		if filter.Sector != nil && l.Sector != *filter.Sector {
			continue
		}
		if filter.Region != nil && l.Region != *filter.Region {
			continue
		}
		out = append(out, *cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	hook := r.AfterFindUnassigned
	r.AfterFindUnassigned = nil
	r.mu.Unlock()
	if hook != nil {
		hook(r, out)
	}
	return out, nil
}

func (r *MemLeadRepo) FindDueForReassignment(ctx context.Context, managerID int64, employeeIDs []int64, now time.Time) ([]lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []lead.Lead
	for _, l := range r.leads {
		if l.Status != lead.StatusHot && l.Status != lead.StatusLost {
			continue
		}
		if !l.ReassignmentDate.Valid || l.ReassignmentDate.Time.After(now) {
			continue
		}
		if l.CreatedBy != managerID && !contains(employeeIDs, l.Assignee()) {
			continue
		}
		out = append(out, *cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemLeadRepo) Save(ctx context.Context, l *lead.Lead, expectedUpdatedAt time.Time) error {
	r.mu.Lock()
	hook := r.SaveHook
	r.SaveHook = nil
	r.mu.Unlock()
	if hook != nil {
		hook(r, l)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.leads[l.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return xerrors.ErrConflict
	}

	l.UpdatedAt = time.Now()
	r.leads[l.ID] = cloneLead(l)
	return nil
}

func (r *MemLeadRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(r.leads, id)
	return nil
}

func (r *MemLeadRepo) CountByStatus(ctx context.Context) (map[lead.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[lead.Status]int64)
	for _, l := range r.leads {
		counts[l.Status]++
	}
	return counts, nil
}

// MemDirectory is an in-memory user.Directory plus the manager listing the
// sweep-all loop needs.
type MemDirectory struct {
	mu    sync.Mutex
	users map[int64]*user.User
}

func NewMemDirectory(users ...*user.User) *MemDirectory {
	d := &MemDirectory{users: make(map[int64]*user.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemDirectory) Add(u *user.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemDirectory) GetUser(ctx context.Context, id int64) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *MemDirectory) FindEmployeesOfManager(ctx context.Context, managerID int64) ([]user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []user.User
	for _, u := range d.users {
		if u.Role == user.RoleEmployee && u.ManagerID.Valid && u.ManagerID.Int64 == managerID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemDirectory) ListManagers(ctx context.Context) ([]user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []user.User
	for _, u := range d.users {
		if u.Role == user.RoleManager {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordingAudit captures emitted events for assertion.
type RecordingAudit struct {
	mu     sync.Mutex
	Events []audit.Event
}

func (a *RecordingAudit) Emit(ctx context.Context, event audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Events = append(a.Events, event)
}

// Types returns the emitted event types in order.
func (a *RecordingAudit) Types() []audit.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.EventType, len(a.Events))
	for i, e := range a.Events {
		out[i] = e.EventType
	}
	return out
}

// RecordingNotifier captures assignment notices for assertion.
type RecordingNotifier struct {
	mu      sync.Mutex
	Notices []ws.AssignmentNotice
	UserIDs []int64
}

func (n *RecordingNotifier) NotifyAssigned(userID int64, notice ws.AssignmentNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.UserIDs = append(n.UserIDs, userID)
	n.Notices = append(n.Notices, notice)
}

func cloneLead(l *lead.Lead) *lead.Lead {
	cp := *l
	cp.Tags = append([]string(nil), l.Tags...)
	cp.PreviousAssignments = append([]lead.AssignmentRecord(nil), l.PreviousAssignments...)
	return &cp
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
