// internal/repository/postgres/lead_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"telecrm-service/internal/domain/lead"
	xerrors "telecrm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `
	id, lead_reference, name, phone, email, sector, region, tags,
	status, call_status, assigned_to, created_by, assigned_date,
	follow_up_date, selling_price, loss_reason, reassignment_date,
	dead_lead_reason, dead_lead_date, call_attempts, last_call_attempt,
	previous_assignments, created_at, updated_at
`

type LeadRepository struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a new lead. A duplicate phone number maps to
// ErrDuplicateEntry via the unique constraint.
func (r *LeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	query := `
		INSERT INTO leads (
			lead_reference, name, phone, email, sector, region, tags,
			status, call_status, created_by, previous_assignments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	historyJSON, err := marshalHistory(l.PreviousAssignments)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		l.LeadReference, l.Name, l.Phone, l.Email, l.Sector, l.Region, l.Tags,
		l.Status, l.CallStatus, l.CreatedBy, historyJSON,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// FindByID retrieves a lead by ID.
func (r *LeadRepository) FindByID(ctx context.Context, id int64) (*lead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// FindByPhone retrieves a lead by its phone number.
func (r *LeadRepository) FindByPhone(ctx context.Context, phone string) (*lead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1`
	return r.queryOne(ctx, query, phone)
}

// List retrieves leads matching the typed filters, newest first, with a
// total count for pagination.
func (r *LeadRepository) List(ctx context.Context, filters lead.ListFilters) ([]lead.Lead, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	addCondition := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, value)
		argPos++
	}

	if filters.Status != nil {
		addCondition("status = $%d", *filters.Status)
	}
	if filters.CallStatus != nil {
		addCondition("call_status = $%d", *filters.CallStatus)
	}
	if filters.Sector != nil {
		addCondition("sector = $%d", *filters.Sector)
	}
	if filters.Region != nil {
		addCondition("region = $%d", *filters.Region)
	}
	if filters.AssignedTo != nil {
		addCondition("assigned_to = $%d", *filters.AssignedTo)
	}
	if filters.Unassigned != nil {
		if *filters.Unassigned {
			conditions = append(conditions, "assigned_to IS NULL")
		} else {
			conditions = append(conditions, "assigned_to IS NOT NULL")
		}
	}
	if filters.CreatedBy != nil {
		addCondition("created_by = $%d", *filters.CreatedBy)
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM leads WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf(
		`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leadColumns, where, argPos, argPos+1,
	)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads, err := scanLeads(rows)
	if err != nil {
		return nil, 0, err
	}

	return leads, total, nil
}

// FindUnassigned returns up to Limit unassigned leads matching the filter,
// oldest-created first so distribution stays FIFO-fair.
func (r *LeadRepository) FindUnassigned(ctx context.Context, filter lead.UnassignedFilter) ([]lead.Lead, error) {
	conditions := []string{"assigned_to IS NULL", "status = $1"}
	args := []interface{}{filter.Status}
	argPos := 2

	if filter.Sector != nil {
		conditions = append(conditions, fmt.Sprintf("sector = $%d", argPos))
		args = append(args, *filter.Sector)
		argPos++
	}
	if filter.Region != nil {
		conditions = append(conditions, fmt.Sprintf("region = $%d", argPos))
		args = append(args, *filter.Region)
		argPos++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		`SELECT %s FROM leads WHERE %s ORDER BY created_at ASC LIMIT $%d`,
		leadColumns, strings.Join(conditions, " AND "), argPos,
	)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find unassigned leads: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// FindDueForReassignment returns Hot/Lost leads whose cooling-off window has
// elapsed, scoped to what the given manager may act on.
func (r *LeadRepository) FindDueForReassignment(ctx context.Context, managerID int64, employeeIDs []int64, now time.Time) ([]lead.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE status = ANY($1)
		  AND reassignment_date IS NOT NULL
		  AND reassignment_date <= $2
		  AND (created_by = $3 OR assigned_to = ANY($4))
		ORDER BY reassignment_date ASC
	`

	statuses := []string{string(lead.StatusHot), string(lead.StatusLost)}

	rows, err := r.db.Query(ctx, query, statuses, now, managerID, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find leads due for reassignment: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// Save persists the full record guarded by the updated_at the caller read.
// A stale expectation returns ErrConflict so the engine can re-read and
// retry instead of losing a concurrent update.
func (r *LeadRepository) Save(ctx context.Context, l *lead.Lead, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE leads SET
			name = $1, phone = $2, email = $3, sector = $4, region = $5, tags = $6,
			status = $7, call_status = $8, assigned_to = $9, created_by = $10,
			assigned_date = $11, follow_up_date = $12, selling_price = $13,
			loss_reason = $14, reassignment_date = $15, dead_lead_reason = $16,
			dead_lead_date = $17, call_attempts = $18, last_call_attempt = $19,
			previous_assignments = $20, updated_at = $21
		WHERE id = $22 AND updated_at = $23
	`

	historyJSON, err := marshalHistory(l.PreviousAssignments)
	if err != nil {
		return err
	}

	l.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		ctx, query,
		l.Name, l.Phone, l.Email, l.Sector, l.Region, l.Tags,
		l.Status, l.CallStatus, l.AssignedTo, l.CreatedBy,
		l.AssignedDate, l.FollowUpDate, l.SellingPrice,
		l.LossReason, l.ReassignmentDate, l.DeadLeadReason,
		l.DeadLeadDate, l.CallAttempts, l.LastCallAttempt,
		historyJSON, l.UpdatedAt,
		l.ID, expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save lead %d: %v", xerrors.ErrStoreFailure, l.ID, err)
	}

	if result.RowsAffected() == 0 {
		// Either the lead vanished or someone updated it since our read.
		var exists bool
		checkErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, l.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check lead existence: %w", checkErr)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrConflict
	}

	return nil
}

// Delete removes a lead. Administrative CRUD only; the engine never deletes.
func (r *LeadRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// CountByStatus returns lead counts grouped by lifecycle status.
func (r *LeadRepository) CountByStatus(ctx context.Context) (map[lead.Status]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[lead.Status]int64)
	for rows.Next() {
		var status lead.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// ---- scanning helpers ----

func (r *LeadRepository) queryOne(ctx context.Context, query string, arg interface{}) (*lead.Lead, error) {
	row := r.db.QueryRow(ctx, query, arg)

	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*lead.Lead, error) {
	var l lead.Lead
	var historyJSON []byte

	err := row.Scan(
		&l.ID, &l.LeadReference, &l.Name, &l.Phone, &l.Email, &l.Sector, &l.Region, &l.Tags,
		&l.Status, &l.CallStatus, &l.AssignedTo, &l.CreatedBy, &l.AssignedDate,
		&l.FollowUpDate, &l.SellingPrice, &l.LossReason, &l.ReassignmentDate,
		&l.DeadLeadReason, &l.DeadLeadDate, &l.CallAttempts, &l.LastCallAttempt,
		&historyJSON, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &l.PreviousAssignments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignment history: %w", err)
		}
	}

	return &l, nil
}

func scanLeads(rows pgx.Rows) ([]lead.Lead, error) {
	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func marshalHistory(history []lead.AssignmentRecord) ([]byte, error) {
	if history == nil {
		history = []lead.AssignmentRecord{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assignment history: %w", err)
	}
	return data, nil
}
