// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
	id, full_name, email, phone, role, manager_id, password_hash,
	is_active, created_at, updated_at
`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (full_name, email, phone, role, manager_id, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		u.FullName, u.Email, u.Phone, u.Role, u.ManagerID, u.PasswordHash, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = TRUE`

	u, err := r.scanRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail retrieves a user by email (login path).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = TRUE`

	u, err := r.scanRow(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindEmployeesOfManager resolves the manager→employee membership relation.
func (r *UserRepository) FindEmployeesOfManager(ctx context.Context, managerID int64) ([]user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE manager_id = $1 AND role = $2 AND is_active = TRUE
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, managerID, user.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("failed to find employees: %w", err)
	}
	defer rows.Close()

	var employees []user.User
	for rows.Next() {
		u, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *u)
	}

	return employees, rows.Err()
}

// ListManagers returns every active manager, for the scheduler's sweep loop.
func (r *UserRepository) ListManagers(ctx context.Context) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active = TRUE ORDER BY id`

	rows, err := r.db.Query(ctx, query, user.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	defer rows.Close()

	var managers []user.User
	for rows.Next() {
		u, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		managers = append(managers, *u)
	}

	return managers, rows.Err()
}

func (r *UserRepository) scanRow(row rowScanner) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.ManagerID,
		&u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
