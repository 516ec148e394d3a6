// internal/domain/user/entity.go
package user

import (
	"context"
	"database/sql"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

type User struct {
	ID       int64  `json:"id" db:"id"`
	FullName string `json:"full_name" db:"full_name"`
	Email    string `json:"email" db:"email"`
	Phone    string `json:"phone" db:"phone"`
	Role     Role   `json:"role" db:"role"`

	// ManagerID is set for employees only; the manager→employee relation
	// drives every authorization check in the assignment engine.
	ManagerID sql.NullInt64 `json:"manager_id,omitempty" db:"manager_id"`

	PasswordHash string `json:"-" db:"password_hash"`
	IsActive     bool   `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Actor identifies who is invoking an engine operation. It is built once
// from the authenticated request and passed explicitly; services never read
// identity out of ambient request state.
type Actor struct {
	ID        int64
	Role      Role
	ManagerID *int64
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) IsManager() bool { return a.Role == RoleManager }

func (a Actor) IsEmployee() bool { return a.Role == RoleEmployee }

// Directory resolves identities and the manager→employee membership
// relation. Read-only from the engine's perspective.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	FindEmployeesOfManager(ctx context.Context, managerID int64) ([]User, error)
}
