// internal/domain/lead/repository.go
package lead

import (
	"context"
	"time"
)

// Repository is the narrow surface the engine needs from the lead store.
// Save is a compare-and-set on updated_at so two actors racing on the same
// lead cannot silently lose an update.
type Repository interface {
	Create(ctx context.Context, l *Lead) error
	FindByID(ctx context.Context, id int64) (*Lead, error)
	FindByPhone(ctx context.Context, phone string) (*Lead, error)
	List(ctx context.Context, filters ListFilters) ([]Lead, int64, error)
	FindUnassigned(ctx context.Context, filter UnassignedFilter) ([]Lead, error)
	FindDueForReassignment(ctx context.Context, managerID int64, employeeIDs []int64, now time.Time) ([]Lead, error)
	Save(ctx context.Context, l *Lead, expectedUpdatedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
