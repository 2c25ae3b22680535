package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

// MappingStore defines storage operations for mapping records. Every
// operation is scoped to a single short code and must be safe for
// concurrent use.
type MappingStore interface {
	Exists(ctx context.Context, code string) (bool, error)
	// Create writes the record only if its code is free, as one atomic
	// step. It returns domain.ErrAlreadyExists otherwise.
	Create(ctx context.Context, m *domain.Mapping) error
	// Get returns the record regardless of IsActive, or nil if absent.
	Get(ctx context.Context, code string) (*domain.Mapping, error)
	// IncrementClicks adds one to the click count without losing
	// concurrent updates. It returns domain.ErrNotFound if absent.
	// State reads only the mutable fields, or nil if absent.
	State(ctx context.Context, code string) (*domain.MappingState, error)
	IncrementClicks(ctx context.Context, code string) error
	Deactivate(ctx context.Context, code string) error
	Dump(ctx context.Context) ([]domain.Mapping, error) // For migration
	Ping(ctx context.Context) error
	Close() error
}

// CodeGenerator produces candidate short codes.
type CodeGenerator interface {
	Generate(length int) string
}

// CreateRequest is the input to LinkService.Create.
type CreateRequest struct {
	OriginalURL string
	CustomAlias string
	ClientIP    string
}

// LinkService defines the business logic operations
type LinkService interface {
	Create(ctx context.Context, req CreateRequest) (*domain.Mapping, error)
	Resolve(ctx context.Context, code string) (domain.ResolveResult, error)
	Stats(ctx context.Context, code string) (*domain.StatsView, error)
	Deactivate(ctx context.Context, code string) error
	StoreHealthy(ctx context.Context) bool
}
