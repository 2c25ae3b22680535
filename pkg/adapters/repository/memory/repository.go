// Package memory is an in-process MappingStore for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	byCode map[string]*domain.Mapping
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byCode: make(map[string]*domain.Mapping)}
}

func (r *MemoryRepository) Exists(ctx context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCode[code]
	return ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, m *domain.Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[m.ShortCode]; ok {
		return domain.ErrAlreadyExists
	}
	r.byCode[m.ShortCode] = clone(m)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, code string) (*domain.Mapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (r *MemoryRepository) State(ctx context.Context, code string) (*domain.MappingState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	return &domain.MappingState{ClickCount: m.ClickCount, IsActive: m.IsActive}, nil
}

func (r *MemoryRepository) IncrementClicks(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok {
		return domain.ErrNotFound
	}
	m.ClickCount++
	return nil
}

func (r *MemoryRepository) Deactivate(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok {
		return domain.ErrNotFound
	}
	m.IsActive = false
	return nil
}

func (r *MemoryRepository) Dump(ctx context.Context) ([]domain.Mapping, error) {
	r.mu.RLock()
	mappings := make([]domain.Mapping, 0, len(r.byCode))
	for _, m := range r.byCode {
		mappings = append(mappings, *clone(m))
	}
	r.mu.RUnlock()

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].CreatedAt.Before(mappings[j].CreatedAt)
	})
	return mappings, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) Close() error {
	return nil
}

// clone keeps callers from mutating stored records.
func clone(m *domain.Mapping) *domain.Mapping {
	c := *m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Ensure interface compliance
var _ ports.MappingStore = (*MemoryRepository)(nil)
