// Package cache puts an in-process LRU in front of a MappingStore. Only the
// fields that never change after creation are cached; click count and
// active flag are read from the store on every Get, so deactivation by
// any process takes effect immediately.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// entry is the immutable part of a mapping.
type entry struct {
	originalURL string
	createdAt   time.Time
	createdByIP string
	expiresAt   *time.Time
}

type CachedRepository struct {
	ports.MappingStore
	entries *expirable.LRU[string, entry]
}

func NewCachedRepository(inner ports.MappingStore, size int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		MappingStore: inner,
		entries:      expirable.NewLRU[string, entry](size, nil, ttl),
	}
}

func (c *CachedRepository) Get(ctx context.Context, code string) (*domain.Mapping, error) {
	e, ok := c.entries.Get(code)
	if !ok {
		m, err := c.MappingStore.Get(ctx, code)
		if err != nil || m == nil {
			return m, err
		}
		c.entries.Add(code, entry{
			originalURL: m.OriginalURL,
			createdAt:   m.CreatedAt,
			createdByIP: m.CreatedByIP,
			expiresAt:   m.ExpiresAt,
		})
		return m, nil
	}

	state, err := c.MappingStore.State(ctx, code)
	if err != nil {
		return nil, err
	}
	if state == nil {
		c.entries.Remove(code)
		return nil, nil
	}

	m := &domain.Mapping{
		ShortCode:   code,
		OriginalURL: e.originalURL,
		CreatedAt:   e.createdAt,
		ClickCount:  state.ClickCount,
		IsActive:    state.IsActive,
		CreatedByIP: e.createdByIP,
	}
	if e.expiresAt != nil {
		t := *e.expiresAt
		m.ExpiresAt = &t
	}
	return m, nil
}

func (c *CachedRepository) Close() error {
	c.entries.Purge()
	return c.MappingStore.Close()
}

// Ensure interface compliance
var _ ports.MappingStore = (*CachedRepository)(nil)
