package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestAllocator_RandomCode(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	alloc := NewAllocator(store, nil, 0, 0, log)

	m, err := alloc.Allocate(context.Background(), "https://example.com", "", "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, m.ShortCode, DefaultCodeLength)
	assert.True(t, m.IsActive)
	assert.Equal(t, int64(0), m.ClickCount)
	assert.Equal(t, "10.0.0.1", m.CreatedByIP)
	assert.Nil(t, m.ExpiresAt)

	stored, err := store.Get(context.Background(), m.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored.OriginalURL)
}

func TestAllocator_CodeLengthClamped(t *testing.T) {
	log, _ := test.NewNullLogger()
	alloc := NewAllocator(memory.NewMemoryRepository(), nil, 99, 0, log)

	m, err := alloc.Allocate(context.Background(), "https://example.com", "", "")
	require.NoError(t, err)
	assert.Len(t, m.ShortCode, 20)
}

func TestAllocator_RetriesPastCollisions(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	store := memory.NewMemoryRepository()
	ctx := context.Background()

	gen := &countingGenerator{codes: []string{"taken1", "taken1", "free01"}}
	alloc := NewAllocator(store, gen, 6, 5, log)

	first, err := alloc.Allocate(ctx, "https://example.com/a", "", "")
	require.NoError(t, err)
	assert.Equal(t, "taken1", first.ShortCode)

	second, err := alloc.Allocate(ctx, "https://example.com/b", "", "")
	require.NoError(t, err)
	assert.Equal(t, "free01", second.ShortCode)
	assert.Equal(t, 3, gen.Calls())

	collisions := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.DebugLevel {
			collisions++
			assert.Equal(t, "taken1", entry.Data["short_code"])
		}
	}
	assert.Equal(t, 1, collisions)
}

func TestAllocator_ExhaustedRetries(t *testing.T) {
	log, hook := test.NewNullLogger()
	store := &collidingStore{}
	gen := &countingGenerator{codes: []string{"same00"}}
	alloc := NewAllocator(store, gen, 6, 5, log)

	m, err := alloc.Allocate(context.Background(), "https://example.com", "", "")
	require.ErrorIs(t, err, domain.ErrExhaustedRetries)
	assert.Nil(t, m)
	assert.Equal(t, 5, gen.Calls())
	assert.Equal(t, int32(5), store.creates.Load())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestAllocator_CustomAlias(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	gen := &countingGenerator{codes: []string{"unused"}}
	alloc := NewAllocator(store, gen, 6, 5, log)
	ctx := context.Background()

	m, err := alloc.Allocate(ctx, "https://example.com/a", "promo", "")
	require.NoError(t, err)
	assert.Equal(t, "promo", m.ShortCode)

	_, err = alloc.Allocate(ctx, "https://example.com/b", "promo", "")
	require.ErrorIs(t, err, domain.ErrAliasTaken)

	stored, err := store.Get(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", stored.OriginalURL)
	assert.Zero(t, gen.Calls(), "aliases never fall back to generated codes")
}

func TestAllocator_InvalidAliasWritesNothing(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	alloc := NewAllocator(store, nil, 6, 5, log)
	ctx := context.Background()

	for _, alias := range []string{"ab", "ab--cd", "-abc", "abc-", strings.Repeat("a", 21), "with space"} {
		_, err := alloc.Allocate(ctx, "https://example.com", alias, "")
		assert.ErrorIs(t, err, domain.ErrInvalidAlias, alias)
	}

	all, err := store.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAllocator_ReservedAlias(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	alloc := NewAllocator(store, nil, 6, 5, log)

	for _, alias := range []string{"api", "health", "Health", "healthz"} {
		_, err := alloc.Allocate(context.Background(), "https://example.com", alias, "")
		assert.ErrorIs(t, err, domain.ErrAliasTaken, alias)
	}
}

func TestAllocator_StoreFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	alloc := NewAllocator(brokenStore{}, nil, 6, 5, log)

	_, err := alloc.Allocate(context.Background(), "https://example.com", "", "")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, errBackendDown)

	_, err = alloc.Allocate(context.Background(), "https://example.com", "promo", "")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestAllocator_ConcurrentUniqueness(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	// Two-character codes over 62 symbols force frequent collisions.
	alloc := NewAllocator(store, nil, 2, 50, log)
	ctx := context.Background()

	const creators = 200
	var (
		mu    sync.Mutex
		codes = make(map[string]string)
	)
	var g errgroup.Group
	for i := 0; i < creators; i++ {
		g.Go(func() error {
			target := fmt.Sprintf("https://example.com/%d", i)
			m, err := alloc.Allocate(ctx, target, "", "")
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if prev, ok := codes[m.ShortCode]; ok {
				return fmt.Errorf("code %s issued for %s and %s", m.ShortCode, prev, target)
			}
			codes[m.ShortCode] = target
			return nil
		})
	}
	require.NoError(t, g.Wait())

	all, err := store.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, all, creators)
	for _, m := range all {
		assert.Equal(t, codes[m.ShortCode], m.OriginalURL)
	}
}

func TestAllocator_ConcurrentSameAlias(t *testing.T) {
	log, _ := test.NewNullLogger()
	alloc := NewAllocator(memory.NewMemoryRepository(), nil, 6, 5, log)

	const writers = 20
	var (
		mu             sync.Mutex
		winners, taken int
	)
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := alloc.Allocate(context.Background(), fmt.Sprintf("https://example.com/%d", i), "launch", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case err == domain.ErrAliasTaken:
				taken++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, winners)
	assert.Equal(t, writers-1, taken)
}
