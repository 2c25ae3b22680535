// Package storetest holds the behaviour every MappingStore must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// NewMapping returns an active mapping with no clicks.
func NewMapping(code, originalURL string) *domain.Mapping {
	return &domain.Mapping{
		ShortCode:   code,
		OriginalURL: originalURL,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		IsActive:    true,
	}
}

// Run exercises newStore against the MappingStore contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.MappingStore) {
	t.Run("CreateThenGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		expires := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
		m := NewMapping("abc123", "https://example.com/a")
		m.CreatedByIP = "10.0.0.1"
		m.ExpiresAt = &expires
		require.NoError(t, store.Create(ctx, m))

		got, err := store.Get(ctx, "abc123")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc123", got.ShortCode)
		assert.Equal(t, "https://example.com/a", got.OriginalURL)
		assert.True(t, got.CreatedAt.Equal(m.CreatedAt), "created_at %v != %v", got.CreatedAt, m.CreatedAt)
		assert.Equal(t, int64(0), got.ClickCount)
		assert.True(t, got.IsActive)
		assert.Equal(t, "10.0.0.1", got.CreatedByIP)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.ExpiresAt.Equal(expires))
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		got, err := store.Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("OptionalFieldsAbsent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewMapping("bare", "https://example.com")))

		got, err := store.Get(ctx, "bare")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.CreatedByIP)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewMapping("dup", "https://example.com/first")))

		err := store.Create(ctx, NewMapping("dup", "https://example.com/second"))
		require.ErrorIs(t, err, domain.ErrAlreadyExists)

		got, err := store.Get(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/first", got.OriginalURL)
	})

	t.Run("Exists", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		ok, err := store.Exists(ctx, "here")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Create(ctx, NewMapping("here", "https://example.com")))
		require.NoError(t, store.Deactivate(ctx, "here"))

		ok, err = store.Exists(ctx, "here")
		require.NoError(t, err)
		assert.True(t, ok, "inactive records still exist")
	})

	t.Run("IncrementClicks", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewMapping("inc", "https://example.com")))

		for i := 0; i < 3; i++ {
			require.NoError(t, store.IncrementClicks(ctx, "inc"))
		}
		got, err := store.Get(ctx, "inc")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ClickCount)

		require.ErrorIs(t, store.IncrementClicks(ctx, "missing"), domain.ErrNotFound)
	})

	t.Run("State", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		state, err := store.State(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, state)

		require.NoError(t, store.Create(ctx, NewMapping("st", "https://example.com")))
		require.NoError(t, store.IncrementClicks(ctx, "st"))

		state, err = store.State(ctx, "st")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, domain.MappingState{ClickCount: 1, IsActive: true}, *state)

		require.NoError(t, store.Deactivate(ctx, "st"))
		state, err = store.State(ctx, "st")
		require.NoError(t, err)
		assert.Equal(t, domain.MappingState{ClickCount: 1, IsActive: false}, *state)
	})

	t.Run("Deactivate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewMapping("off", "https://example.com")))
		require.NoError(t, store.IncrementClicks(ctx, "off"))
		require.NoError(t, store.Deactivate(ctx, "off"))

		got, err := store.Get(ctx, "off")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsActive)
		assert.Equal(t, int64(1), got.ClickCount)

		// A deactivated code is never handed out again.
		require.ErrorIs(t, store.Create(ctx, NewMapping("off", "https://example.org")), domain.ErrAlreadyExists)
		require.ErrorIs(t, store.Deactivate(ctx, "missing"), domain.ErrNotFound)
	})

	t.Run("ConcurrentCreateSameCode", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const writers = 20
		var (
			mu      sync.Mutex
			winners int
		)
		var g errgroup.Group
		for i := 0; i < writers; i++ {
			g.Go(func() error {
				err := store.Create(ctx, NewMapping("race", fmt.Sprintf("https://example.com/%d", i)))
				switch {
				case err == nil:
					mu.Lock()
					winners++
					mu.Unlock()
					return nil
				case errors.Is(err, domain.ErrAlreadyExists):
					return nil
				default:
					return err
				}
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, winners)
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewMapping("hot", "https://example.com")))

		const clicks = 50
		var g errgroup.Group
		for i := 0; i < clicks; i++ {
			g.Go(func() error {
				return store.IncrementClicks(ctx, "hot")
			})
		}
		require.NoError(t, g.Wait())

		got, err := store.Get(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), got.ClickCount)
	})

	t.Run("Dump", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first := NewMapping("first", "https://example.com/1")
		second := NewMapping("second", "https://example.com/2")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, store.Create(ctx, second))
		require.NoError(t, store.Create(ctx, first))
		require.NoError(t, store.Deactivate(ctx, "second"))

		all, err := store.Dump(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "first", all[0].ShortCode)
		assert.Equal(t, "second", all[1].ShortCode)
		assert.False(t, all[1].IsActive)
	})

	t.Run("Ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}
