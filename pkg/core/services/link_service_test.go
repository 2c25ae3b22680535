package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

func newTestService(t *testing.T) (*LinkService, *memory.MemoryRepository, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	store := memory.NewMemoryRepository()
	return NewLinkService(store, Options{}, log), store, hook
}

func TestLinkService_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Len(t, m.ShortCode, DefaultCodeLength)

	res, err := svc.Resolve(ctx, m.ShortCode)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, "https://example.com/a", res.OriginalURL)

	svc.Wait()
	stats, err := svc.Stats(ctx, m.ShortCode)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.ClickCount)
	assert.True(t, stats.IsActive)
	assert.Equal(t, m.CreatedAt, stats.CreatedAt)
}

func TestLinkService_CreateTrimsInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	m, err := svc.Create(context.Background(), ports.CreateRequest{
		OriginalURL: "  https://example.com/padded \n",
		CustomAlias: " spaced ",
		ClientIP:    "192.0.2.7",
	})
	require.NoError(t, err)
	assert.Equal(t, "spaced", m.ShortCode)
	assert.Equal(t, "https://example.com/padded", m.OriginalURL)
	assert.Equal(t, "192.0.2.7", m.CreatedByIP)
}

func TestLinkService_CreateRejectsBadURL(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"", "not-a-url", "ftp://example.com", "http://", "javascript:alert(1)"} {
		_, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: raw, CustomAlias: "valid"})
		assert.ErrorIs(t, err, domain.ErrInvalidURL, raw)
	}

	all, err := store.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLinkService_AliasConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/first", CustomAlias: "promo"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/second", CustomAlias: "promo"})
	require.ErrorIs(t, err, domain.ErrAliasTaken)

	res, err := svc.Resolve(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/first", res.OriginalURL)
}

func TestLinkService_AliasIsCaseSensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/lower", CustomAlias: "promo"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/upper", CustomAlias: "PROMO"})
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, "PROMO")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/upper", res.OriginalURL)
}

func TestLinkService_SameURLGetsDistinctCodes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ShortCode, b.ShortCode)
}

func TestLinkService_ResolveMisses(t *testing.T) {
	svc, store, hook := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		code   string
		reason domain.MissReason
	}{
		{"unknown", domain.MissNotFound},
		{"", domain.MissMalformed},
		{"favicon.ico", domain.MissMalformed},
		{strings.Repeat("a", 21), domain.MissMalformed},
	}
	for _, tt := range tests {
		hook.Reset()
		res, err := svc.Resolve(ctx, tt.code)
		require.NoError(t, err)
		assert.False(t, res.Hit)
		assert.Empty(t, res.OriginalURL)
		assert.Equal(t, tt.reason, res.Reason)

		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, tt.reason, hook.LastEntry().Data["reason"])
	}

	all, err := store.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLinkService_Deactivation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com", CustomAlias: "retire"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Resolve(ctx, m.ShortCode)
		require.NoError(t, err)
	}
	svc.Wait()

	require.NoError(t, svc.Deactivate(ctx, m.ShortCode))

	res, err := svc.Resolve(ctx, m.ShortCode)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, domain.MissDeactivated, res.Reason)
	svc.Wait()

	stats, err := svc.Stats(ctx, m.ShortCode)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.False(t, stats.IsActive)
	assert.Equal(t, int64(2), stats.ClickCount)

	_, err = svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.org", CustomAlias: "retire"})
	assert.ErrorIs(t, err, domain.ErrAliasTaken)

	assert.ErrorIs(t, svc.Deactivate(ctx, "missing"), domain.ErrNotFound)
}

func TestLinkService_ConcurrentClicks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com/hot"})
	require.NoError(t, err)

	const clicks = 100
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Resolve(ctx, m.ShortCode)
			assert.NoError(t, err)
			assert.True(t, res.Hit)
		}()
	}
	wg.Wait()
	svc.Wait()

	stats, err := svc.Stats(ctx, m.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), stats.ClickCount)
}

func TestLinkService_ClickOutlivesRequestContext(t *testing.T) {
	svc, _, _ := newTestService(t)

	m, err := svc.Create(context.Background(), ports.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := svc.Resolve(ctx, m.ShortCode)
	cancel()
	require.NoError(t, err)
	require.True(t, res.Hit)
	svc.Wait()

	stats, err := svc.Stats(context.Background(), m.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ClickCount)
}

func TestLinkService_ClickFailureDoesNotFailRedirect(t *testing.T) {
	log, hook := test.NewNullLogger()
	inner := memory.NewMemoryRepository()
	svc := NewLinkService(clicklessStore{MappingStore: inner}, Options{}, log)
	ctx := context.Background()

	m, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, m.ShortCode)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	svc.Wait()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, m.ShortCode, hook.LastEntry().Data["short_code"])

	stats, err := svc.Stats(ctx, m.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ClickCount)
}

func TestLinkService_Stats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.Stats(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, stats)

	stats, err = svc.Stats(ctx, "bad code!")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestLinkService_StoreUnavailable(t *testing.T) {
	log, _ := test.NewNullLogger()
	svc := NewLinkService(brokenStore{}, Options{}, log)
	ctx := context.Background()

	_, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = svc.Resolve(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = svc.Stats(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = svc.Deactivate(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	assert.False(t, svc.StoreHealthy(ctx))
}

func TestLinkService_StoreHealthy(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.True(t, svc.StoreHealthy(context.Background()))
}

func TestLinkService_Options(t *testing.T) {
	log, _ := test.NewNullLogger()
	gen := &countingGenerator{codes: []string{"fixed1"}}
	svc := NewLinkService(memory.NewMemoryRepository(), Options{CodeLength: 8, MaxRetries: 2, Generator: gen}, log)
	ctx := context.Background()

	m, err := svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "fixed1", m.ShortCode)

	_, err = svc.Create(ctx, ports.CreateRequest{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrExhaustedRetries)
	assert.Equal(t, 3, gen.Calls())
}
