package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

var errBackendDown = errors.New("connection refused")

// collidingStore reports every code as already taken.
type collidingStore struct {
	ports.MappingStore
	creates atomic.Int32
}

func (s *collidingStore) Create(ctx context.Context, m *domain.Mapping) error {
	s.creates.Add(1)
	return domain.ErrAlreadyExists
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Exists(context.Context, string) (bool, error) { return false, errBackendDown }
func (brokenStore) Create(context.Context, *domain.Mapping) error { return errBackendDown }
func (brokenStore) Get(context.Context, string) (*domain.Mapping, error) { return nil, errBackendDown }
func (brokenStore) State(context.Context, string) (*domain.MappingState, error) { return nil, errBackendDown }
func (brokenStore) IncrementClicks(context.Context, string) error { return errBackendDown }
func (brokenStore) Deactivate(context.Context, string) error { return errBackendDown }
func (brokenStore) Dump(context.Context) ([]domain.Mapping, error) { return nil, errBackendDown }
func (brokenStore) Ping(context.Context) error { return errBackendDown }
func (brokenStore) Close() error { return nil }

// clicklessStore serves reads but cannot count clicks.
type clicklessStore struct {
	ports.MappingStore
}

func (clicklessStore) IncrementClicks(context.Context, string) error {
	return errBackendDown
}

// countingGenerator hands out codes from a fixed list, repeating the last.
type countingGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *countingGenerator) Generate(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	return g.codes[i]
}

func (g *countingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
