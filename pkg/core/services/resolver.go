package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/codegen"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const DefaultClickTimeout = 5 * time.Second

// Resolver turns short codes into redirect targets and records clicks.
type Resolver struct {
	store        ports.MappingStore
	log          logrus.FieldLogger
	clickTimeout time.Duration
	pending      sync.WaitGroup
}

func NewResolver(store ports.MappingStore, clickTimeout time.Duration, log logrus.FieldLogger) *Resolver {
	if clickTimeout <= 0 {
		clickTimeout = DefaultClickTimeout
	}
	return &Resolver{store: store, log: log, clickTimeout: clickTimeout}
}

// Resolve looks up code. Inactive and unknown codes are misses, not errors.
// On a hit the click is recorded in the background; its outcome never
// affects the returned result.
func (r *Resolver) Resolve(ctx context.Context, code string) (domain.ResolveResult, error) {
	if !codegen.IsPlausibleCode(code) {
		r.logMiss(code, domain.MissMalformed)
		return domain.Miss(domain.MissMalformed), nil
	}

	m, err := r.store.Get(ctx, code)
	if err != nil {
		return domain.ResolveResult{}, storeError("get", code, err)
	}
	if m == nil {
		r.logMiss(code, domain.MissNotFound)
		return domain.Miss(domain.MissNotFound), nil
	}
	if !m.IsActive {
		r.logMiss(code, domain.MissDeactivated)
		return domain.Miss(domain.MissDeactivated), nil
	}

	r.recordClick(ctx, code)
	return domain.Hit(m.OriginalURL), nil
}

// Stats returns the record's view whether or not it is active, or nil if
// the code was never created.
func (r *Resolver) Stats(ctx context.Context, code string) (*domain.StatsView, error) {
	if !codegen.IsPlausibleCode(code) {
		return nil, nil
	}
	m, err := r.store.Get(ctx, code)
	if err != nil {
		return nil, storeError("get", code, err)
	}
	if m == nil {
		return nil, nil
	}
	return m.Stats(), nil
}

// Wait blocks until every background click increment has finished.
func (r *Resolver) Wait() {
	r.pending.Wait()
}

func (r *Resolver) recordClick(ctx context.Context, code string) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		// The redirect may complete before the increment does.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.clickTimeout)
		defer cancel()

		if err := r.store.IncrementClicks(ctx, code); err != nil {
			r.log.WithError(err).WithField("short_code", code).Warn("failed to record click")
		}
	}()
}

func (r *Resolver) logMiss(code string, reason domain.MissReason) {
	r.log.WithFields(logrus.Fields{
		"short_code": code,
		"reason":     reason,
	}).Info("short code did not resolve")
}
