package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/codegen"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const healthTimeout = 2 * time.Second

type Options struct {
	CodeLength   int
	MaxRetries   int
	ClickTimeout time.Duration
	Generator    ports.CodeGenerator
}

type LinkService struct {
	store     ports.MappingStore
	allocator *Allocator
	resolver  *Resolver
	log       logrus.FieldLogger
}

func NewLinkService(store ports.MappingStore, opts Options, log logrus.FieldLogger) *LinkService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LinkService{
		store:     store,
		allocator: NewAllocator(store, opts.Generator, opts.CodeLength, opts.MaxRetries, log),
		resolver:  NewResolver(store, opts.ClickTimeout, log),
		log:       log,
	}
}

// Create validates the request and stores a new mapping. Nothing is written
// when validation fails.
func (s *LinkService) Create(ctx context.Context, req ports.CreateRequest) (*domain.Mapping, error) {
	originalURL := strings.TrimSpace(req.OriginalURL)
	if !codegen.ValidateURL(originalURL) {
		return nil, domain.ErrInvalidURL
	}

	m, err := s.allocator.Allocate(ctx, originalURL, strings.TrimSpace(req.CustomAlias), req.ClientIP)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"short_code": m.ShortCode,
		"custom":     req.CustomAlias != "",
	}).Info("short link created")
	return m, nil
}

func (s *LinkService) Resolve(ctx context.Context, code string) (domain.ResolveResult, error) {
	return s.resolver.Resolve(ctx, code)
}

func (s *LinkService) Stats(ctx context.Context, code string) (*domain.StatsView, error) {
	return s.resolver.Stats(ctx, code)
}

// Deactivate soft-deletes code. The record and its click count are kept.
func (s *LinkService) Deactivate(ctx context.Context, code string) error {
	err := s.store.Deactivate(ctx, code)
	switch {
	case err == nil:
		s.log.WithField("short_code", code).Info("short link deactivated")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	default:
		return storeError("deactivate", code, err)
	}
}

// StoreHealthy runs a trivial read against the store.
func (s *LinkService) StoreHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.WithError(err).Error("store health check failed")
		return false
	}
	return true
}

// Wait blocks until pending click increments have been written.
func (s *LinkService) Wait() {
	s.resolver.Wait()
}

var _ ports.LinkService = (*LinkService)(nil)
