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

const (
	DefaultCodeLength = 6
	DefaultMaxRetries = 5
)

// Aliases that would be shadowed by the service's own routes.
var reservedAliases = map[string]bool{
	"api":     true,
	"health":  true,
	"healthz": true,
}

// Allocator binds a new mapping to a code that no other record holds.
// Uniqueness rests entirely on the store's atomic Create.
type Allocator struct {
	store      ports.MappingStore
	gen        ports.CodeGenerator
	codeLength int
	maxRetries int
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewAllocator(store ports.MappingStore, gen ports.CodeGenerator, codeLength, maxRetries int, log logrus.FieldLogger) *Allocator {
	if gen == nil {
		gen = codegen.Random{}
	}
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	if codeLength > codegen.MaxCodeLength {
		codeLength = codegen.MaxCodeLength
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Allocator{
		store:      store,
		gen:        gen,
		codeLength: codeLength,
		maxRetries: maxRetries,
		log:        log,
		now:        time.Now,
	}
}

// Allocate stores a mapping for originalURL under alias, or under a freshly
// generated code when alias is empty. originalURL must already be validated.
func (a *Allocator) Allocate(ctx context.Context, originalURL, alias, clientIP string) (*domain.Mapping, error) {
	if alias != "" {
		return a.allocateAlias(ctx, originalURL, alias, clientIP)
	}
	return a.allocateRandom(ctx, originalURL, clientIP)
}

func (a *Allocator) allocateAlias(ctx context.Context, originalURL, alias, clientIP string) (*domain.Mapping, error) {
	if !codegen.IsValidAlias(alias) {
		return nil, domain.ErrInvalidAlias
	}
	if reservedAliases[strings.ToLower(alias)] {
		return nil, domain.ErrAliasTaken
	}

	m := a.newMapping(alias, originalURL, clientIP)
	err := a.store.Create(ctx, m)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, domain.ErrAlreadyExists):
		return nil, domain.ErrAliasTaken
	default:
		return nil, storeError("create", alias, err)
	}
}

func (a *Allocator) allocateRandom(ctx context.Context, originalURL, clientIP string) (*domain.Mapping, error) {
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		m := a.newMapping(a.gen.Generate(a.codeLength), originalURL, clientIP)
		err := a.store.Create(ctx, m)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, storeError("create", m.ShortCode, err)
		}
		a.log.WithFields(logrus.Fields{
			"short_code": m.ShortCode,
			"attempt":    attempt,
		}).Debug("generated code collided, retrying")
	}

	a.log.WithField("attempts", a.maxRetries).Error("short code space exhausted")
	return nil, domain.ErrExhaustedRetries
}

func (a *Allocator) newMapping(code, originalURL, clientIP string) *domain.Mapping {
	return &domain.Mapping{
		ShortCode:   code,
		OriginalURL: originalURL,
		CreatedAt:   a.now().UTC().Truncate(time.Microsecond),
		IsActive:    true,
		CreatedByIP: clientIP,
	}
}

// storeError hides driver errors behind domain.ErrStoreUnavailable.
func storeError(op, code string, err error) error {
	return errors.Wrapf(domain.ErrStoreUnavailable, "%s %q: %v", op, code, err)
}
