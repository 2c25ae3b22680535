// Package repository selects the MappingStore implementation at startup.
package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/cache"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	redisrepo "github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	BackendMemory   = "memory"
	BackendSQL      = "sql" // dialect detected from DATABASE_URL
	BackendSQLite   = "sqlite"
	BackendLibSQL   = "libsql"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	connectBackoffBase = 500 * time.Millisecond
	minAttemptTimeout  = 250 * time.Millisecond
)

// Open builds the store named by cfg.StoreBackend. Networked backends are
// retried with exponential backoff for up to cfg.ConnectTimeout.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ports.MappingStore, error) {
	log = log.WithField("backend", cfg.StoreBackend)

	var (
		store ports.MappingStore
		err   error
	)
	switch cfg.StoreBackend {
	case BackendMemory:
		store = memory.NewMemoryRepository()
	case BackendSQL, BackendSQLite, BackendLibSQL, BackendPostgres:
		dialect := sqlstore.Dialect(cfg.StoreBackend)
		if cfg.StoreBackend == BackendSQL {
			dialect = sqlstore.DetectDialect(cfg.DatabaseURL)
		}
		store, err = connect(ctx, cfg, log, dialect != sqlstore.DialectSQLite, func(ctx context.Context) (ports.MappingStore, error) {
			return sqlstore.NewSQLRepository(ctx, dialect, cfg.DatabaseURL, log)
		})
	case BackendRedis:
		store, err = connect(ctx, cfg, log, true, func(ctx context.Context) (ports.MappingStore, error) {
			return redisrepo.NewRedisRepository(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		})
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		log.WithFields(logrus.Fields{
			"size": cfg.CacheSize,
			"ttl":  cfg.CacheTTL,
		}).Info("read cache enabled")
		store = cache.NewCachedRepository(store, cfg.CacheSize, cfg.CacheTTL)
	}

	log.Info("store ready")
	return store, nil
}

func connect(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, networked bool, open func(context.Context) (ports.MappingStore, error)) (ports.MappingStore, error) {
	if !networked {
		return open(ctx)
	}

	var store ports.MappingStore
	backoff := retry.WithMaxDuration(cfg.ConnectTimeout, retry.NewExponential(connectBackoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, attemptTimeout(cfg.ConnectTimeout))
		defer cancel()

		s, err := open(ctx)
		if err != nil {
			log.WithError(err).Warn("store not reachable, retrying")
			return retry.RetryableError(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to store")
	}
	return store, nil
}

// attemptTimeout leaves room for several attempts within the total budget.
func attemptTimeout(total time.Duration) time.Duration {
	if d := total / 4; d > minAttemptTimeout {
		return d
	}
	return minAttemptTimeout
}
