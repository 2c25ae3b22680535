// Package redis stores each mapping as a Redis hash. Conditional writes run
// as Lua scripts so every check-and-write is a single atomic step.
package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const DefaultKeyPrefix = "shortlink:"

const (
	fieldOriginalURL = "original_url"
	fieldCreatedAt   = "created_at"
	fieldClickCount  = "click_count"
	fieldIsActive    = "is_active"
	fieldCreatedByIP = "created_by_ip"
	fieldExpiresAt   = "expires_at"
)

var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

	incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'click_count', 1)
`)

	deactivateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'is_active', '0')
return 1
`)
)

type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository connects to redisURL, which may be a redis:// URL or a
// plain host:port.
func NewRedisRepository(ctx context.Context, redisURL, prefix string) (*RedisRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	// Connection retries belong to the caller's backoff, not the client's.
	opt.MaxRetries = -1

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &RedisRepository{client: client, prefix: prefix}, nil
}

func (r *RedisRepository) key(code string) string {
	return r.prefix + "url:" + code
}

func (r *RedisRepository) Exists(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(code)).Result()
	if err != nil {
		return false, errors.Wrap(err, "check mapping")
	}
	return n > 0, nil
}

func (r *RedisRepository) Create(ctx context.Context, m *domain.Mapping) error {
	args := []any{
		fieldOriginalURL, m.OriginalURL,
		fieldCreatedAt, m.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldClickCount, m.ClickCount,
		fieldIsActive, formatBool(m.IsActive),
	}
	if m.CreatedByIP != "" {
		args = append(args, fieldCreatedByIP, m.CreatedByIP)
	}
	if m.ExpiresAt != nil {
		args = append(args, fieldExpiresAt, m.ExpiresAt.UTC().Format(time.RFC3339Nano))
	}

	created, err := createScript.Run(ctx, r.client, []string{r.key(m.ShortCode)}, args...).Int()
	if err != nil {
		return errors.Wrap(err, "insert mapping")
	}
	if created == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, code string) (*domain.Mapping, error) {
	fields, err := r.client.HGetAll(ctx, r.key(code)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get mapping")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseMapping(code, fields)
}

func (r *RedisRepository) State(ctx context.Context, code string) (*domain.MappingState, error) {
	vals, err := r.client.HMGet(ctx, r.key(code), fieldCreatedAt, fieldClickCount, fieldIsActive).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get mapping state")
	}
	// created_at is always written, so its absence means no record.
	if vals[0] == nil {
		return nil, nil
	}

	state := &domain.MappingState{IsActive: vals[2] == "1"}
	if v, ok := vals[1].(string); ok && v != "" {
		if state.ClickCount, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "parse click_count of %q", code)
		}
	}
	return state, nil
}

func (r *RedisRepository) IncrementClicks(ctx context.Context, code string) error {
	n, err := incrementScript.Run(ctx, r.client, []string{r.key(code)}).Int64()
	if err != nil {
		return errors.Wrap(err, "increment clicks")
	}
	if n < 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisRepository) Deactivate(ctx context.Context, code string) error {
	n, err := deactivateScript.Run(ctx, r.client, []string{r.key(code)}).Int()
	if err != nil {
		return errors.Wrap(err, "deactivate mapping")
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisRepository) Dump(ctx context.Context) ([]domain.Mapping, error) {
	var mappings []domain.Mapping
	keyPrefix := r.key("")

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		code := strings.TrimPrefix(iter.Val(), keyPrefix)
		m, err := r.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if m != nil {
			mappings = append(mappings, *m)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan mappings")
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].CreatedAt.Before(mappings[j].CreatedAt)
	})
	return mappings, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func parseMapping(code string, fields map[string]string) (*domain.Mapping, error) {
	m := &domain.Mapping{
		ShortCode:   code,
		OriginalURL: fields[fieldOriginalURL],
		IsActive:    fields[fieldIsActive] == "1",
		CreatedByIP: fields[fieldCreatedByIP],
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, errors.Wrapf(err, "parse created_at of %q", code)
	}
	m.CreatedAt = createdAt

	if v := fields[fieldClickCount]; v != "" {
		if m.ClickCount, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "parse click_count of %q", code)
		}
	}
	if v := fields[fieldExpiresAt]; v != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse expires_at of %q", code)
		}
		m.ExpiresAt = &expiresAt
	}
	return m, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Ensure interface compliance
var _ ports.MappingStore = (*RedisRepository)(nil)
