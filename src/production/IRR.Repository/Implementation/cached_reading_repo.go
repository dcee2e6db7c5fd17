package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	interfaces "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Repository/Interfaces"
)

// ErrCacheMiss is returned by a ListCache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ListCache stores the serialized reading list. Incr must be atomic and
// treat an absent key as zero.
type ListCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisListCache is a ListCache backed by Redis.
type RedisListCache struct {
	rdb *redis.Client
}

func NewRedisListCache(rdb *redis.Client) *RedisListCache {
	return &RedisListCache{rdb: rdb}
}

// NewRedisConnection dials Redis and verifies it answers a PING.
func NewRedisConnection(cfg *config.CacheConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func (c *RedisListCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisListCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisListCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// CachedReadingRepository serves FindAll from a ListCache. The list is stored
// under a key carrying a version counter that every write bumps, so a list
// fetched before a write can only land under a version nobody reads again.
// Cache failures never fail a request.
type CachedReadingRepository struct {
	interfaces.ReadingRepository
	cache  ListCache
	key    string
	ttl    time.Duration
	logger *logger.Logger
}

func NewCachedReadingRepository(inner interfaces.ReadingRepository, cache ListCache, key string, ttl time.Duration, log *logger.Logger) *CachedReadingRepository {
	return &CachedReadingRepository{
		ReadingRepository: inner,
		cache:             cache,
		key:               key,
		ttl:               ttl,
		logger:            log.WithComponent("reading_cache"),
	}
}

func (r *CachedReadingRepository) FindAll(ctx context.Context) ([]irrmodels.Reading, error) {
	version, err := r.version(ctx)
	if err != nil {
		r.logger.WarnWithError(err, "Reading cache version lookup failed")
		return r.ReadingRepository.FindAll(ctx)
	}
	listKey := r.listKey(version)

	raw, err := r.cache.Get(ctx, listKey)
	if err == nil {
		var readings []irrmodels.Reading
		if jsonErr := json.Unmarshal(raw, &readings); jsonErr == nil && readings != nil {
			return readings, nil
		}
		r.logger.Warn().Str("key", listKey).Msg("Discarding undecodable cached reading list")
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.WarnWithError(err, "Reading cache lookup failed")
	}

	readings, err := r.ReadingRepository.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(readings); err == nil {
		if err := r.cache.Set(ctx, listKey, raw, r.ttl); err != nil {
			r.logger.WarnWithError(err, "Reading cache store failed")
		}
	}
	return readings, nil
}

func (r *CachedReadingRepository) Create(ctx context.Context, in irrmodels.ReadingInput) (*irrmodels.Reading, error) {
	rd, err := r.ReadingRepository.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return rd, nil
}

func (r *CachedReadingRepository) DeleteByID(ctx context.Context, id string) (*irrmodels.Reading, error) {
	rd, err := r.ReadingRepository.DeleteByID(ctx, id)
	if err != nil || rd == nil {
		return rd, err
	}
	r.invalidate(ctx)
	return rd, nil
}

func (r *CachedReadingRepository) versionKey() string {
	return r.key + ":version"
}

func (r *CachedReadingRepository) listKey(version int64) string {
	return r.key + ":v" + strconv.FormatInt(version, 10)
}

// version reads the current list version; an absent counter is version 0.
func (r *CachedReadingRepository) version(ctx context.Context) (int64, error) {
	raw, err := r.cache.Get(ctx, r.versionKey())
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (r *CachedReadingRepository) invalidate(ctx context.Context) {
	if _, err := r.cache.Incr(ctx, r.versionKey()); err != nil {
		r.logger.WarnWithError(err, "Reading cache invalidation failed")
	}
}
