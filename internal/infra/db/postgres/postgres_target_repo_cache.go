package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/metrics"
	red "mymedaga-payments/internal/infra/redis"
)

var _ repository.TargetRepository = (*storeCacheDecorator)(nil)

// storeCacheDecorator caches store rows for the hot read paths (method
// listing, initiation). Reads inside a transaction always go to Postgres so
// row locks are honored.
type storeCacheDecorator struct {
	repository.TargetRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewStoreCacheDecorator(inner repository.TargetRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TargetRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "StoreCache").Logger()
	return &storeCacheDecorator{TargetRepository: inner, cache: cache, ttl: ttl, log: &l}
}

func storeKey(id int64) string { return fmt.Sprintf("store:%d", id) }

func (d *storeCacheDecorator) FindStore(ctx context.Context, tx repository.Tx, storeID int64) (*model.Store, error) {
	if tx != nil {
		return d.TargetRepository.FindStore(ctx, tx, storeID)
	}
	key := storeKey(storeID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var s model.Store
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("store", "hit")
			return &s, nil
		}
	case !errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("store", "error")
		d.log.Warn().Err(err).Msg("store cache read failed")
	}

	metrics.IncCacheRequest("store", "miss")
	s, err := d.TargetRepository.FindStore(ctx, tx, storeID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("store cache write failed")
		}
	}
	return s, nil
}

// Writes invalidate before delegating; a stale read right after commit is
// bounded by the TTL.
func (d *storeCacheDecorator) MarkStoreVerified(ctx context.Context, tx repository.Tx, storeID int64) error {
	d.invalidate(ctx, storeID)
	return d.TargetRepository.MarkStoreVerified(ctx, tx, storeID)
}

func (d *storeCacheDecorator) FeatureStore(ctx context.Context, tx repository.Tx, storeID int64) error {
	d.invalidate(ctx, storeID)
	return d.TargetRepository.FeatureStore(ctx, tx, storeID)
}

func (d *storeCacheDecorator) invalidate(ctx context.Context, storeID int64) {
	if err := d.cache.Del(ctx, storeKey(storeID)); err != nil {
		d.log.Warn().Err(err).Int64("store_id", storeID).Msg("store cache invalidation failed")
	}
}
