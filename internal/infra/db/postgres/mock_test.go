//go:build !integration

package postgres

import (
	"context"
	"time"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	red "mymedaga-payments/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTargetRepo mocks the database repository that the store decorator wraps.
// Methods without a Func panic through the nil embedded interface.
type mockInnerTargetRepo struct {
	repository.TargetRepository

	FindStoreFunc         func(ctx context.Context, tx repository.Tx, storeID int64) (*model.Store, error)
	MarkStoreVerifiedFunc func(ctx context.Context, tx repository.Tx, storeID int64) error
	FeatureStoreFunc      func(ctx context.Context, tx repository.Tx, storeID int64) error
}

func (m *mockInnerTargetRepo) FindStore(ctx context.Context, tx repository.Tx, storeID int64) (*model.Store, error) {
	return m.FindStoreFunc(ctx, tx, storeID)
}
func (m *mockInnerTargetRepo) MarkStoreVerified(ctx context.Context, tx repository.Tx, storeID int64) error {
	return m.MarkStoreVerifiedFunc(ctx, tx, storeID)
}
func (m *mockInnerTargetRepo) FeatureStore(ctx context.Context, tx repository.Tx, storeID int64) error {
	return m.FeatureStoreFunc(ctx, tx, storeID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
