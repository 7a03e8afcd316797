package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/impact-assessment-api/pkg/errors"
)

type stubCacheRepo struct {
	store  map[string][]byte
	getErr error
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, repo.store)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NoError(t, nilSvc.Invalidate(context.Background(), "*"))
}

func TestCacheServiceRoundTrip(t *testing.T) {
	svc := NewCacheService(&stubCacheRepo{}, NewMetricsService(), 0, nil, true)

	require.NoError(t, svc.Set(context.Background(), "k", map[string]int{"a": 1}, 0))
	var out map[string]int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"a": 1}, out)

	require.NoError(t, svc.Invalidate(context.Background(), "*"))
	hit, err = svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceGetErrorIsReported(t *testing.T) {
	svc := NewCacheService(&stubCacheRepo{getErr: assert.AnError}, nil, time.Minute, zap.NewNop(), true)

	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMakeCacheKey(t *testing.T) {
	assert.Equal(t, "impact:statistics:pursat:-:a|b", makeCacheKey("impact:statistics", "pursat", "", "a:b"))
}
