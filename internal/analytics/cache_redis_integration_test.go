//go:build integration

package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doctrack/internal/analytics"
	"doctrack/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *analytics.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = analytics.NewRedisCache(s.redis.Client.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndExpiry() {
	ctx := context.Background()
	_, err := s.cache.Get(ctx)
	s.ErrorIs(err, analytics.ErrCacheMiss)

	report := &analytics.Report{
		Labels:      []string{"BAC", "Accounting"},
		Values:      []float64{4, 2.5},
		OverallMean: 3.25,
		GeneratedAt: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.cache.Set(ctx, report, time.Second))

	got, err := s.cache.Get(ctx)
	s.Require().NoError(err)
	s.Equal(report.Labels, got.Labels)
	s.Equal(report.Values, got.Values)
	s.True(report.GeneratedAt.Equal(got.GeneratedAt))

	s.Eventually(func() bool {
		_, err := s.cache.Get(ctx)
		return err == analytics.ErrCacheMiss
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, &analytics.Report{}, time.Minute))
	s.Require().NoError(s.cache.Invalidate(ctx))
	_, err := s.cache.Get(ctx)
	s.ErrorIs(err, analytics.ErrCacheMiss)
}
