package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/def-order-backend/internal/orders"
)

type RedisIntegrationSuite struct {
	suite.Suite
	container testcontainers.Container
	rdb       *redis.Client
}

func TestRedisIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) SetupSuite() {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = c

	addr, err := c.Endpoint(ctx, "")
	s.Require().NoError(err)
	s.rdb = New(addr)
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.Require().NoError(s.rdb.FlushAll(context.Background()).Err())
}

func (s *RedisIntegrationSuite) TestStatusCacheRoundTrip() {
	ctx := context.Background()
	c := &StatusCache{Client: s.rdb, TTL: time.Minute}

	_, ok, err := c.Status(ctx, "o1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(c.SetStatus(ctx, "o1", orders.StatusShipped))
	st, ok, err := c.Status(ctx, "o1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(orders.StatusShipped, st)

	raw, err := s.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, "o1")).Result()
	s.Require().NoError(err)
	s.JSONEq(`{"status":"shipped"}`, raw)
	ttl, err := s.rdb.TTL(ctx, fmt.Sprintf(KeyOrderStatus, "o1")).Result()
	s.Require().NoError(err)
	s.InDelta(time.Minute.Seconds(), ttl.Seconds(), 2)
}

func (s *RedisIntegrationSuite) TestDedup() {
	ctx := context.Background()
	d := &Dedup{Client: s.rdb}
	key := fmt.Sprintf(KeyDedup, "push", "event-1")

	seen, err := d.Seen(ctx, key)
	s.Require().NoError(err)
	s.False(seen)

	first, err := d.Claim(ctx, key, time.Hour)
	s.Require().NoError(err)
	s.True(first)
	first, err = d.Claim(ctx, key, time.Hour)
	s.Require().NoError(err)
	s.False(first)

	s.Require().NoError(d.Mark(ctx, fmt.Sprintf(KeyDedup, "inventory", "o1"), time.Hour))
	seen, err = d.Seen(ctx, fmt.Sprintf(KeyDedup, "inventory", "o1"))
	s.Require().NoError(err)
	s.True(seen)
}
