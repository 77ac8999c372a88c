//go:build integration

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	client    *redis.Client
	kv        *KV
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	endpoint, err := container.Endpoint(s.ctx, "")
	s.Require().NoError(err)

	client, err := Connect(s.ctx, Config{Addr: endpoint})
	s.Require().NoError(err)
	s.client = client
	s.kv = New(client, "test:")
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(s.ctx).Err())
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestGetMissing() {
	_, ok, err := s.kv.Get(s.ctx, "authToken")
	s.NoError(err)
	s.False(ok)
}

func (s *RedisIntegrationSuite) TestSetManyUsesPrefix() {
	s.Require().NoError(s.kv.SetMany(s.ctx, map[string]string{"authToken": "tok", "deviceId": "abcdefghijkl"}))

	raw, err := s.client.Get(s.ctx, "test:authToken").Result()
	s.NoError(err)
	s.Equal("tok", raw)

	value, ok, err := s.kv.Get(s.ctx, "deviceId")
	s.NoError(err)
	s.True(ok)
	s.Equal("abcdefghijkl", value)
}

func (s *RedisIntegrationSuite) TestDelete() {
	s.Require().NoError(s.kv.SetMany(s.ctx, map[string]string{"authToken": "tok", "authSavedAt": "now"}))
	s.Require().NoError(s.kv.Delete(s.ctx, "authToken", "authSavedAt"))

	_, ok, err := s.kv.Get(s.ctx, "authToken")
	s.NoError(err)
	s.False(ok)
}
