//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	kv        *KV
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := Open(DriverPostgres, connStr)
	s.Require().NoError(err)
	s.db = db

	kv, err := New(s.ctx, db)
	s.Require().NoError(err)
	s.kv = kv
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM local_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestSchemaIsIdempotent() {
	_, err := New(s.ctx, s.db)
	s.NoError(err)
}

func (s *PostgresIntegrationSuite) TestSetAndGet() {
	s.Require().NoError(s.kv.Set(s.ctx, "authToken", "tok"))

	value, ok, err := s.kv.Get(s.ctx, "authToken")
	s.NoError(err)
	s.True(ok)
	s.Equal("tok", value)
}

func (s *PostgresIntegrationSuite) TestUpsertReplacesValue() {
	s.Require().NoError(s.kv.Set(s.ctx, "authToken", "old"))
	s.Require().NoError(s.kv.Set(s.ctx, "authToken", "new"))

	var count int
	err := s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM local_state WHERE setting_key = $1", "authToken")
	s.NoError(err)
	s.Equal(1, count)

	value, _, err := s.kv.Get(s.ctx, "authToken")
	s.NoError(err)
	s.Equal("new", value)
}

func (s *PostgresIntegrationSuite) TestSetManyAndDelete() {
	s.Require().NoError(s.kv.SetMany(s.ctx, map[string]string{
		"authToken":   "tok",
		"authSavedAt": "2024-03-01T12:00:00Z",
	}))

	keys, err := storedKeys(s.ctx, s.kv)
	s.NoError(err)
	s.Equal([]string{"authSavedAt", "authToken"}, keys)

	s.Require().NoError(s.kv.Delete(s.ctx, "authToken", "authSavedAt"))

	keys, err = storedKeys(s.ctx, s.kv)
	s.NoError(err)
	s.Empty(keys)
}
