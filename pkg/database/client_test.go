package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient starts a disposable Postgres container, applies embedded
// migrations against it, and returns a ready Client.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := NewClient(ctx, connStr, 10, 10*time.Second)
	require.NoError(t, err)

	t.Cleanup(client.Close)

	return client
}

func TestDatabaseClientConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Pool.Ping(ctx))

	health, err := Health(ctx, client.Pool)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxConns, int32(0))
}

func TestMigrationsCreateCoreTables(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var projectCount int
	err := client.Pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = 'projects'`,
	).Scan(&projectCount)
	require.NoError(t, err)
	assert.Equal(t, 1, projectCount)

	var blockCount int
	err = client.Pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = 'blocks'`,
	).Scan(&blockCount)
	require.NoError(t, err)
	assert.Equal(t, 1, blockCount)
}
