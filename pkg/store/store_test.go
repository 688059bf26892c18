package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nextlevelbuilder/acontext/pkg/database"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// newTestPool starts a disposable Postgres container with migrations
// applied and returns the pool underneath it; seedSession adds the
// project/space/session triple every store test builds on.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
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

	client, err := database.NewClient(ctx, connStr, 10, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client.Pool
}

// seedSession creates a project, space, and session, returning the
// ids that task/block/message tests attach rows to.
func seedSession(t *testing.T, pool *pgxpool.Pool) (projectID, spaceID, sessionID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	projects := store.NewProjectStore(pool)
	p, err := projects.CreateProject(ctx, "acme")
	require.NoError(t, err)

	spaces := store.NewSpaceStore(pool)
	sp, err := spaces.CreateSpace(ctx, p.ID, "acme-space")
	require.NoError(t, err)

	sessions := store.NewSessionStore(pool)
	sess, err := sessions.CreateSession(ctx, p.ID, nil)
	require.NoError(t, err)

	return p.ID, sp.ID, sess.ID
}
