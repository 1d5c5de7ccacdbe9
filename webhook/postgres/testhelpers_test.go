//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/* Test Helpers for PostgreSQL Integration Tests
 *
 * These spin up a real PostgreSQL container per test via testcontainers.
 *
 * References:
 * - https://golang.testcontainers.org/modules/postgres/
 * - https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

const (
	defaultDatabase = "testdb"
	defaultUser     = "testuser"
	defaultPassword = "testpass"
)

// PostgresContainer encapsulates the container and its connection
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

// SetupPostgresContainer creates and starts a real PostgreSQL container
func SetupPostgresContainer(t *testing.T, ctx context.Context) (*PostgresContainer, func()) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(defaultDatabase),
		postgres.WithUsername(defaultUser),
		postgres.WithPassword(defaultPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	err = db.PingContext(ctx)
	require.NoError(t, err)

	container := &PostgresContainer{
		Container: pgContainer,
		DB:        db,
		ConnStr:   connStr,
	}

	cleanup := func() {
		if db != nil {
			_ = db.Close()
		}
		if pgContainer != nil {
			_ = pgContainer.Terminate(ctx)
		}
	}

	return container, cleanup
}

// CreateTestRepository creates a repository with the schema in place
func CreateTestRepository(t *testing.T, ctx context.Context, connStr string) *Repository {
	t.Helper()

	repo, err := NewRepository(connStr)
	require.NoError(t, err)

	err = repo.CreateTables(ctx)
	require.NoError(t, err)

	return repo
}

// GenerateID is a helper to generate unique test IDs
func GenerateID(t *testing.T, index int) string {
	t.Helper()
	return fmt.Sprintf("test-record-%d-%d", index, time.Now().UnixNano())
}

// AssertLogStatus verifies the stored status of a webhook log
func AssertLogStatus(t *testing.T, ctx context.Context, db *sql.DB, id, expected string) {
	t.Helper()

	var status string
	err := db.QueryRowContext(ctx, "SELECT status FROM webhook_logs WHERE id = $1", id).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expected, status)
}

// CountItemsInState counts retry items in a given state
func CountItemsInState(t *testing.T, ctx context.Context, db *sql.DB, state string) int {
	t.Helper()

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM retry_items WHERE state = $1", state).Scan(&count)
	require.NoError(t, err)
	return count
}
