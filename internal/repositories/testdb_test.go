//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/teacup/internal/database"
	"github.com/BradenHooton/teacup/internal/models"
)

var testDB *database.DB

// TestMain starts one Postgres container for the package and applies the embedded migrations
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, pool, err := setupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up test database: %v\n", err)
		os.Exit(1)
	}

	testDB = database.NewDB(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func setupTestDatabase(ctx context.Context) (testcontainers.Container, *pgxpool.Pool, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("teacup_visualization"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := database.MigrateDB(ctx, sqlDB, logger); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	// A second run must be a no-op
	if err := database.MigrateDB(ctx, sqlDB, logger); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("re-running migrations: %w", err)
	}

	return container, pool, nil
}

// cleanupTables truncates all mutable tables for test isolation
func cleanupTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), `
		TRUNCATE TABLE login_attempt_event, login_attempt_aggregate, recovery, verification,
			account_status, account_role, account CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Read-back queries used only by assertions

func storedPasswordHash(t *testing.T, accountID string) string {
	t.Helper()
	var hash string
	err := testDB.Pool.QueryRow(context.Background(),
		`SELECT password_hash FROM account WHERE id = $1`, accountID).Scan(&hash)
	if err != nil {
		t.Fatalf("failed to read password hash: %v", err)
	}
	return hash
}

// currentStatus returns the name of the latest status history row
func currentStatus(t *testing.T, accountID string) string {
	t.Helper()
	var name string
	err := testDB.Pool.QueryRow(context.Background(), `
		SELECT s.name FROM account_status a
		JOIN status s ON s.id = a.status_id
		WHERE a.account_id = $1
		ORDER BY a.id DESC
		LIMIT 1
	`, accountID).Scan(&name)
	if err != nil {
		t.Fatalf("failed to read current status: %v", err)
	}
	return name
}

// countRows counts the rows of an account-keyed audit table
func countRows(t *testing.T, table, accountID string) int {
	t.Helper()
	var n int
	err := testDB.Pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM `+pgx.Identifier{table}.Sanitize()+` WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count %s rows: %v", table, err)
	}
	return n
}

func getAggregate(t *testing.T, accountID string) (*models.LoginAttemptAggregate, error) {
	t.Helper()
	rows, err := testDB.Pool.Query(context.Background(),
		`SELECT id, account_id, unsuccessful FROM login_attempt_aggregate WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, err
	}
	agg, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.LoginAttemptAggregate])
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return agg, nil
}

// listEvents returns the account's attempt events oldest first
func listEvents(t *testing.T, accountID string) []models.LoginAttemptEvent {
	t.Helper()
	rows, err := testDB.Pool.Query(context.Background(), `
		SELECT e.id, e.aggregate_id, e.ip_address, e.successful, e.attempted_at
		FROM login_attempt_event e
		JOIN login_attempt_aggregate a ON a.id = e.aggregate_id
		WHERE a.account_id = $1
		ORDER BY e.id
	`, accountID)
	if err != nil {
		t.Fatalf("failed to list attempt events: %v", err)
	}
	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.LoginAttemptEvent])
	if err != nil {
		t.Fatalf("failed to scan attempt events: %v", err)
	}
	return events
}
