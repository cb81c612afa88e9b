//go:build integration

// Package testdb starts a throwaway PostgreSQL for integration tests.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/marshallshelly/fenceorders/internal/migrations"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/pkg/migration"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartContainer runs PostgreSQL and returns its connection string. The
// container is terminated when the test ends.
func StartContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}
	return connStr
}

// Connect opens a pool against url and closes it when the test ends.
func Connect(t *testing.T, url string) *runtime.DB {
	t.Helper()
	db, err := runtime.ConnectWithURL(context.Background(), url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// Start runs PostgreSQL, applies the embedded migrations and registers the
// models.
func Start(t *testing.T) *runtime.DB {
	t.Helper()
	ctx := context.Background()

	db := Connect(t, StartContainer(t))

	all, err := migrations.All()
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	executor := migration.NewExecutor(db)
	if err := executor.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize migrations: %v", err)
	}
	if _, err := executor.ApplyAll(ctx, all); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	if err := models.RegisterAll(); err != nil {
		t.Fatalf("Failed to register models: %v", err)
	}
	return db
}
