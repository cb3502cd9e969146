// Package pgdb starts ephemeral Postgres instances for schema-file generation.
//
// When no live database is available, cornucopia spins up a throwaway
// container, applies the user's schema files, and runs inference against it.
package pgdb

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	containerImage = "postgres:18-alpine"
	dbName         = "cornucopia"
	dbUser         = "postgres"
	dbPassword     = "postgres"
)

// Container is an ephemeral Postgres instance.
type Container struct {
	container *postgres.PostgresContainer
	dsn       string
}

// Start launches a Postgres container and waits until it accepts connections.
// Callers must Terminate it when done.
func Start(ctx context.Context) (*Container, error) {
	container, err := postgres.Run(ctx, containerImage,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("getting connection string: %w", err)
	}

	return &Container{container: container, dsn: dsn + "sslmode=disable"}, nil
}

// DSN returns the connection string for the running container.
func (c *Container) DSN() string {
	return c.dsn
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	return c.container.Terminate(ctx)
}

// Apply executes each schema file against conn in order. Files may contain
// multiple statements; they run over the simple protocol.
func Apply(ctx context.Context, conn *pgx.Conn, paths []string) error {
	for _, path := range paths {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading schema file: %w", err)
		}
		if _, err := conn.PgConn().Exec(ctx, string(sql)).ReadAll(); err != nil {
			return fmt.Errorf("applying %s: %w", path, err)
		}
	}
	return nil
}
