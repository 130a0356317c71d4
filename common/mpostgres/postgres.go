// Package mpostgres owns the primary/replica postgres connection used by the durable
// event store backend. It is a thin singleton wrapper around
// database/sql plus dbresolver, following the rest of the common/m* connection hubs.
package mpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"

	// File system migration source, registered for migrate.NewWithDatabaseInstance.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/harborgrid-justin/cadcore/common/mlog"
)

// PostgresConnection is a hub which deals with postgres connections.
type PostgresConnection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	PrimaryDBName           string
	MigrationsPath          string
	ConnectionDB            *dbresolver.DB
	Connected               bool
	Logger                  mlog.Logger
}

// Connect opens the primary and (optional) replica connections, runs pending migrations
// against the primary, and keeps a singleton dbresolver.DB for subsequent calls.
func (pc *PostgresConnection) Connect(ctx context.Context) error {
	pc.Logger.Info("Connecting to primary and replica databases...")

	dbPrimary, err := sql.Open("pgx", pc.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("opening primary connection: %w", err)
	}

	opts := []dbresolver.OptionFunc{dbresolver.WithPrimaryDBs(dbPrimary), dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB)}

	if pc.ConnectionStringReplica != "" {
		dbReplica, err := sql.Open("pgx", pc.ConnectionStringReplica)
		if err != nil {
			return fmt.Errorf("opening replica connection: %w", err)
		}

		opts = append(opts, dbresolver.WithReplicaDBs(dbReplica))
	}

	connectionDB := dbresolver.New(opts...)

	if pc.MigrationsPath != "" {
		if err := pc.migrate(dbPrimary); err != nil {
			return err
		}
	}

	if err := connectionDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}

	pc.Connected = true
	pc.ConnectionDB = &connectionDB

	pc.Logger.Info("Connected to postgres")

	return nil
}

func (pc *PostgresConnection) migrate(dbPrimary *sql.DB) error {
	migrationsPath, err := filepath.Abs(pc.MigrationsPath)
	if err != nil {
		return fmt.Errorf("resolving migrations path: %w", err)
	}

	primaryURL, err := url.Parse(filepath.ToSlash(migrationsPath))
	if err != nil {
		return fmt.Errorf("parsing migrations path: %w", err)
	}

	primaryURL.Scheme = "file"

	driver, err := postgres.WithInstance(dbPrimary, &postgres.Config{
		MultiStatementEnabled: true,
		DatabaseName:          pc.PrimaryDBName,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("building migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(primaryURL.String(), pc.PrimaryDBName, driver)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// GetDB returns the pooled connection, initializing it on first use.
func (pc *PostgresConnection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if pc.ConnectionDB == nil {
		if err := pc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return *pc.ConnectionDB, nil
}
