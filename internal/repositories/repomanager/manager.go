// Package repomanager vends repository implementations for a database
// dialect and opens the database the relay runs against.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/filex"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/accounts"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/errorlog"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/ledger"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/metadata"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Ledger(db dbx.DBTX) ledger.Repository
	ErrorLog(db dbx.DBTX) errorlog.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// ForDriver returns the manager matching a database/sql driver name.
func ForDriver(driver string) (RepositoryManager, error) {
	switch driver {
	case dbx.DriverPostgres, "postgres":
		return NewPostgresRepositoryManager(), nil
	case dbx.DriverSQLite, "sqlite3":
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	m, err := ForDriver(driver)
	if err != nil {
		return nil, nil, err
	}

	sqlDriver := driver
	if sqlDriver == "postgres" {
		sqlDriver = dbx.DriverPostgres
	} else if sqlDriver == "sqlite3" {
		sqlDriver = dbx.DriverSQLite
	}

	if sqlDriver == dbx.DriverSQLite {
		if path := filex.SQLitePath(dsn); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, fmt.Errorf("open database: %w", err)
			}
		}
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if sqlDriver == dbx.DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, m, nil
}
