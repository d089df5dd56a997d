// Package migrations embeds the goose SQL migrations for every supported
// database dialect and applies them.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql
var Postgres embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Source returns the embedded migrations and their directory for a driver.
func Source(driver string) (fs.FS, string, error) {
	switch driver {
	case dbx.DriverPostgres, "postgres":
		return Postgres, "postgres", nil
	case dbx.DriverSQLite, "sqlite3":
		return SQLite, "sqlite", nil
	default:
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Up applies all pending migrations for driver to db.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	fsys, dir, err := Source(driver)
	if err != nil {
		return err
	}
	dialect, err := dbx.GooseDialect(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
