package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// goose keeps dialect and filesystem in package globals.
var gooseMu sync.Mutex

type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

func migrationsDir(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres:
		return "migrations/postgres", nil
	case DialectSQLite:
		return "migrations/sqlite", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}

func prepareGoose(log *logger.Logger, dialect string) (string, error) {
	dir, err := migrationsDir(dialect)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(migrationsFS)
	if log != nil {
		goose.SetLogger(gooseLogger{log: log})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return dir, nil
}

func Migrate(ctx context.Context, log *logger.Logger, conn *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepareGoose(log, dialect)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, conn, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func MigrationStatus(ctx context.Context, log *logger.Logger, conn *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := prepareGoose(log, dialect)
	if err != nil {
		return err
	}
	return goose.StatusContext(ctx, conn, dir)
}

// OpenPgSQL returns a database/sql handle over the pool's connection config.
func OpenPgSQL(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDB(*pool.Config().ConnConfig)
}
