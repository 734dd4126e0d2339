package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AlibekovAA/panel-auth/internal/common/constants"
)

// OpenSQLite opens path with a single connection so writers are serialized.
func OpenSQLite(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprintf("%d", constants.SQLiteBusyTimeout.Milliseconds()))
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return conn, nil
}
