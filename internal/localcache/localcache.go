// Package localcache is a small SQLite lookaside store: resolved Drive
// month-folder IDs and a registry of temp files for the cleanup loop.
//
// The database is ephemeral. Everything in it can be re-derived from Drive,
// so deleting the file is always safe; entries are pruned on age by the
// housekeeping loop.
package localcache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache wraps the SQLite database.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS month_folders (
			user_id    TEXT NOT NULL,
			year_month TEXT NOT NULL,
			folder_id  TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, year_month)
		);

		CREATE TABLE IF NOT EXISTS temp_files (
			path       TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Folder returns the cached folder ID for a user's month.
// Implements drive.FolderCache.
func (c *Cache) Folder(userID, yearMonth string) (string, bool) {
	var id string
	err := c.db.QueryRow(
		`SELECT folder_id FROM month_folders WHERE user_id = ? AND year_month = ?`,
		userID, yearMonth).Scan(&id)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("folder cache read failed", "error", err)
		}
		return "", false
	}
	return id, true
}

// PutFolder stores a resolved folder ID. Failures are logged and ignored; the
// cache is advisory.
func (c *Cache) PutFolder(userID, yearMonth, folderID string) {
	_, err := c.db.Exec(
		`INSERT INTO month_folders (user_id, year_month, folder_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, year_month) DO UPDATE SET folder_id = excluded.folder_id, created_at = excluded.created_at`,
		userID, yearMonth, folderID, time.Now().Unix())
	if err != nil {
		slog.Warn("folder cache write failed", "error", err)
	}
}

// PruneFolders removes cached folder IDs older than maxAge and returns how
// many were removed.
func (c *Cache) PruneFolders(maxAge time.Duration) (int, error) {
	res, err := c.db.Exec(`DELETE FROM month_folders WHERE created_at < ?`,
		time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning folder cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RegisterTempFile records a temp file for later cleanup.
func (c *Cache) RegisterTempFile(path string) error {
	_, err := c.db.Exec(
		`INSERT INTO temp_files (path, created_at) VALUES (?, ?)
		 ON CONFLICT (path) DO UPDATE SET created_at = excluded.created_at`,
		path, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("registering temp file: %w", err)
	}
	return nil
}

// StaleTempFiles returns registered temp files older than maxAge.
func (c *Cache) StaleTempFiles(maxAge time.Duration) ([]string, error) {
	rows, err := c.db.Query(`SELECT path FROM temp_files WHERE created_at < ?`,
		time.Now().Add(-maxAge).Unix())
	if err != nil {
		return nil, fmt.Errorf("listing stale temp files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ForgetTempFile drops a temp file from the registry.
func (c *Cache) ForgetTempFile(path string) error {
	_, err := c.db.Exec(`DELETE FROM temp_files WHERE path = ?`, path)
	return err
}
