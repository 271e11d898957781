// Package database provides the SQLite board store for pugboard
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/models"
)

// Database wraps the board's SQLite connection pool
type Database struct {
	mainDB   *sql.DB
	dbconfig *DBConfig
}

// DBConfig represents database configuration
type DBConfig struct {
	// Path of the database file
	Path string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB, negative values are KiB as in PRAGMA cache_size

	BusyTimeout time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Path:            "./data/board.db",
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 0, // Unlimited for SQLite - connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -16384, // 16MB cache
		BusyTimeout:     30 * time.Second,
	}
}

// OpenDatabase opens (creating if needed) the board database and applies migrations.
// Any failure to reach the store is reported as a *models.StoreConnectionError.
func OpenDatabase(dbconfig *DBConfig) (*Database, error) {
	if dbconfig == nil {
		dbconfig = DefaultDBConfig()
	}
	db := &Database{dbconfig: dbconfig}

	if err := db.initMainDB(); err != nil {
		return nil, &models.StoreConnectionError{Driver: "sqlite3", Err: err}
	}

	if err := db.Migrate(); err != nil {
		db.mainDB.Close()
		return nil, &models.StoreConnectionError{Driver: "sqlite3", Err: fmt.Errorf("failed to run database migrations: %w", err)}
	}

	zap.L().Info("[DB]: board database ready", zap.String("path", dbconfig.Path))
	return db, nil
}

// dsn builds the go-sqlite3 connection string. Pragmas go through the DSN so
// that every pooled connection gets them, not only the first one.
func (c *DBConfig) dsn() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	params.Set("_synchronous", c.SyncMode)
	params.Set("_cache_size", strconv.Itoa(c.CacheSize))
	if c.WALMode {
		params.Set("_journal_mode", "WAL")
	}
	return "file:" + c.Path + "?" + params.Encode()
}

func (db *Database) initMainDB() error {
	if err := createDirIfNotExists(filepath.Dir(db.dbconfig.Path)); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	mainDB, err := sql.Open("sqlite3", db.dbconfig.dsn())
	if err != nil {
		return fmt.Errorf("failed to open main database: %w", err)
	}

	// Configure connection pool
	mainDB.SetMaxOpenConns(db.dbconfig.MaxOpenConns)
	mainDB.SetMaxIdleConns(db.dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mainDB.PingContext(ctx); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to ping main database: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to ping main database: %w", err)
	}

	db.mainDB = mainDB
	return nil
}

// GetMainDB returns the main database connection for direct access
// This should only be used by specialized tools and tests
func (db *Database) GetMainDB() *sql.DB {
	return db.mainDB
}

// Close closes the database
func (db *Database) Close() error {
	if db.mainDB == nil {
		return nil
	}
	if _, err := db.mainDB.Exec("PRAGMA optimize"); err != nil {
		zap.L().Warn("[DB]: PRAGMA optimize failed", zap.Error(err))
	}
	return db.mainDB.Close()
}
