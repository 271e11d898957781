package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var EmbeddedMigrationsFS embed.FS

// MigrationType represents the type of database that migrations apply to
type MigrationType string

const (
	MigrationTypeMain MigrationType = "main"
)

// MigrationFile represents a migration file with its metadata
type MigrationFile struct {
	FileName    string
	Version     int
	Type        MigrationType
	Description string
}

// Migrate applies all pending embedded migrations to the main database
func (db *Database) Migrate() error {
	if err := ensureMigrationsTable(db.mainDB); err != nil {
		return err
	}

	migrations, err := getEmbeddedMigrationFiles(EmbeddedMigrationsFS)
	if err != nil {
		return err
	}

	applied, err := getAppliedMigrations(db.mainDB)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Type != MigrationTypeMain || applied[migration.FileName] {
			continue
		}
		if err := applyMigration(db.mainDB, EmbeddedMigrationsFS, migration); err != nil {
			zap.L().Error("[DB]: failed to apply migration", zap.String("file", migration.FileName), zap.Error(err))
			return err
		}
		zap.L().Info("[DB]: applied migration", zap.String("file", migration.FileName))
	}
	return nil
}

// parseMigrationFileName parses a migration file name to extract metadata
func parseMigrationFileName(fileName string) (*MigrationFile, error) {
	if !strings.HasSuffix(fileName, ".sql") {
		return nil, fmt.Errorf("migration file must have .sql extension: %s", fileName)
	}
	name := strings.TrimSuffix(fileName, ".sql")
	parts := strings.SplitN(name, "_", 3)

	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid migration file name format: %s (expected format: 0001_type_description.sql)", fileName)
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in migration file: %s", fileName)
	}

	if MigrationType(parts[1]) != MigrationTypeMain {
		return nil, fmt.Errorf("invalid database migration type %q in %s", parts[1], fileName)
	}

	return &MigrationFile{
		FileName:    fileName,
		Version:     version,
		Type:        MigrationTypeMain,
		Description: parts[2],
	}, nil
}

// getEmbeddedMigrationFiles lists the migrations in fsys ordered by version
func getEmbeddedMigrationFiles(fsys fs.FS) ([]*MigrationFile, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}

	var migrations []*MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migration, err := parseMigrationFileName(e.Name())
		if err != nil {
			zap.L().Warn("[DB]: skipping invalid migration file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		db_type TEXT NOT NULL DEFAULT '',
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// getAppliedMigrations returns a set of applied migration filenames
func getAppliedMigrations(db *sql.DB) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := db.Query(`SELECT filename FROM schema_migrations WHERE db_type = ? OR db_type = ''`, string(MigrationTypeMain))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fname string
		if err := rows.Scan(&fname); err != nil {
			return nil, fmt.Errorf("failed to scan migration filename: %w", err)
		}
		applied[fname] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return applied, nil
}

// applyMigration runs one migration and records it, atomically
func applyMigration(db *sql.DB, fsys fs.FS, migration *MigrationFile) error {
	content, err := fs.ReadFile(fsys, "migrations/"+migration.FileName)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", migration.FileName, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", migration.FileName, err)
	}
	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", migration.FileName, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename, db_type) VALUES (?, ?)`, migration.FileName, string(migration.Type)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", migration.FileName, err)
	}
	return tx.Commit()
}
