package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema script, e.g. 001_init.sql
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager applies the embedded schema scripts in version order
type MigrationManager struct {
	db    *sql.DB
	files fs.FS
}

// NewMigrationManager creates a manager over the embedded migration files
func NewMigrationManager(db *sql.DB) *MigrationManager {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return &MigrationManager{db: db, files: sub}
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Version returns the highest applied migration, 0 on a fresh catalog
func (m *MigrationManager) Version() (int, error) {
	var v sql.NullInt64
	if err := m.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// Load parses the embedded scripts. Files not named NNN_name.sql are skipped.
func (m *MigrationManager) Load() ([]Migration, error) {
	names, err := fs.Glob(m.files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	out := make([]Migration, 0, len(names))
	for _, file := range names {
		stem := strings.TrimSuffix(path.Base(file), ".sql")
		prefix, _, ok := strings.Cut(stem, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			log.Printf("[Database] Skipping migration with invalid name: %s", file)
			continue
		}
		body, err := fs.ReadFile(m.files, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		out = append(out, Migration{Version: version, Name: stem, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every script newer than the current version, each in its
// own transaction
func (m *MigrationManager) Migrate() error {
	if _, err := m.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	current, err := m.Version()
	if err != nil {
		return err
	}
	migrations, err := m.Load()
	if err != nil {
		return err
	}

	for _, mg := range migrations {
		if mg.Version <= current {
			continue
		}
		err := Transaction(m.db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(mg.SQL); err != nil {
				return fmt.Errorf("migration %s failed: %w", mg.Name, err)
			}
			_, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", mg.Version, mg.Name)
			return err
		})
		if err != nil {
			return err
		}
		log.Printf("[Database] Applied migration %s", mg.Name)
	}
	return nil
}
