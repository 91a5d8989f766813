// Package store persists named specifications and the violations
// observed against them in a sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := GetSchema()

	lines := strings.Split(schema, "\n")
	var cleanLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "--") && trimmed != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	cleanSchema := strings.Join(cleanLines, "\n")

	if _, err := s.db.Exec(cleanSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, GetSchemaVersion())
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutSpec inserts or replaces the named specification and returns its
// row id. The created timestamp survives replacement. The id comes
// from RETURNING: last_insert_rowid is not refreshed by the update arm
// of the upsert, so it would report an unrelated row.
func (s *Store) PutSpec(spec *StoredSpec) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRow(`
		INSERT INTO specs (name, source, description)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, spec.Name, spec.Source, spec.Description).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("put spec: %w", err)
	}

	return id, nil
}

// GetSpec returns the named specification, or nil when it does not
// exist.
func (s *Store) GetSpec(name string) (*StoredSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec := &StoredSpec{}
	var description sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := s.db.QueryRow(`
		SELECT id, name, source, description, created_at, updated_at
		FROM specs WHERE name = ?
	`, name).Scan(
		&spec.ID, &spec.Name, &spec.Source, &description, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get spec: %w", err)
	}

	if description.Valid {
		spec.Description = description.String
	}
	if createdAt.Valid {
		spec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		spec.UpdatedAt = updatedAt.Time
	}

	return spec, nil
}

// ListSpecs returns every stored specification in name order.
func (s *Store) ListSpecs() ([]*StoredSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, source, description, created_at, updated_at
		FROM specs ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}
	defer rows.Close()

	var specs []*StoredSpec

	for rows.Next() {
		spec := &StoredSpec{}
		var description sql.NullString
		var createdAt, updatedAt sql.NullTime

		err := rows.Scan(
			&spec.ID, &spec.Name, &spec.Source, &description, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan spec: %w", err)
		}

		if description.Valid {
			spec.Description = description.String
		}
		if createdAt.Valid {
			spec.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			spec.UpdatedAt = updatedAt.Time
		}

		specs = append(specs, spec)
	}

	return specs, rows.Err()
}

// DeleteSpec removes the named specification and reports whether it
// existed.
func (s *Store) DeleteSpec(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM specs WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("delete spec: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RecordViolation appends one observed check failure to the log.
func (s *Store) RecordViolation(v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO violations (spec_name, path, slot, message)
		VALUES (?, ?, ?, ?)
	`, v.SpecName, v.Path, v.Slot, v.Message)

	if err != nil {
		return fmt.Errorf("record violation: %w", err)
	}

	return nil
}

// RecentViolations returns the newest violations for a specification,
// or across all specifications when name is empty.
func (s *Store) RecentViolations(specName string, limit int) ([]*Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, spec_name, path, slot, message, observed_at
		FROM violations WHERE (? = '' OR spec_name = ?)
		ORDER BY id DESC LIMIT ?
	`
	rows, err := s.db.Query(query, specName, specName, limit)
	if err != nil {
		return nil, fmt.Errorf("recent violations: %w", err)
	}
	defer rows.Close()

	var violations []*Violation

	for rows.Next() {
		v := &Violation{}
		var path, slot sql.NullString
		var observedAt sql.NullTime

		err := rows.Scan(&v.ID, &v.SpecName, &path, &slot, &v.Message, &observedAt)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}

		if path.Valid {
			v.Path = path.String
		}
		if slot.Valid {
			v.Slot = slot.String
		}
		if observedAt.Valid {
			v.ObservedAt = observedAt.Time
		}

		violations = append(violations, v)
	}

	return violations, rows.Err()
}

// GetStats summarizes the store.
func (s *Store) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM specs").Scan(&stats.TotalSpecs); err != nil {
		return nil, fmt.Errorf("get spec count: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM violations").Scan(&stats.TotalViolations); err != nil {
		return nil, fmt.Errorf("get violation count: %w", err)
	}

	return stats, nil
}
