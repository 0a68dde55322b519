package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore implements [Store] on the kv_entries table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a migrated database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(namespace, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM kv_entries WHERE namespace = ? AND key = ?", namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(namespace, key, value string) error {
	query := `
		INSERT INTO kv_entries (namespace, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, namespace, key, value); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(namespace, key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_entries WHERE namespace = ? AND key = ?", namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) List(namespace string) (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM kv_entries WHERE namespace = ?", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", namespace, err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries[key] = value
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
