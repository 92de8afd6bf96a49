package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Profile keys persisted across sessions.
const (
	ProfileKeyNickname = "nickname"
	ProfileKeyAddress  = "address"
)

// SetProfileValue stores one profile key, overwriting any prior value.
func (s *Store) SetProfileValue(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("profile key is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO profile (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set profile value %q: %w", key, err)
	}
	return nil
}

// GetProfileValue reads one profile key; a missing key returns "".
func (s *Store) GetProfileValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM profile WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile value %q: %w", key, err)
	}
	return value, nil
}

// Profile returns every stored profile key.
func (s *Store) Profile() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM profile`)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	defer rows.Close()

	profile := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profile[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return profile, nil
}
