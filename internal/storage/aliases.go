package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/model"
)

// CreateAlias creates or replaces an alias
func (s *SQLiteStorage) CreateAlias(ctx context.Context, name, url string) error {
	name = strings.TrimSpace(name)
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if name == "" || url == "" {
		return errors.Invalidf("alias name and url are required")
	}
	if strings.ContainsAny(name, "/ ") {
		return errors.Invalidf("alias name %q must not contain '/' or spaces", name)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aliases (name, url) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET url = excluded.url`,
		name, url)
	if err != nil {
		return errors.Wrap(err, "upsert alias")
	}
	return nil
}

// DeleteAlias deletes an alias
func (s *SQLiteStorage) DeleteAlias(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM aliases WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return errors.Wrap(err, "delete alias")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundf("alias %q not found", name)
	}
	return nil
}

// GetAlias gets an alias URL by name
func (s *SQLiteStorage) GetAlias(ctx context.Context, name string) (string, bool, error) {
	var url string
	err := s.db.QueryRowContext(ctx, "SELECT url FROM aliases WHERE name = ?", strings.TrimSpace(name)).Scan(&url)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select alias")
	}
	return url, true, nil
}

// ListAliases returns all aliases sorted by name
func (s *SQLiteStorage) ListAliases(ctx context.Context) ([]model.Alias, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, url FROM aliases ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "list aliases")
	}
	defer rows.Close()

	aliases := []model.Alias{}
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.Name, &a.URL); err != nil {
			return nil, errors.Wrap(err, "scan alias")
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
