package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/model"
)

// PersonalWorkspaceName is the workspace every owner starts with
const PersonalWorkspaceName = "Personal Workspace"

// =============================================================================
// Workspaces
// =============================================================================

// InitializeWorkspace returns the owner's personal workspace, creating it
// on first use. Calling it repeatedly yields the same workspace.
func (s *SQLiteStorage) InitializeWorkspace(ctx context.Context, owner string) (*model.Workspace, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.Invalidf("owner is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, description, owner, created_at)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(owner, name) DO NOTHING`,
		s.newID(), PersonalWorkspaceName, owner, toMillis(s.now()))
	if err != nil {
		return nil, errors.Wrap(err, "insert personal workspace")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner, created_at
		FROM workspaces WHERE owner = ? AND name = ?`, owner, PersonalWorkspaceName)
	ws, err := scanWorkspace(row)
	if err != nil {
		return nil, errors.Wrap(err, "select personal workspace")
	}
	return ws, nil
}

// CreateWorkspace creates a named workspace for owner
func (s *SQLiteStorage) CreateWorkspace(ctx context.Context, owner, name, description string) (*model.Workspace, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return nil, errors.Invalidf("workspace owner and name are required")
	}

	ws := &model.Workspace{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		Owner:       owner,
		CreatedAt:   fromMillis(toMillis(s.now())),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, description, owner, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.Description, ws.Owner, toMillis(ws.CreatedAt))
	if err != nil {
		if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE") {
			return nil, errors.Invalidf("workspace %q already exists", name)
		}
		return nil, errors.Wrap(err, "insert workspace")
	}
	return ws, nil
}

// ListWorkspaces returns the owner's workspaces sorted by name
func (s *SQLiteStorage) ListWorkspaces(ctx context.Context, owner string) ([]model.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, owner, created_at
		FROM workspaces WHERE owner = ? ORDER BY name`, strings.TrimSpace(owner))
	if err != nil {
		return nil, errors.Wrap(err, "list workspaces")
	}
	defer rows.Close()

	workspaces := []model.Workspace{}
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan workspace")
		}
		workspaces = append(workspaces, *ws)
	}
	return workspaces, rows.Err()
}

// GetWorkspace gets a workspace by ID. It returns nil, nil when absent.
func (s *SQLiteStorage) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner, created_at
		FROM workspaces WHERE id = ?`, strings.TrimSpace(id))
	ws, err := scanWorkspace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select workspace")
	}
	return ws, nil
}

func scanWorkspace(row rowScanner) (*model.Workspace, error) {
	var ws model.Workspace
	var description sql.NullString
	var createdAt int64
	if err := row.Scan(&ws.ID, &ws.Name, &description, &ws.Owner, &createdAt); err != nil {
		return nil, err
	}
	ws.Description = description.String
	ws.CreatedAt = fromMillis(createdAt)
	return &ws, nil
}

// =============================================================================
// Collections
// =============================================================================

// CreateCollection creates a collection inside a workspace
func (s *SQLiteStorage) CreateCollection(ctx context.Context, workspaceID, name string) (*model.Collection, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Invalidf("collection name is required")
	}

	c := &model.Collection{
		ID:          s.newID(),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   fromMillis(toMillis(s.now())),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, workspace_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, toMillis(c.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errors.NotFoundf("Workspace with id %s not found", workspaceID)
		}
		return nil, errors.Wrap(err, "insert collection")
	}

	s.log.Debugw("Collection created", "collection_id", c.ID, "workspace_id", workspaceID)
	return c, nil
}

// ListCollections returns a workspace's collections sorted by name
func (s *SQLiteStorage) ListCollections(ctx context.Context, workspaceID string) ([]model.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM collections WHERE workspace_id = ? ORDER BY name`, strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		var c model.Collection
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan collection")
		}
		c.CreatedAt = fromMillis(createdAt)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// RenameCollection changes a collection's display name
func (s *SQLiteStorage) RenameCollection(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Invalidf("collection name is required")
	}
	result, err := s.db.ExecContext(ctx, "UPDATE collections SET name = ? WHERE id = ?", name, strings.TrimSpace(id))
	if err != nil {
		return errors.Wrap(err, "rename collection")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundf("Collection with id %s not found", id)
	}
	return nil
}

// DeleteCollection removes a collection and, by cascade, its requests.
// Run history is kept.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", strings.TrimSpace(id))
	if err != nil {
		return errors.Wrap(err, "delete collection")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundf("Collection with id %s not found", id)
	}
	s.log.Infow("Collection deleted", "collection_id", id)
	return nil
}
