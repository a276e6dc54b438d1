package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/model"
)

const requestColumns = `id, collection_id, name, method, url, body, headers, parameters, response, updated_at, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanRequest(row rowScanner) (*model.RequestDefinition, error) {
	var req model.RequestDefinition
	var method string
	var body, headers, parameters, response sql.NullString
	var updatedAt, createdAt int64

	err := row.Scan(
		&req.ID, &req.CollectionID, &req.Name, &method, &req.URL,
		&body, &headers, &parameters, &response,
		&updatedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	req.Method = model.Method(method)
	req.Body = body.String
	req.Headers = headers.String
	req.Parameters = parameters.String
	req.Response = response.String
	req.UpdatedAt = fromMillis(updatedAt)
	req.CreatedAt = fromMillis(createdAt)
	return &req, nil
}

func findRequest(ctx context.Context, q queryer, id string) (*model.RequestDefinition, error) {
	row := q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select request")
	}
	return req, nil
}

// FindRequest gets a request by ID. It returns nil, nil when absent.
func (s *SQLiteStorage) FindRequest(ctx context.Context, id string) (*model.RequestDefinition, error) {
	return findRequest(ctx, s.db, strings.TrimSpace(id))
}

// UpdateRequest applies a partial update and refreshes updated_at
func (s *SQLiteStorage) UpdateRequest(ctx context.Context, id string, update model.RequestUpdate) (*model.RequestDefinition, error) {
	id = strings.TrimSpace(id)
	if update.Method != nil {
		if _, err := model.ParseMethod(string(*update.Method)); err != nil {
			return nil, err
		}
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{toMillis(s.now())}
	add := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	add("name", update.Name)
	if update.Method != nil {
		method := string(*update.Method)
		add("method", &method)
	}
	add("url", update.URL)
	add("body", update.Body)
	add("headers", update.Headers)
	add("parameters", update.Parameters)
	add("response", update.Response)
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin update")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE requests SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "update request")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, errors.NotFoundf("Request with id %s not found", id)
	}

	req, err := findRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NotFoundf("Request with id %s not found", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit update")
	}
	return req, nil
}

// SaveRequest stores the user-editable fields of an existing request.
// The cached response is left untouched.
func (s *SQLiteStorage) SaveRequest(ctx context.Context, id string, in model.RequestInput) (*model.RequestDefinition, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	method, _ := model.ParseMethod(string(in.Method))
	return s.UpdateRequest(ctx, id, model.RequestUpdate{
		Name:       &in.Name,
		Method:     &method,
		URL:        &in.URL,
		Body:       &in.Body,
		Headers:    &in.Headers,
		Parameters: &in.Parameters,
	})
}

// AddRequestToCollection creates a new request inside a collection
func (s *SQLiteStorage) AddRequestToCollection(ctx context.Context, collectionID string, in model.RequestInput) (*model.RequestDefinition, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return nil, errors.Invalidf("collection is required")
	}
	method, _ := model.ParseMethod(string(in.Method))

	now := s.now().UTC()
	req := &model.RequestDefinition{
		ID:           s.newID(),
		CollectionID: collectionID,
		Name:         strings.TrimSpace(in.Name),
		Method:       method,
		URL:          strings.TrimSpace(in.URL),
		Body:         in.Body,
		Headers:      in.Headers,
		Parameters:   in.Parameters,
		UpdatedAt:    fromMillis(toMillis(now)),
		CreatedAt:    fromMillis(toMillis(now)),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		req.ID, req.CollectionID, req.Name, string(req.Method), req.URL,
		req.Body, req.Headers, req.Parameters,
		toMillis(now), toMillis(now),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errors.NotFoundf("Collection with id %s not found", collectionID)
		}
		return nil, errors.Wrap(err, "insert request")
	}
	return req, nil
}

// ListRequests returns the requests of a collection in creation order
func (s *SQLiteStorage) ListRequests(ctx context.Context, collectionID string) ([]model.RequestDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE collection_id = ?
		ORDER BY created_at, name`, strings.TrimSpace(collectionID))
	if err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	defer rows.Close()

	requests := []model.RequestDefinition{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan request")
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// DeleteRequest removes a request. Its run history is kept.
func (s *SQLiteStorage) DeleteRequest(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", strings.TrimSpace(id))
	if err != nil {
		return errors.Wrap(err, "delete request")
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "FOREIGN KEY")
}
