package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/model"
)

// DefaultRunLimit caps ListRuns when no limit is given
const DefaultRunLimit = 50

const runColumns = `id, request_id, status, status_text, headers, body, duration_ms, created_at`

// AppendRun inserts a new immutable run for requestID. The request does
// not have to exist: history outlives deleted requests.
func (s *SQLiteStorage) AppendRun(ctx context.Context, requestID string, fields model.RunFields) (*model.RunRecord, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, errors.Invalidf("request id is required")
	}
	if fields.DurationMs < 0 {
		fields.DurationMs = 0
	}

	now := s.now()
	run := &model.RunRecord{
		ID:         s.newID(),
		RequestID:  requestID,
		Status:     fields.Status,
		StatusText: fields.StatusText,
		Headers:    fields.Headers,
		Body:       fields.Body,
		DurationMs: fields.DurationMs,
		CreatedAt:  fromMillis(toMillis(now)),
	}

	var statusText sql.NullString
	if run.StatusText != nil {
		statusText = sql.NullString{String: *run.StatusText, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RequestID, run.Status, statusText,
		run.Headers, run.Body, run.DurationMs, toMillis(now),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "insert run"), errors.ErrPersistence)
	}

	s.log.Debugw("Run appended", logger.FieldRunID, run.ID, logger.FieldRequestID, requestID)
	return run, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.RunRecord, error) {
	var run model.RunRecord
	var statusText, headers, body sql.NullString
	var createdAt int64

	if err := row.Scan(
		&run.ID, &run.RequestID, &run.Status, &statusText,
		&headers, &body, &run.DurationMs, &createdAt,
	); err != nil {
		return nil, err
	}

	if statusText.Valid {
		run.StatusText = model.StringPtr(statusText.String)
	}
	run.Headers = headers.String
	run.Body = body.String
	run.CreatedAt = fromMillis(createdAt)
	return &run, nil
}

// ListRuns returns the newest runs of a request first
func (s *SQLiteStorage) ListRuns(ctx context.Context, requestID string, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM request_runs
		WHERE request_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, strings.TrimSpace(requestID), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun gets a single run by ID. It returns nil, nil when absent.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM request_runs WHERE id = ?`, strings.TrimSpace(id))
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select run")
	}
	return run, nil
}
