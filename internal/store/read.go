package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get implements Store.
func (s *SQL) Get(ctx context.Context, taskID string) (Record, bool, error) {
	var (
		hash      string
		body      string
		expiresMs int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT hash, body, expires_ms
		FROM tasks
		WHERE task_id = ?
	`), taskID).Scan(&hash, &body, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get task: %w", err)
	}

	return Record{
		TaskID:  taskID,
		Hash:    hash,
		Body:    []byte(body),
		Expires: time.UnixMilli(expiresMs).UTC(),
	}, true, nil
}

// Count returns the number of stored records.
func (s *SQL) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
