package store

import (
	"context"
	"fmt"
	"time"
)

// PutIfAbsentOrEqual implements Store.
//
// Uses ON CONFLICT(task_id) DO NOTHING so concurrent writers for one id
// race on the primary key. The loser reads the winning row inside the same
// transaction and compares hashes.
func (s *SQL) PutIfAbsentOrEqual(ctx context.Context, rec Record) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("put task: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO tasks
		(task_id, hash, body, expires_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id) DO NOTHING
	`),
		rec.TaskID,
		rec.Hash,
		string(rec.Body),
		rec.Expires.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("put task: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put task: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("put task: commit: %w", err)
		}
		return true, nil
	}

	var existing string
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT hash FROM tasks WHERE task_id = ?
	`), rec.TaskID).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("put task: select existing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("put task: commit (existing): %w", err)
	}

	if existing != rec.Hash {
		return false, ErrConflict
	}
	return false, nil
}

// DeleteExpired implements Store.
func (s *SQL) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM tasks WHERE expires_ms < ?
	`), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired: rows affected: %w", err)
	}
	return n, nil
}
