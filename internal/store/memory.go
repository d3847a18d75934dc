package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps records in process. Contents are lost on exit.
type Memory struct {
	records sync.Map // task id -> *Record
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// PutIfAbsentOrEqual implements Store.
func (m *Memory) PutIfAbsentOrEqual(ctx context.Context, rec Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stored := cloneRecord(rec)
	actual, loaded := m.records.LoadOrStore(rec.TaskID, &stored)
	if !loaded {
		return true, nil
	}
	if actual.(*Record).Hash != rec.Hash {
		return false, ErrConflict
	}
	return false, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, taskID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	v, ok := m.records.Load(taskID)
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(*v.(*Record)), true, nil
}

// DeleteExpired implements Store.
func (m *Memory) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	m.records.Range(func(key, value any) bool {
		if ctx.Err() != nil {
			return false
		}
		if value.(*Record).Expires.Before(now) && m.records.CompareAndDelete(key, value) {
			n++
		}
		return true
	})
	return n, ctx.Err()
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
