package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConflict is returned by PutIfAbsentOrEqual when the id already holds a
// record with a different hash.
var ErrConflict = errors.New("task id holds a different definition")

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Record is a stored definition.
type Record struct {
	TaskID  string
	Hash    string
	Body    []byte
	Expires time.Time
}

// Store is a conditional-write key-value store for definitions.
type Store interface {
	// PutIfAbsentOrEqual writes rec if its id is unused. It returns true
	// when rec was written and false when a record with the same hash is
	// already present. A record with a different hash yields ErrConflict
	// and leaves the store unchanged.
	PutIfAbsentOrEqual(ctx context.Context, rec Record) (bool, error)

	// Get returns the record for taskID. ok is false when none exists.
	Get(ctx context.Context, taskID string) (rec Record, ok bool, err error)

	// DeleteExpired removes records whose expiry is before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	Close() error
}

// Open returns the backend named by driver. dsn is a file path for
// sqlite3, a connection string for postgres and a redis:// URL for redis.
// It is ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverRedis:
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Body = append([]byte(nil), rec.Body...)
	return out
}
