// Package store persists registered task definitions keyed by task id.
//
// Every backend exposes one conditional write, PutIfAbsentOrEqual, which is
// the only path that binds an id to a definition:
//   - memory: sync.Map LoadOrStore
//   - sqlite3 / postgres: INSERT ... ON CONFLICT(task_id) DO NOTHING, then a
//     read of the winning row in the same transaction
//   - redis: SET NX with a TTL that ends at the record's expiry
//
// Records are compared by their content hash, never by their bytes. The body
// is stored exactly as written so repeated reads return identical bytes.
//
// # SQL configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema versions are tracked with PRAGMA user_version on SQLite and a
// single-row schema_version table on PostgreSQL.
package store
