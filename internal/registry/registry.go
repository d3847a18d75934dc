// Package registry binds task ids to definitions exactly once.
//
// A Create for an unseen id stores the definition. A repeat Create with an
// equal definition succeeds without writing; one with a different
// definition fails with a conflict and changes nothing. Equality is the
// definition's content hash, so retried requests are safe.
//
// The registry holds no locks of its own. Per-id atomicity comes from the
// store's conditional write.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"

	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/store"
	"github.com/roach88/taskq/internal/task"
)

// Outcome describes a successful Create. Either way the id now maps to the
// submitted definition.
type Outcome int

const (
	// Stored means the definition was written by this call.
	Stored Outcome = iota + 1
	// Unchanged means an equal definition was already registered.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Text codes attached to registry errors.
const (
	TextCodeConflict         = "REQUEST_CONFLICT"
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Registry maps task ids to definitions on top of a Store.
type Registry struct {
	store  store.Store
	logger glog.Logger
}

// New returns a registry over s. A nil logger discards output.
func New(s store.Store, logger glog.Logger) *Registry {
	return &Registry{store: s, logger: logging.OrNop(logger)}
}

// Create registers def under id. def must already be validated.
func (r *Registry) Create(ctx context.Context, id string, def task.Definition) (Outcome, error) {
	hash, err := def.Hash()
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "hash task definition")
	}
	body, err := json.Marshal(def)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "encode task definition")
	}

	inserted, err := r.store.PutIfAbsentOrEqual(ctx, store.Record{
		TaskID:  id,
		Hash:    hash,
		Body:    body,
		Expires: def.Expires,
	})
	switch {
	case errors.Is(err, store.ErrConflict):
		r.logger.Warn("task id already bound to a different definition", "taskId", id, "hash", hash)
		return 0, ConflictError(id)
	case err != nil:
		r.logger.Error("store write failed", "taskId", id, "error", err)
		return 0, storeUnavailable(err)
	case inserted:
		r.logger.Debug("task definition stored", "taskId", id, "hash", hash)
		return Stored, nil
	default:
		r.logger.Debug("task definition already stored", "taskId", id, "hash", hash)
		return Unchanged, nil
	}
}

// Get returns the definition registered under id. ok is false when the id
// is unknown.
func (r *Registry) Get(ctx context.Context, id string) (task.Definition, bool, error) {
	body, ok, err := r.GetBody(ctx, id)
	if err != nil || !ok {
		return task.Definition{}, ok, err
	}

	var def task.Definition
	if err := json.Unmarshal(body, &def); err != nil {
		return task.Definition{}, false, errors.Wrap(err, errors.CategoryInternal, "decode stored task definition").
			WithMetadata(map[string]any{"taskId": id})
	}
	return def, true, nil
}

// GetBody returns the JSON body stored for id, byte for byte as written by
// Create.
func (r *Registry) GetBody(ctx context.Context, id string) ([]byte, bool, error) {
	rec, ok, err := r.store.Get(ctx, id)
	if err != nil {
		r.logger.Error("store read failed", "taskId", id, "error", err)
		return nil, false, storeUnavailable(err)
	}
	if !ok {
		return nil, false, nil
	}
	return rec.Body, true, nil
}

// ConflictError is returned by Create when id holds a different definition.
func ConflictError(id string) *errors.Error {
	return errors.New("task id already holds a different definition", errors.CategoryConflict).
		WithCode(errors.CodeConflict).
		WithTextCode(TextCodeConflict).
		WithMetadata(map[string]any{"taskId": id})
}

// IsConflict reports whether err is a registry conflict.
func IsConflict(err error) bool {
	return errors.IsCategory(err, errors.CategoryConflict)
}

func storeUnavailable(err error) *errors.Error {
	return errors.Wrap(err, errors.CategoryExternal, "task store unavailable").
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(TextCodeStoreUnavailable)
}
