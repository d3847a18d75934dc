// Package queue is the task-definition surface of the queue service: it
// creates definitions under caller-chosen ids and serves them back.
package queue

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"

	"github.com/roach88/taskq/internal/auth"
	"github.com/roach88/taskq/internal/logging"
	"github.com/roach88/taskq/internal/registry"
	"github.com/roach88/taskq/internal/slugid"
	"github.com/roach88/taskq/internal/task"
)

// TextCodeNotFound marks lookups of unknown task ids.
const TextCodeNotFound = "RESOURCE_NOT_FOUND"

// Authorizer decides whether credentials meet a requirement.
type Authorizer interface {
	Authorize(creds auth.Credentials, req auth.Requirement) error
}

// Service creates and retrieves task definitions.
type Service struct {
	registry *registry.Registry
	authz    Authorizer
	logger   glog.Logger
}

// New returns a service. A nil logger discards output.
func New(reg *registry.Registry, authz Authorizer, logger glog.Logger) *Service {
	return &Service{
		registry: reg,
		authz:    authz,
		logger:   logging.OrNop(logger),
	}
}

// CreateTask validates def, checks that creds may create it and registers
// it under taskID. It returns the definition as stored, defaults applied.
//
// Repeating a create with an equal definition succeeds. A different
// definition for a used id is a conflict.
func (s *Service) CreateTask(ctx context.Context, creds auth.Credentials, taskID string, def task.Definition) (task.Definition, registry.Outcome, error) {
	if err := checkTaskID(taskID); err != nil {
		return task.Definition{}, 0, err
	}

	if def.TaskGroupID == "" {
		def.TaskGroupID = taskID
	}

	valid, err := task.Validate(def)
	if err != nil {
		return task.Definition{}, 0, err
	}

	if err := s.authz.Authorize(creds, CreateRequirement(valid)); err != nil {
		s.logger.Info("create task denied", "taskId", taskID, "clientId", creds.ClientID)
		return task.Definition{}, 0, err
	}

	outcome, err := s.registry.Create(ctx, taskID, valid)
	if err != nil {
		return task.Definition{}, 0, err
	}

	s.logger.Info("task created", "taskId", taskID, "outcome", outcome.String(), "clientId", creds.ClientID)
	return valid, outcome, nil
}

// Task returns the definition registered under taskID. Credentials are
// never consulted.
func (s *Service) Task(ctx context.Context, taskID string) (task.Definition, error) {
	if err := checkTaskID(taskID); err != nil {
		return task.Definition{}, err
	}

	def, ok, err := s.registry.Get(ctx, taskID)
	if err != nil {
		return task.Definition{}, err
	}
	if !ok {
		return task.Definition{}, notFound(taskID)
	}
	return def, nil
}

// TaskBody returns the stored JSON for taskID exactly as written at create
// time.
func (s *Service) TaskBody(ctx context.Context, taskID string) ([]byte, error) {
	if err := checkTaskID(taskID); err != nil {
		return nil, err
	}

	body, ok, err := s.registry.GetBody(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(taskID)
	}
	return body, nil
}

// CreateRequirement lists the scopes a caller needs to create def: the
// task's own scopes, create-task for its priority and worker pool, its
// scheduler id and each of its routes.
func CreateRequirement(def task.Definition) auth.Requirement {
	scopes := make([]string, 0, len(def.Scopes)+len(def.Routes)+2)
	scopes = append(scopes, def.Scopes...)
	scopes = append(scopes,
		fmt.Sprintf("queue:create-task:%s:%s/%s", def.Priority, def.ProvisionerID, def.WorkerType),
		"queue:scheduler-id:"+def.SchedulerID,
	)
	for _, route := range def.Routes {
		scopes = append(scopes, "queue:route:"+route)
	}
	return auth.AllOf(scopes...)
}

func checkTaskID(taskID string) error {
	if slugid.Valid(taskID) {
		return nil
	}
	return errors.NewValidation("invalid task id", errors.FieldError{
		Field:   "taskId",
		Message: "must match " + slugid.Pattern,
		Value:   taskID,
	})
}

func notFound(taskID string) error {
	return errors.New("task not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{"taskId": taskID})
}
