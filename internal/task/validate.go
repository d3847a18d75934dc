package task

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/goliatone/go-errors"

	"github.com/roach88/taskq/internal/canonical"
)

//go:embed schema.cue
var schemaSource string

// Limits enforced in addition to the structural schema.
const (
	MaxDeadlineWindow  = 5 * 24 * time.Hour
	MaxDependencies    = 10000
	MaxRouteLength     = 249
	MaxScopeLength     = 500
	MaxNameLength      = 255
	MaxOwnerLength     = 255
	MaxSourceLength    = 4096
	MaxDescriptionSize = 32768
	MaxTagLength       = 4096
)

// compileSchema compiles the embedded schema into ctx and returns its
// #Definition. A cue.Context retains every value compiled into it, so each
// validation uses its own.
func compileSchema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile definition schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Definition"))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("definition schema has no #Definition")
	}
	return def, nil
}

// Validate checks a submitted definition and returns its normalized form.
//
// Absent containers become empty, timestamps are truncated to milliseconds
// in UTC and a missing expires is set one year past the deadline. The input
// is not modified. All violations are reported together in one validation
// error.
func Validate(d Definition) (Definition, error) {
	out := normalize(d)

	var fieldErrors []errors.FieldError

	schemaErrs, err := checkSchema(out)
	if err != nil {
		return Definition{}, errors.Wrap(err, errors.CategoryInternal, "definition schema unavailable").
			WithTextCode("SCHEMA_UNAVAILABLE")
	}
	fieldErrors = append(fieldErrors, schemaErrs...)
	fieldErrors = append(fieldErrors, checkTemporal(out)...)
	fieldErrors = append(fieldErrors, checkLimits(out)...)

	if len(fieldErrors) > 0 {
		return Definition{}, errors.NewValidation("invalid task definition", fieldErrors...)
	}
	return out, nil
}

func normalize(d Definition) Definition {
	out := d.Clone()

	if out.SchedulerID == "" {
		out.SchedulerID = DefaultSchedulerID
	}
	if out.Priority == "" {
		out.Priority = DefaultPriority
	}
	if out.Requires == "" {
		out.Requires = DefaultRequires
	}
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	if out.Routes == nil {
		out.Routes = []string{}
	}
	if out.Scopes == nil {
		out.Scopes = []string{}
	}
	if out.Tags == nil {
		out.Tags = map[string]string{}
	}
	if out.Payload == nil {
		out.Payload = canonical.Object{}
	}
	if out.Extra == nil {
		out.Extra = canonical.Object{}
	}

	out.Created = normalizeTime(out.Created)
	out.Deadline = normalizeTime(out.Deadline)
	out.Expires = normalizeTime(out.Expires)
	if out.Expires.IsZero() && !out.Deadline.IsZero() {
		out.Expires = out.Deadline.Add(DefaultExpiresAfterDeadline)
	}
	return out
}

func checkSchema(d Definition) ([]errors.FieldError, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return []errors.FieldError{{Field: "definition", Message: err.Error()}}, nil
	}

	ctx := cuecontext.New()
	def, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}

	v := ctx.CompileBytes(data, cue.Filename("definition.json"))
	if err := v.Err(); err != nil {
		return []errors.FieldError{{Field: "definition", Message: err.Error()}}, nil
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fieldErrorsFromCUE(err), nil
	}
	return nil, nil
}

// fieldErrorsFromCUE keeps the first message per field path. A failed
// disjunction reports once per alternative.
func fieldErrorsFromCUE(err error) []errors.FieldError {
	var out []errors.FieldError
	seen := make(map[string]bool)

	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) > 0 && strings.HasPrefix(path[0], "#") {
			path = path[1:]
		}
		field := strings.Join(path, ".")
		if field == "" {
			field = "definition"
		}
		if seen[field] {
			continue
		}
		seen[field] = true

		format, args := e.Msg()
		out = append(out, errors.FieldError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}

func checkTemporal(d Definition) []errors.FieldError {
	var errs []errors.FieldError

	if d.Created.IsZero() {
		errs = append(errs, errors.FieldError{Field: "created", Message: "is required"})
	}
	if d.Deadline.IsZero() {
		errs = append(errs, errors.FieldError{Field: "deadline", Message: "is required"})
	}
	if len(errs) > 0 {
		return errs
	}

	if d.Deadline.Before(d.Created) {
		errs = append(errs, errors.FieldError{
			Field:   "deadline",
			Message: "must not be before created",
			Value:   d.Deadline.Format(TimeFormat),
		})
	} else if d.Deadline.Sub(d.Created) > MaxDeadlineWindow {
		errs = append(errs, errors.FieldError{
			Field:   "deadline",
			Message: fmt.Sprintf("must be at most %s after created", MaxDeadlineWindow),
			Value:   d.Deadline.Format(TimeFormat),
		})
	}

	if d.Expires.Before(d.Deadline) {
		errs = append(errs, errors.FieldError{
			Field:   "expires",
			Message: "must not be before deadline",
			Value:   d.Expires.Format(TimeFormat),
		})
	}
	return errs
}

func checkLimits(d Definition) []errors.FieldError {
	var errs []errors.FieldError

	if len(d.Dependencies) > MaxDependencies {
		errs = append(errs, errors.FieldError{
			Field:   "dependencies",
			Message: fmt.Sprintf("must have at most %d entries", MaxDependencies),
		})
	}
	seen := make(map[string]bool, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		if seen[dep] {
			errs = append(errs, errors.FieldError{
				Field:   fmt.Sprintf("dependencies[%d]", i),
				Message: "duplicate dependency",
				Value:   dep,
			})
		}
		seen[dep] = true
	}

	for i, r := range d.Routes {
		if n := utf8.RuneCountInString(r); n == 0 || n > MaxRouteLength {
			errs = append(errs, errors.FieldError{
				Field:   fmt.Sprintf("routes[%d]", i),
				Message: fmt.Sprintf("must be 1 to %d characters", MaxRouteLength),
				Value:   r,
			})
		}
	}
	for i, s := range d.Scopes {
		if utf8.RuneCountInString(s) > MaxScopeLength {
			errs = append(errs, errors.FieldError{
				Field:   fmt.Sprintf("scopes[%d]", i),
				Message: fmt.Sprintf("must be at most %d characters", MaxScopeLength),
			})
		}
	}

	lengths := []struct {
		field string
		value string
		max   int
	}{
		{"metadata.name", d.Metadata.Name, MaxNameLength},
		{"metadata.owner", d.Metadata.Owner, MaxOwnerLength},
		{"metadata.source", d.Metadata.Source, MaxSourceLength},
		{"metadata.description", d.Metadata.Description, MaxDescriptionSize},
	}
	for _, l := range lengths {
		if utf8.RuneCountInString(l.value) > l.max {
			errs = append(errs, errors.FieldError{
				Field:   l.field,
				Message: fmt.Sprintf("must be at most %d characters", l.max),
			})
		}
	}

	for _, k := range slices.Sorted(maps.Keys(d.Tags)) {
		v := d.Tags[k]
		if utf8.RuneCountInString(k) > MaxTagLength || utf8.RuneCountInString(v) > MaxTagLength {
			errs = append(errs, errors.FieldError{
				Field:   "tags." + k,
				Message: fmt.Sprintf("keys and values must be at most %d characters", MaxTagLength),
			})
		}
	}
	return errs
}
