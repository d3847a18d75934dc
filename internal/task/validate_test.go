package task

import (
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskq/internal/canonical"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()

	fieldErrs, ok := errors.GetValidationErrors(err)
	require.True(t, ok, "expected validation error, got %v", err)

	var fields []string
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestValidate_AcceptsSample(t *testing.T) {
	d := sampleDefinition(fixedCreated)

	out, err := Validate(d)
	require.NoError(t, err)

	eq, err := Equal(d, out)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestValidate_FillsDefaults(t *testing.T) {
	d := sampleDefinition(fixedCreated)
	d.SchedulerID = ""
	d.Priority = ""
	d.Requires = ""
	d.Dependencies = nil
	d.Routes = nil
	d.Scopes = nil
	d.Tags = nil
	d.Payload = nil
	d.Extra = nil
	d.Expires = time.Time{}

	out, err := Validate(d)
	require.NoError(t, err)

	assert.Equal(t, DefaultSchedulerID, out.SchedulerID)
	assert.Equal(t, DefaultPriority, out.Priority)
	assert.Equal(t, DefaultRequires, out.Requires)
	assert.NotNil(t, out.Dependencies)
	assert.NotNil(t, out.Routes)
	assert.NotNil(t, out.Scopes)
	assert.NotNil(t, out.Tags)
	assert.NotNil(t, out.Payload)
	assert.NotNil(t, out.Extra)
	assert.Equal(t, d.Deadline.Add(DefaultExpiresAfterDeadline), out.Expires)
}

func TestValidate_DoesNotModifyInput(t *testing.T) {
	d := sampleDefinition(fixedCreated)
	d.Created = d.Created.Add(123 * time.Microsecond)
	d.Tags = nil

	_, err := Validate(d)
	require.NoError(t, err)

	assert.Nil(t, d.Tags)
	assert.Equal(t, 123*time.Microsecond, d.Created.Sub(fixedCreated))
}

func TestValidate_NormalizesTimes(t *testing.T) {
	d := sampleDefinition(fixedCreated.In(time.FixedZone("UTC-5", -5*60*60)))
	d.Created = d.Created.Add(999 * time.Microsecond)

	out, err := Validate(d)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, out.Created.Location())
	assert.Equal(t, fixedCreated, out.Created)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		field  string
	}{
		{"empty provisionerId", func(d *Definition) { d.ProvisionerID = "" }, "provisionerId"},
		{"long workerType", func(d *Definition) { d.WorkerType = strings.Repeat("w", 39) }, "workerType"},
		{"schedulerId charset", func(d *Definition) { d.SchedulerID = "has space" }, "schedulerId"},
		{"taskGroupId not slug", func(d *Definition) { d.TaskGroupID = "not-a-slug" }, "taskGroupId"},
		{"dependency not slug", func(d *Definition) { d.Dependencies = []string{"nope"} }, "dependencies"},
		{"unknown priority", func(d *Definition) { d.Priority = "urgent" }, "priority"},
		{"unknown requires", func(d *Definition) { d.Requires = "some-completed" }, "requires"},
		{"negative retries", func(d *Definition) { d.Retries = -1 }, "retries"},
		{"too many retries", func(d *Definition) { d.Retries = 50 }, "retries"},
		{"empty metadata name", func(d *Definition) { d.Metadata.Name = "" }, "metadata.name"},
		{"empty metadata owner", func(d *Definition) { d.Metadata.Owner = "" }, "metadata.owner"},
		{"empty metadata source", func(d *Definition) { d.Metadata.Source = "" }, "metadata.source"},
		{"missing created", func(d *Definition) { d.Created = time.Time{} }, "created"},
		{"missing deadline", func(d *Definition) { d.Deadline = time.Time{} }, "deadline"},
		{"deadline before created", func(d *Definition) { d.Deadline = d.Created.Add(-time.Minute) }, "deadline"},
		{"deadline too far", func(d *Definition) { d.Deadline = d.Created.Add(MaxDeadlineWindow + time.Second) }, "deadline"},
		{"expires before deadline", func(d *Definition) { d.Expires = d.Deadline.Add(-time.Second) }, "expires"},
		{"duplicate dependency", func(d *Definition) {
			d.Dependencies = []string{"VJmF_Ns9RGWaVgTiuNsUiw", "VJmF_Ns9RGWaVgTiuNsUiw"}
		}, "dependencies[1]"},
		{"empty route", func(d *Definition) { d.Routes = []string{""} }, "routes[0]"},
		{"long route", func(d *Definition) { d.Routes = []string{strings.Repeat("r", MaxRouteLength+1)} }, "routes[0]"},
		{"long scope", func(d *Definition) { d.Scopes = []string{strings.Repeat("s", MaxScopeLength+1)} }, "scopes[0]"},
		{"long name", func(d *Definition) { d.Metadata.Name = strings.Repeat("n", MaxNameLength+1) }, "metadata.name"},
		{"long tag", func(d *Definition) { d.Tags["k"] = strings.Repeat("v", MaxTagLength+1) }, "tags.k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDefinition(fixedCreated)
			tt.mutate(&d)

			_, err := Validate(d)
			require.Error(t, err)

			fields := fieldsOf(t, err)
			assert.True(t, slices.ContainsFunc(fields, func(f string) bool {
				return strings.HasPrefix(f, tt.field)
			}), "fields %v missing %q", fields, tt.field)
		})
	}
}

func TestValidate_DeadlineAtWindowEdge(t *testing.T) {
	d := sampleDefinition(fixedCreated)
	d.Deadline = d.Created.Add(MaxDeadlineWindow)
	d.Expires = d.Deadline

	_, err := Validate(d)
	assert.NoError(t, err)
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	d := sampleDefinition(fixedCreated)
	d.Priority = "urgent"
	d.Retries = -1
	d.Deadline = d.Created.Add(-time.Hour)

	_, err := Validate(d)
	require.Error(t, err)

	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "retries")
	assert.Contains(t, fields, "deadline")
}

func TestValidate_ErrorCategory(t *testing.T) {
	d := sampleDefinition(fixedCreated)
	d.Retries = 100

	_, err := Validate(d)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.CategoryValidation, e.Category)
}

func liveHeap() uint64 {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

func TestValidate_HeapStaysBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	d := sampleDefinition(fixedCreated)
	d.Payload = canonical.Object{"image": canonical.String("ubuntu:22.04"), "maxRunTime": canonical.Int(600)}

	for range 200 {
		_, err := Validate(d)
		require.NoError(t, err)
	}
	before := liveHeap()

	for range 3000 {
		_, err := Validate(d)
		require.NoError(t, err)
	}
	after := liveHeap()

	var growth int64
	if after > before {
		growth = int64(after - before)
	}
	assert.Less(t, growth, int64(8<<20), "live heap grew from %d to %d bytes", before, after)
}

func TestValidate_Concurrent(t *testing.T) {
	d := sampleDefinition(fixedCreated)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Validate(d)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
