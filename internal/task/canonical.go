package task

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/taskq/internal/canonical"
)

// TimeFormat is the layout of timestamps in the canonical form.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// CanonicalForm returns the canonical JSON bytes used for equality.
//
// Routes and scopes are sets: sorted and de-duplicated. Dependencies keep
// their order. Nil and empty containers produce the same bytes, so a
// definition compares equal before and after defaulting.
func (d Definition) CanonicalForm() ([]byte, error) {
	data, err := canonical.Marshal(d.canonicalObject())
	if err != nil {
		return nil, fmt.Errorf("canonical form: %w", err)
	}
	return data, nil
}

// NonNFCFields lists fields holding text that is not NFC normalized. Such a
// definition is valid, but it differs from the visually identical composed
// text and conflicts with it under one task id.
func (d Definition) NonNFCFields() ([]string, error) {
	return canonical.NonNFCPaths(d.canonicalObject())
}

func (d Definition) canonicalObject() map[string]any {
	return map[string]any{
		"provisionerId": d.ProvisionerID,
		"workerType":    d.WorkerType,
		"schedulerId":   d.SchedulerID,
		"taskGroupId":   d.TaskGroupID,
		"dependencies":  d.Dependencies,
		"requires":      string(d.Requires),
		"routes":        sortedSet(d.Routes),
		"priority":      string(d.Priority),
		"retries":       d.Retries,
		"created":       formatTime(d.Created),
		"deadline":      formatTime(d.Deadline),
		"expires":       formatTime(d.Expires),
		"scopes":        sortedSet(d.Scopes),
		"payload":       d.Payload,
		"metadata": map[string]any{
			"name":        d.Metadata.Name,
			"description": d.Metadata.Description,
			"owner":       d.Metadata.Owner,
			"source":      d.Metadata.Source,
		},
		"tags":  d.Tags,
		"extra": d.Extra,
	}
}

// Hash returns the content hash of the canonical form.
func (d Definition) Hash() (string, error) {
	data, err := d.CanonicalForm()
	if err != nil {
		return "", err
	}
	return canonical.HashWithDomain(canonical.DomainDefinition, data), nil
}

// Equal reports whether two definitions are structurally equal.
func Equal(a, b Definition) (bool, error) {
	ah, err := a.Hash()
	if err != nil {
		return false, err
	}
	bh, err := b.Hash()
	if err != nil {
		return false, err
	}
	return ah == bh, nil
}

func sortedSet(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func formatTime(t time.Time) string {
	return normalizeTime(t).Format(TimeFormat)
}
