package task

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/roach88/taskq/internal/canonical"
)

// Requires is the policy over dependency completion.
type Requires string

const (
	RequiresAllCompleted Requires = "all-completed"
	RequiresOneCompleted Requires = "one-completed"
)

// Priority is the scheduling level of a task.
type Priority string

const (
	PriorityHighest  Priority = "highest"
	PriorityVeryHigh Priority = "very-high"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityVeryLow  Priority = "very-low"
	PriorityLowest   Priority = "lowest"
	PriorityNormal   Priority = "normal"
)

// ValidRequires lists the accepted dependency policies.
var ValidRequires = map[Requires]bool{
	RequiresAllCompleted: true,
	RequiresOneCompleted: true,
}

// ValidPriorities lists the accepted priority levels.
var ValidPriorities = map[Priority]bool{
	PriorityHighest:  true,
	PriorityVeryHigh: true,
	PriorityHigh:     true,
	PriorityMedium:   true,
	PriorityLow:      true,
	PriorityVeryLow:  true,
	PriorityLowest:   true,
	PriorityNormal:   true,
}

// Defaults applied when a field is absent from the submitted JSON.
const (
	DefaultSchedulerID          = "-"
	DefaultPriority             = PriorityLowest
	DefaultRequires             = RequiresAllCompleted
	DefaultRetries              = 5
	DefaultExpiresAfterDeadline = 365 * 24 * time.Hour
)

// Metadata describes a task for humans.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Source      string `json:"source"`
}

// Definition is the immutable record describing a unit of work.
// The task identifier is not part of the definition; it is the registry key.
type Definition struct {
	ProvisionerID string            `json:"provisionerId"`
	WorkerType    string            `json:"workerType"`
	SchedulerID   string            `json:"schedulerId"`
	TaskGroupID   string            `json:"taskGroupId"`
	Dependencies  []string          `json:"dependencies"`
	Requires      Requires          `json:"requires"`
	Routes        []string          `json:"routes"`
	Priority      Priority          `json:"priority"`
	Retries       int               `json:"retries"`
	Created       time.Time         `json:"created"`
	Deadline      time.Time         `json:"deadline"`
	Expires       time.Time         `json:"expires"`
	Scopes        []string          `json:"scopes"`
	Payload       canonical.Object  `json:"payload"`
	Metadata      Metadata          `json:"metadata"`
	Tags          map[string]string `json:"tags"`
	Extra         canonical.Object  `json:"extra"`
}

// UnmarshalJSON decodes a definition, filling fields absent from the
// document with their defaults. Fields present with a zero value keep it,
// so "retries": 0 stays 0.
func (d *Definition) UnmarshalJSON(data []byte) error {
	type plain Definition
	p := plain{
		SchedulerID: DefaultSchedulerID,
		Priority:    DefaultPriority,
		Requires:    DefaultRequires,
		Retries:     DefaultRetries,
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Definition(p)
	return nil
}

// MarshalJSON encodes timestamps with millisecond precision in UTC so the
// stored body matches the canonical time layout.
func (d Definition) MarshalJSON() ([]byte, error) {
	type plain Definition
	return json.Marshal(struct {
		plain
		Created  string `json:"created"`
		Deadline string `json:"deadline"`
		Expires  string `json:"expires"`
	}{
		plain:    plain(d),
		Created:  formatTime(d.Created),
		Deadline: formatTime(d.Deadline),
		Expires:  formatTime(d.Expires),
	})
}

// Clone returns a deep copy.
func (d Definition) Clone() Definition {
	out := d
	out.Dependencies = slices.Clone(d.Dependencies)
	out.Routes = slices.Clone(d.Routes)
	out.Scopes = slices.Clone(d.Scopes)
	out.Payload = d.Payload.Clone()
	out.Extra = d.Extra.Clone()
	if d.Tags != nil {
		out.Tags = make(map[string]string, len(d.Tags))
		for k, v := range d.Tags {
			out.Tags[k] = v
		}
	}
	return out
}

// normalizeTime drops sub-millisecond precision and the location so stored
// timestamps round-trip through JSON unchanged.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(time.Millisecond).UTC()
}
