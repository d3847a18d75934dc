package task

import (
	"time"

	"github.com/roach88/taskq/internal/canonical"
)

var fixedCreated = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// sampleDefinition returns a fully populated, valid definition anchored at created.
func sampleDefinition(created time.Time) Definition {
	return Definition{
		ProvisionerID: "no-provisioner-extended-extended",
		WorkerType:    "test-worker-extended-extended",
		SchedulerID:   "my-scheduler-extended-extended",
		TaskGroupID:   "dSlITZ4yQgmvxxAi4A8fHQ",
		Dependencies:  []string{},
		Requires:      RequiresAllCompleted,
		Routes:        []string{},
		Priority:      PriorityLowest,
		Retries:       5,
		Created:       created,
		Deadline:      created.Add(3 * 24 * time.Hour),
		Expires:       created.Add(3 * 24 * time.Hour),
		Scopes:        []string{},
		Payload:       canonical.Object{},
		Metadata: Metadata{
			Name:        "Unit testing task",
			Description: "Task created during unit tests",
			Owner:       "jonsafj@mozilla.com",
			Source:      "https://github.com/taskcluster/taskcluster-queue",
		},
		Tags:  map[string]string{"purpose": "taskcluster-testing"},
		Extra: canonical.Object{},
	}
}
