package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taskq/internal/task"
)

const testToken = "tok-tester"

// writeTestConfig writes a config using a SQLite store in a temp dir so
// state survives across command invocations.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`log_level: error
store:
  driver: sqlite3
  dsn: %s
auth:
  enabled: true
  clients:
    - client_id: tester
      access_token: %s
      scopes: ["queue:*"]
    - client_id: reader
      access_token: tok-reader
expiry:
  schedule: "@every 1h"
`, filepath.Join(dir, "tasks.db"), testToken)

	path := filepath.Join(dir, "taskq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testDefinition(created time.Time) task.Definition {
	return task.Definition{
		ProvisionerID: "no-provisioner-extended-extended",
		WorkerType:    "test-worker-extended-extended",
		SchedulerID:   "my-scheduler-extended-extended",
		TaskGroupID:   "dSlITZ4yQgmvxxAi4A8fHQ",
		Created:       created,
		Deadline:      created.Add(3 * 24 * time.Hour),
		Expires:       created.Add(3 * 24 * time.Hour),
		Metadata: task.Metadata{
			Name:        "Unit testing task",
			Description: "Task created during unit tests",
			Owner:       "jonsafj@mozilla.com",
			Source:      "https://github.com/taskcluster/taskcluster-queue",
		},
		Tags: map[string]string{"purpose": "taskcluster-testing"},
	}
}

func writeDefinition(t *testing.T, def task.Definition) string {
	t.Helper()
	data, err := json.Marshal(def)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// runCLI executes the root command and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
