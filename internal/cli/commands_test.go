package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskq/internal/slugid"
	"github.com/roach88/taskq/internal/task"
)

func TestCreateAndTask(t *testing.T) {
	cfg := writeTestConfig(t)
	defPath := writeDefinition(t, testDefinition(time.Now()))
	id := slugid.Nice()

	out, err := runCLI(t, "--config", cfg, "create", id, "--file", defPath, "--token", testToken)
	require.NoError(t, err, out)
	assert.Equal(t, id+" stored\n", out)

	out, err = runCLI(t, "--config", cfg, "task", id)
	require.NoError(t, err, out)

	var got task.Definition
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &got))
	assert.Equal(t, "no-provisioner-extended-extended", got.ProvisionerID)
	assert.Equal(t, task.PriorityLowest, got.Priority)
}

func TestCreateIdempotent(t *testing.T) {
	cfg := writeTestConfig(t)
	defPath := writeDefinition(t, testDefinition(time.Now()))
	id := slugid.Nice()

	_, err := runCLI(t, "--config", cfg, "create", id, "-f", defPath, "--token", testToken)
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfg, "--format", "json", "create", id, "-f", defPath, "--token", testToken)
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	assert.Equal(t, map[string]any{"taskId": id, "outcome": "unchanged"}, resp.Data)
}

func TestCreateConflict(t *testing.T) {
	cfg := writeTestConfig(t)
	now := time.Now()
	id := slugid.Nice()

	_, err := runCLI(t, "--config", cfg, "create", id, "-f", writeDefinition(t, testDefinition(now)), "--token", testToken)
	require.NoError(t, err)

	changed := testDefinition(now)
	changed.Retries = 2
	out, err := runCLI(t, "--config", cfg, "--format", "json", "create", id, "-f", writeDefinition(t, changed), "--token", testToken)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.Equal(t, map[string]any{"taskId": id}, resp.Error.Details)

	out, err = runCLI(t, "--config", cfg, "--format", "json", "task", id)
	require.NoError(t, err)
	body, err := json.Marshal(decodeResponse(t, out).Data)
	require.NoError(t, err)
	var stored task.Definition
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, 0, stored.Retries)
}

func TestCreateGeneratesTaskID(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfg, "--format", "json", "create", "-f", writeDefinition(t, testDefinition(time.Now())), "--token", testToken)
	require.NoError(t, err, out)

	data := decodeResponse(t, out).Data.(map[string]any)
	id, _ := data["taskId"].(string)
	assert.True(t, slugid.Valid(id), "generated id %q", id)
	assert.Equal(t, "stored", data["outcome"])
}

func TestCreateAuthorization(t *testing.T) {
	cfg := writeTestConfig(t)
	defPath := writeDefinition(t, testDefinition(time.Now()))

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"anonymous", "", ErrCodeForbidden},
		{"client without scopes", "tok-reader", ErrCodeForbidden},
		{"unknown token", "nope", ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"--config", cfg, "--format", "json", "create", slugid.Nice(), "-f", defPath}
			if tt.token != "" {
				args = append(args, "--token", tt.token)
			}

			out, err := runCLI(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCreateInvalidDefinition(t *testing.T) {
	cfg := writeTestConfig(t)
	now := time.Now()
	def := testDefinition(now)
	def.Deadline = now.Add(-time.Minute)
	id := slugid.Nice()

	out, err := runCLI(t, "--config", cfg, "create", id, "-f", writeDefinition(t, def), "--token", testToken)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E004]")

	_, err = runCLI(t, "--config", cfg, "task", id)
	require.Error(t, err)
}

func TestTaskNotFound(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfg, "task", slugid.Nice())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestTaskMalformedID(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfg, "task", "not-a-slug")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E004]")
}

func TestBadConfig(t *testing.T) {
	out, err := runCLI(t, "--config", "/nonexistent/taskq.yaml", "task", slugid.Nice())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestExpire(t *testing.T) {
	cfg := writeTestConfig(t)

	created := time.Now().Add(-10 * 24 * time.Hour)
	old := testDefinition(created)
	old.Deadline = created.Add(24 * time.Hour)
	old.Expires = created.Add(48 * time.Hour)
	oldID := slugid.Nice()
	_, err := runCLI(t, "--config", cfg, "create", oldID, "-f", writeDefinition(t, old), "--token", testToken)
	require.NoError(t, err)

	freshID := slugid.Nice()
	_, err = runCLI(t, "--config", cfg, "create", freshID, "-f", writeDefinition(t, testDefinition(time.Now())), "--token", testToken)
	require.NoError(t, err)

	out, err := runCLI(t, "--config", cfg, "--format", "json", "expire")
	require.NoError(t, err, out)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(1), data["removed"])

	_, err = runCLI(t, "--config", cfg, "task", oldID)
	require.Error(t, err)

	_, err = runCLI(t, "--config", cfg, "task", freshID)
	require.NoError(t, err)
}

func TestExpireInvalidBefore(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := runCLI(t, "--config", cfg, "expire", "--before", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSlugid(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "slugid", "-n", "3")
	require.NoError(t, err)

	var ids []string
	resp := decodeResponse(t, out)
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &ids))

	require.Len(t, ids, 3)
	for _, id := range ids {
		assert.True(t, slugid.Valid(id), id)
		assert.NotEqual(t, byte('-'), id[0])
	}
}

func TestSlugidText(t *testing.T) {
	out, err := runCLI(t, "slugid", "--v4")
	require.NoError(t, err)
	assert.True(t, slugid.Valid(strings.TrimSpace(out)))
}

func TestSlugidInvalidCount(t *testing.T) {
	_, err := runCLI(t, "slugid", "-n", "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSlugidDecode(t *testing.T) {
	out, err := runCLI(t, "slugid", "decode", "9HrBC1jMQ3KlZw4CssPUeQ")
	require.NoError(t, err)
	assert.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479\n", out)

	out, err = runCLI(t, "slugid", "decode", "short")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E004]")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := writeTestConfig(t)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfg, "serve", "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestMemoryStoreWarning(t *testing.T) {
	dir := t.TempDir()
	memCfg := filepath.Join(dir, "memory.yaml")
	require.NoError(t, os.WriteFile(memCfg, []byte("log_level: error\nstore:\n  driver: memory\nauth:\n  enabled: false\n"), 0o600))

	tests := []struct {
		name     string
		cfg      string
		wantWarn bool
	}{
		{"memory", memCfg, true},
		{"sqlite", writeTestConfig(t), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCommand()
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			cmd.SetOut(stdout)
			cmd.SetErr(stderr)
			cmd.SetArgs([]string{"--config", tt.cfg, "task", slugid.Nice()})

			require.Error(t, cmd.Execute())
			assert.Contains(t, stdout.String(), "Error [E006]")
			if tt.wantWarn {
				assert.Contains(t, stderr.String(), `warning: store driver is "memory"`)
			} else {
				assert.NotContains(t, stderr.String(), "warning:")
			}
		})
	}
}
