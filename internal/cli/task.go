package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewTaskCommand creates the task command.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task <taskId>",
		Short: "Print a stored task definition",
		Long: `Print a stored task definition exactly as it was registered.

Example:
  taskq task 9HrBC1jMQ3KlZw4CssPUeQ`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTask(opts *RootOptions, taskID string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	e, err := openEnv(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer e.Close()
	e.warnEphemeral(f)

	body, err := e.service.TaskBody(cmd.Context(), taskID)
	if err != nil {
		return f.Fail("failed to get task", err)
	}

	if f.Format == "json" {
		return f.Success(json.RawMessage(body))
	}
	return f.Success(string(body))
}
