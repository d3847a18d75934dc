package cli

import (
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/roach88/taskq/internal/slugid"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	File  string
	Token string
}

// CreateResult is the payload of a successful create.
type CreateResult struct {
	TaskID  string `json:"taskId"`
	Outcome string `json:"outcome"`
}

func (r CreateResult) String() string {
	return fmt.Sprintf("%s %s", r.TaskID, r.Outcome)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create [taskId]",
		Short: "Register a task definition in the configured store",
		Long: `Register a task definition in the configured store.

The definition is read from --file (JSON or YAML, "-" for stdin). Without a
taskId a fresh one is generated. Re-running with an identical definition is
a no-op; a different definition under the same id is a conflict.

Example:
  taskq create --file task.yaml
  taskq create 9HrBC1jMQ3KlZw4CssPUeQ --file task.json --token $TOKEN`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			if len(args) == 1 {
				taskID = args[0]
			}
			return runCreate(opts, taskID, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "definition file (required)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "access token of a configured client")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runCreate(opts *CreateOptions, taskID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	def, err := readDefinition(opts.File, cmd.InOrStdin())
	if err != nil {
		return f.failWith(ErrCodeUnreadable, "failed to read definition", err)
	}

	if taskID == "" {
		taskID = slugid.Nice()
		f.VerboseLog("generated taskId %s", taskID)
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer e.Close()
	e.warnEphemeral(f)

	creds, ok := e.credentials(opts.Token)
	if !ok {
		return f.Fail("failed to create task", errors.New("unknown access token", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized))
	}

	_, outcome, err := e.service.CreateTask(cmd.Context(), creds, taskID, def)
	if err != nil {
		return f.Fail("failed to create task", err)
	}

	return f.Success(CreateResult{TaskID: taskID, Outcome: outcome.String()})
}
