package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/taskq/internal/config"
	"github.com/roach88/taskq/internal/expiry"
)

// ExpireOptions holds flags for the expire command.
type ExpireOptions struct {
	*RootOptions
	Before string
}

// ExpireResult reports a sweep.
type ExpireResult struct {
	Removed int64  `json:"removed"`
	Before  string `json:"before"`
}

func (r ExpireResult) String() string {
	return fmt.Sprintf("removed %d definition(s) expired before %s", r.Removed, r.Before)
}

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpireOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Remove expired task definitions once",
		Long: `Remove every task definition whose expires time has passed, then exit.

Example:
  taskq expire --config taskq.yaml
  taskq expire --before 2024-01-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpire(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Before, "before", "", "RFC 3339 cutoff (default now)")

	return cmd
}

func runExpire(opts *ExpireOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	before := time.Now().UTC()
	if opts.Before != "" {
		t, err := time.Parse(time.RFC3339, opts.Before)
		if err != nil {
			return f.failWith(ErrCodeGeneric, "invalid --before", err)
		}
		before = t.UTC()
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer e.Close()
	e.warnEphemeral(f)

	schedule := e.cfg.Expiry.Schedule
	if schedule == "" {
		schedule = config.DefaultExpirySchedule
	}
	sweeper, err := expiry.New(e.store, schedule, e.logger.GetLogger("expiry"),
		expiry.WithClock(func() time.Time { return before }))
	if err != nil {
		return f.failWith(ErrCodeConfig, "invalid expiry schedule", err)
	}

	n, err := sweeper.Sweep(cmd.Context())
	if err != nil {
		return f.failWith(ErrCodeStore, "expiry sweep failed", err)
	}

	return f.Success(ExpireResult{Removed: n, Before: before.Format(time.RFC3339)})
}
