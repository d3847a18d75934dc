package cli

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/roach88/taskq/internal/slugid"
)

// SlugidOptions holds flags for the slugid command.
type SlugidOptions struct {
	*RootOptions
	Count int
	V4    bool
}

// SlugidResult is the decoded form of a slugid.
type SlugidResult struct {
	Slug string `json:"slug"`
	UUID string `json:"uuid"`
}

func (r SlugidResult) String() string {
	return r.UUID
}

// NewSlugidCommand creates the slugid command.
func NewSlugidCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SlugidOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "slugid",
		Short: "Generate task ids",
		Long: `Generate task ids. By default ids never start with "-" so they are
safe as command line arguments; --v4 allows the full random range.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlugid(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of ids to generate")
	cmd.Flags().BoolVar(&opts.V4, "v4", false, "allow ids starting with '-'")

	cmd.AddCommand(newSlugidDecodeCommand(rootOpts))

	return cmd
}

func newSlugidDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <slugid>",
		Short:         "Print the UUID behind a slugid",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			u, err := slugid.Decode(args[0])
			if err != nil {
				return f.Fail("invalid slugid", errors.NewValidation(err.Error(), errors.FieldError{
					Field:   "slugid",
					Message: "not a valid slugid",
					Value:   args[0],
				}))
			}
			return f.Success(SlugidResult{Slug: args[0], UUID: u.String()})
		},
	}
}

func runSlugid(opts *SlugidOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Count < 1 {
		return f.Fail("invalid --count", errors.NewValidation("count must be at least 1", errors.FieldError{
			Field:   "count",
			Message: "must be at least 1",
			Value:   opts.Count,
		}))
	}

	ids := make([]string, opts.Count)
	for i := range ids {
		if opts.V4 {
			ids[i] = slugid.V4()
		} else {
			ids[i] = slugid.Nice()
		}
	}

	if f.Format == "json" {
		return f.Success(ids)
	}
	return f.Success(strings.Join(ids, "\n"))
}
