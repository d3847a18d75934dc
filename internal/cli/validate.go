package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taskq/internal/task"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool            `json:"valid"`
	Hash       string          `json:"hash"`
	Definition task.Definition `json:"definition"`
	Warnings   []string        `json:"warnings,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Definition valid (hash %s)", r.Hash)
	for _, w := range r.Warnings {
		b.WriteString("\n  warning: ")
		b.WriteString(w)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a task definition without storing it",
		Long: `Validate a task definition without storing it.

Applies defaults, checks the definition schema, the deadline and expires
window and the size limits, and prints the canonical hash the store would
compare on. Use "-" to read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	def, err := readDefinition(path, cmd.InOrStdin())
	if err != nil {
		return f.failWith(ErrCodeUnreadable, "failed to read definition", err)
	}

	validated, err := task.Validate(def)
	if err != nil {
		return f.Fail("definition invalid", err)
	}

	hash, err := validated.Hash()
	if err != nil {
		return f.failWith(ErrCodeGeneric, "failed to hash definition", err)
	}
	f.VerboseLog("definition %q valid", validated.Metadata.Name)

	fields, err := validated.NonNFCFields()
	if err != nil {
		return f.failWith(ErrCodeGeneric, "failed to inspect definition", err)
	}
	var warnings []string
	for _, field := range fields {
		warnings = append(warnings, field+": text is not NFC normalized; composed and decomposed forms create different tasks")
	}

	return f.Success(ValidationResult{Valid: true, Hash: hash, Definition: validated, Warnings: warnings})
}
