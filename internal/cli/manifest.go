package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/catalog"
	"github.com/roach88/diamond/internal/manifest"
)

// ManifestCheck summarizes a validated manifest.
type ManifestCheck struct {
	File string `json:"file"`
	Cuts int    `json:"cuts"`
	Init string `json:"init,omitempty"`
}

// NewManifestCommand creates the manifest command group.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with cut manifests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>...",
		Short: "Check manifests without sending them",
		Long: `Parse each manifest (YAML or CUE), check its structure and resolve its
module names against the catalog. Nothing is sent to a diamond, so
registry rules such as duplicate or missing selectors are not checked.

Exit codes:
  0 - All manifests are valid
  1 - One or more manifests are invalid
  2 - Command error

Examples:
  diamond manifest validate upgrade.yaml
  diamond manifest validate cuts/*.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestValidate(rootOpts, args, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "schema",
		Short:         "Print the CUE schema manifests are checked against",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), manifest.Schema())
			return err
		},
	})

	return cmd
}

func runManifestValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	cat := catalog.Default()

	var checks []ManifestCheck
	for _, file := range files {
		m, err := manifest.Load(file)
		if err == nil {
			_, err = m.Resolve(cat)
		}
		if err != nil {
			var me *manifest.Error
			details := map[string]any{"file": file}
			if errors.As(err, &me) {
				details["field"] = me.Field
				details["line"] = me.Line
			}
			if oerr := out.Error("E_MANIFEST", fmt.Sprintf("%s: %v", file, err), details); oerr != nil {
				return oerr
			}
			return NewExitError(ExitFailure, "invalid manifest")
		}
		check := ManifestCheck{File: file, Cuts: len(m.Cuts)}
		if m.Init != nil {
			check.Init = m.Init.Module
		}
		checks = append(checks, check)
	}

	lines := make([]string, len(checks))
	for i, c := range checks {
		lines[i] = fmt.Sprintf("\u2713 %s (%d cuts)", c.File, c.Cuts)
	}
	return out.Success(checks, lines...)
}
