package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// closeTimeout bounds the final save when a command exits.
const closeTimeout = 10 * time.Second

// Execute runs the command line with args. The session is saved and released
// afterwards whether or not the command succeeded.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return errors.Join(err, a.close(closeCtx))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wizard",
		Short: "Drive an appraisal wizard session from the terminal",
		Long: `wizard edits one persisted appraisal session: it records subject data,
scenarios and approach values, stages and assigns photos, and reports
completion per section and tab.

Storage and logging are configured through WIZARD_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.announce(cmd.OutOrStdout())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&a.session, "session", "s", "default", "session name")

	root.AddCommand(statusCmd(a))
	root.AddCommand(fieldCmd(a))
	root.AddCommand(scenarioCmd(a))
	root.AddCommand(photosCmd(a))
	root.AddCommand(schemaCmd(a))
	root.AddCommand(resetCmd(a))
	return root
}
