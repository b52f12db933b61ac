// Package cli holds the crmintctl cobra commands.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmintctl/internal/app"
)

const defaultConfigPath = "./crmintctl.yaml"

// env carries global flags and test seams to every subcommand.
type env struct {
	cfgPath string
	noColor bool
	now     func() time.Time
}

func (e *env) open() (*app.App, error) {
	return app.NewApp(e.cfgPath)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRoot(&env{now: time.Now})
}

func newRoot(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmintctl",
		Short:         "Operator console for a CRMint backend",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if e.noColor {
				color.NoColor = true
			}
		},
	}

	def := defaultConfigPath
	if v := os.Getenv("CRMINTCTL_CONFIG"); v != "" {
		def = v
	}
	root.PersistentFlags().StringVarP(&e.cfgPath, "config", "c", def, "path to config file (yaml or json)")
	root.PersistentFlags().BoolVar(&e.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newWatchCommand(e),
		newStatusCommand(e),
		newPipelinesCommand(e),
		newSettingsCommand(e),
		newVarsCommand(e),
		newResetCommand(e),
		newCronCommand(e),
		newAuditCommand(e),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln(color.RedString("error:"), err)
		return 1
	}
	return 0
}
