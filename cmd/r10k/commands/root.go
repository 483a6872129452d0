// Package commands implements the CLI commands for r10k.
package commands

import (
	"context"
	"io"

	"github.com/smortex/r10k/internal/app"
	"github.com/smortex/r10k/internal/build"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/spf13/cobra"
)

// Runner is the application behind the commands.
type Runner interface {
	InstallPuppetfile(ctx context.Context, opts app.Options) error
	PurgePuppetfile(ctx context.Context, opts app.Options) (*domain.PurgeReport, error)
}

// CLI represents the command line interface for r10k.
type CLI struct {
	app     Runner
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a Runner) *CLI {
	rootCmd := &cobra.Command{
		Use:           "r10k",
		Short:         "Deploy Puppet modules from a Puppetfile",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newPuppetfileCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
