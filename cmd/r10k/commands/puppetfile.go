package commands

import (
	"fmt"

	"github.com/smortex/r10k/internal/app"
	"github.com/smortex/r10k/internal/core/domain"
	"github.com/spf13/cobra"
)

func (c *CLI) newPuppetfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puppetfile",
		Short: "Operate on a Puppetfile",
	}

	cmd.PersistentFlags().String("root", "", "Directory holding the Puppetfile (default: current directory)")
	cmd.PersistentFlags().String("puppetfile", "", "Path to the Puppetfile (default: <root>/Puppetfile)")
	cmd.PersistentFlags().String("moduledir", "", "Module directory (default: from the Puppetfile, then <root>/modules)")
	cmd.PersistentFlags().String("config", "", "Settings file (default: <root>/r10k.yaml)")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	cmd.PersistentFlags().Bool("json", false, "Log as JSON")

	cmd.AddCommand(c.newInstallCmd())
	cmd.AddCommand(c.newPurgeCmd())
	return cmd
}

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install every module of the Puppetfile and purge stale content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options(cmd)
			opts.Overrides.Force, _ = cmd.Flags().GetBool("force")
			opts.Overrides.PoolSize, _ = cmd.Flags().GetInt("jobs")
			opts.Overrides.CacheDir, _ = cmd.Flags().GetString("cachedir")
			return c.app.InstallPuppetfile(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Overwrite local modifications")
	cmd.Flags().IntP("jobs", "j", 0, fmt.Sprintf("Number of mirrors synced in parallel (default %d)", domain.DefaultPoolSize))
	cmd.Flags().String("cachedir", "", "Directory holding mirrors and deployment records")
	return cmd
}

func (c *CLI) newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove content of the module directories not declared in the Puppetfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options(cmd)
			opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
			report, err := c.app.PurgePuppetfile(cmd.Context(), opts)
			if report != nil && opts.DryRun {
				for _, path := range report.Removed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolP("dry-run", "n", false, "List stale paths without removing them")
	return cmd
}

// options reads the flags shared by every puppetfile subcommand.
func options(cmd *cobra.Command) app.Options {
	var opts app.Options
	opts.Overrides.Root, _ = cmd.Flags().GetString("root")
	opts.Overrides.Puppetfile, _ = cmd.Flags().GetString("puppetfile")
	opts.Overrides.Moduledir, _ = cmd.Flags().GetString("moduledir")
	opts.Overrides.LogFile, _ = cmd.Flags().GetString("log-file")
	opts.Overrides.JSONLogs, _ = cmd.Flags().GetBool("json")
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	return opts
}
