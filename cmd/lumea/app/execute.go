package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
)

// Execute runs the lumea CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
// The root command itself runs the whole pipeline.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "lumea",
		Short:   "Tourist-site reconciliation and load pipeline",
		Version: a.version,
		Long: `Lumea gathers departments, communes and tourist sites of Brittany from
five sources, reconciles them into one canonical dataset and loads it into
the relational store.

Every source that cannot be fetched falls back to its last extract
snapshot. A report of per-source drops and per-table counts is printed at
the end of every run.

Settings come from flags, LUMEA_* environment variables, .env files and a
YAML file named by LUMEA_CONFIG (default $HOME/.lumea.yaml).`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: a.setupCommand,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, false)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := a.config
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "minimal output (shortcut for --log-level=warn)")
	flags.BoolVar(&c.NoColor, "no-color", c.NoColor, "disable colored output")
	flags.StringVarP(&c.Format, "format", "o", c.Format, "report format: table, json, yaml")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")

	flags.StringVar(&c.DBPath, "db", c.DBPath, "destination SQLite database (LUMEA_DB_PATH)")
	flags.StringVar(&c.StagingDir, "staging-dir", c.StagingDir, "snapshot directory (LUMEA_STAGING_DIR)")
	flags.StringVar(&c.AuthoritiesFile, "authorities", c.AuthoritiesFile, "source-priority file (LUMEA_AUTHORITIES_FILE)")
	flags.IntVar(&c.Precision, "precision", c.Precision, "decimals kept in site coordinates for identity (LUMEA_PRECISION)")
	flags.BoolVar(&c.Provenance, "provenance", c.Provenance, "write provenance.yaml with the raw source values")
	flags.DurationVar(&c.Timeout, "timeout", c.Timeout, "bound on the whole run, 0 for none")

	rootCmd.SetVersionTemplate("lumea {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// These flags are defined as persistent flags in createRootCommand, so errors indicate programming errors
	verbose := mustGetBool(cmd, "verbose")
	quiet := mustGetBool(cmd, "quiet")
	noColor := mustGetBool(cmd, "no-color")
	format := mustGetString(cmd, "format")
	logLevel := mustGetString(cmd, "log-level")

	a.config.UpdateFromFlags(verbose, quiet, noColor, format, logLevel)

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewReconcileCommand())
	rootCmd.AddCommand(a.NewPrioritiesCommand())
	rootCmd.AddCommand(a.NewSchemaCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(exitMessage(err) + "\n")
		os.Exit(1)
	}
}

// exitMessage words the final error line. A failed load and a canceled run
// say what happened to the destination before the cause.
func exitMessage(err error) string {
	switch {
	case errors.IsLoadIntegrity(err):
		return "load aborted, nothing committed: " + err.Error()
	case errors.IsCanceled(err):
		return "run canceled before completion: " + err.Error()
	default:
		return err.Error()
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
