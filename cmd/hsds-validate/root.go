package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hsds-validator/internal/logging"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
)

// errInvalid signals that validation ran and found problems.
var errInvalid = errors.New("input is not valid")

var (
	schemaDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "hsds-validate",
	Short: "Validate Open Referral HSDS tables",
	Long: `hsds-validate checks CSV files and feeds against the Open Referral
Human Services Data Specification and reports every bad cell with its row
and column.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps the outcome to an exit status.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errInvalid):
		return 1
	default:
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
		return 2
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schemaDir, "schema-dir", os.Getenv("SCHEMA_DIR"), "directory of <type>.yaml files overriding built-in schemas")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), level, "text")
}

func newCatalog(logger *slog.Logger) *resources.Catalog {
	return resources.NewCatalog(
		resources.WithOverrideDir(schemaDir),
		resources.WithLogger(logger),
	)
}
