package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/demo-management/internal/config"
	"github.com/wondertwin-ai/demo-management/internal/logging"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool
	dbDriver   string
	dbDSN      string

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "demo-management",
		Short: "Demo Management service and endpoint test suite",
		Long: `demo-management serves the Demo Management REST API (demo CRUD, status,
activity flag and membership) and ships an end-to-end endpoint test suite
that exercises a running instance and writes a CSV report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(`{{printf "demo-management version %s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "config file (default "+config.DefaultConfigFile+" when present)")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&o.logFormat, "log-format", "", "log format: json or text")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging and request header logging")
	pf.StringVar(&o.dbDriver, "db-driver", "", "persistence backend: memory or sqlite")
	pf.StringVar(&o.dbDSN, "db-dsn", "", "SQLite data source name")

	root.AddCommand(
		newServeCmd(o),
		newMigrateCmd(o),
		newEndpointTestCmd(o),
		newVersionCmd(o),
	)
	return root
}

// load reads the configuration and applies any flags the user set.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("verbose") {
		cfg.Log.Verbose = o.verbose
	}
	if flags.Changed("db-driver") {
		cfg.Database.Driver = o.dbDriver
	}
	if flags.Changed("db-dsn") {
		cfg.Database.DSN = o.dbDSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logger builds the process logger. Logs go to stderr so command output on
// stdout stays clean.
func (o *rootOptions) logger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: cfg.Log.Verbose,
		Output:  o.stderr,
	})
}
