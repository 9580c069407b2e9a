package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/demo-management/internal/store/sqlite"
)

func newMigrateCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply or inspect the embedded SQLite schema migrations. The database is
taken from database.dsn (or --db-dsn) regardless of database.driver.`,
	}
	cmd.AddCommand(newMigrateUpCmd(o), newMigrateStatusCmd(o))
	return cmd
}

func (o *rootOptions) openSQLite(cmd *cobra.Command) (*sqlite.Store, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Database.DSN, o.logger(cfg))
}

func newMigrateUpCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := o.openSQLite(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(cmd.Context())
			for _, m := range applied {
				fmt.Fprintf(o.stdout, "applied %04d_%s\n", m.Version, m.Name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(o.stdout, "database is up to date")
			}
			return nil
		},
	}
}

func newMigrateStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := o.openSQLite(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(o.stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Version", "Name", "Status", "Applied At"})
			for _, s := range status {
				state, at := text.FgYellow.Sprint("pending"), ""
				if s.Applied {
					state = text.FgGreen.Sprint("applied")
					at = s.AppliedAt.Format("2006-01-02 15:04:05Z07:00")
				}
				t.AppendRow(table.Row{s.Version, s.Name, state, at})
			}
			t.Render()
			return nil
		},
	}
}
