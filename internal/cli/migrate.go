package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/emergent-company/emergent.kos/internal/migrate"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	open := func() (*sql.DB, *migrate.Migrator, error) {
		dsn := a.settings().DSN
		if dsn == "" {
			return nil, nil, errors.New("--dsn (or KOSCTL_DSN) is required")
		}
		db := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		log, err := zap.NewDevelopment()
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, migrate.NewMigrator(db, log), nil
	}

	run := func(fn func(cmd *cobra.Command, m *migrate.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, m, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, m)
		}
	}

	var to int64
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations, all of them or up to --to",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if to < 0 {
				return fmt.Errorf("--to must be a migration version, got %d", to)
			}
			return nil
		},
		RunE: run(func(cmd *cobra.Command, m *migrate.Migrator) error {
			if to > 0 {
				return m.UpTo(cmd.Context(), to)
			}
			return m.Up(cmd.Context())
		}),
	}
	up.Flags().Int64Var(&to, "to", 0, "stop after applying this migration version")

	cmd.AddCommand(
		up,
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: run(func(cmd *cobra.Command, m *migrate.Migrator) error {
				return m.Down(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the status of every migration",
			RunE: run(func(cmd *cobra.Command, m *migrate.Migrator) error {
				return m.Status(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: run(func(cmd *cobra.Command, m *migrate.Migrator) error {
				v, err := m.Version(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			}),
		},
	)
	return cmd
}
