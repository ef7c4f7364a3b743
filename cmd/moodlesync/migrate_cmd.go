package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"moodle-sync/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the import schema",
	}

	withMigrator := func(fn func(cmd *cobra.Command, m *store.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDatabase(); err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := store.NewMigrator(db)
			if err != nil {
				return err
			}
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
				applied, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) %v\n", len(applied), applied)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
				v, err := m.Down(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d\n", v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator) error {
				states, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range states {
					mark := "pending"
					if s.Applied {
						mark = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, mark, s.Path)
				}
				return nil
			}),
		},
	)
	return cmd
}
