package main

import (
	"github.com/MrEthical07/authcache/userdb"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			db, err := userdb.Open(cmd.Context(), rt.cfg.Database())
			if err != nil {
				return err
			}
			defer db.Close()
			return userdb.Migrate(cmd.Context(), db, rt.logger)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Revert the last migration group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			db, err := userdb.Open(cmd.Context(), rt.cfg.Database())
			if err != nil {
				return err
			}
			defer db.Close()
			return userdb.Rollback(cmd.Context(), db, rt.logger)
		},
	})
	return cmd
}
