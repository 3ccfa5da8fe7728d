package cli

import (
	"fmt"

	"github.com/ganot/perfscan/internal/config"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg.DB.Path)
			if err != nil {
				return runtimeErr(err)
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date.\n", cfg.DB.Path)
			return nil
		},
	}
}
